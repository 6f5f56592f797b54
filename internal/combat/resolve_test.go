package combat

import (
	"math"
	"math/rand"
	"testing"

	"pgregory.net/rapid"

	"graveward/internal/stats"
)

func TestChanceToHitAttackerFavoured(t *testing.T) {
	chance := ChanceToHit(1000, 500)
	if chance.Num != 1500 || chance.Den != 2002 {
		t.Fatalf("expected 1500/2002, got %d/%d", chance.Num, chance.Den)
	}
	want := 1 - 502.0/2002.0
	if math.Abs(chance.Float64()-want) > 1e-12 {
		t.Fatalf("expected %.6f, got %.6f", want, chance.Float64())
	}
	if math.Abs(chance.Float64()-0.749) > 0.001 {
		t.Fatalf("expected roughly 0.749, got %.4f", chance.Float64())
	}
}

func TestChanceToHitDefenderFavoured(t *testing.T) {
	chance := ChanceToHit(500, 1000)
	if chance.Num != 500 || chance.Den != 2002 {
		t.Fatalf("expected 500/2002, got %d/%d", chance.Num, chance.Den)
	}
	equal := ChanceToHit(700, 700)
	if equal.Num != 700 || equal.Den != 1402 {
		t.Fatalf("expected equal rolls to use the defender branch, got %d/%d", equal.Num, equal.Den)
	}
}

func TestRollsProduceScenarioValues(t *testing.T) {
	attacker := stats.CombatantStats{Levels: stats.Levels{Attack: 2}}
	attacker.AttackBonus[stats.StyleStab] = 36
	defender := stats.CombatantStats{Levels: stats.Levels{Defence: 1}}
	defender.DefenceBonus[stats.StyleStab] = -14

	if got := AttackRoll(attacker, stats.StyleStab); got != 1000 {
		t.Fatalf("expected attack roll 1000, got %d", got)
	}
	if got := DefenceRoll(defender, stats.StyleStab); got != 500 {
		t.Fatalf("expected defence roll 500, got %d", got)
	}
}

func TestDefenceUsesBonusOfAttackerStyle(t *testing.T) {
	defender := stats.CombatantStats{Levels: stats.Levels{Defence: 40}}
	defender.DefenceBonus[stats.StyleStab] = 100
	defender.DefenceBonus[stats.StyleCrush] = -20

	stab := DefenceRoll(defender, stats.StyleStab)
	crush := DefenceRoll(defender, stats.StyleCrush)
	if stab != 49*164 || crush != 49*44 {
		t.Fatalf("expected per-style defence rolls, got stab=%d crush=%d", stab, crush)
	}
}

func TestMagicDefenceBlendsMagicAndDefence(t *testing.T) {
	defender := stats.CombatantStats{Levels: stats.Levels{Defence: 40, Magic: 80}}
	// floor((7*80 + 3*40) / 10) = 68, +9 = 77
	if got := DefenceRoll(defender, stats.StyleMagic); got != 77*64 {
		t.Fatalf("expected blended magic defence roll %d, got %d", 77*64, got)
	}
	if got := DefenceRoll(defender, stats.StyleRanged); got != 49*64 {
		t.Fatalf("expected ranged to use defence only, got %d", got)
	}
}

func TestAccuracyLevelFollowsStyle(t *testing.T) {
	attacker := stats.CombatantStats{Levels: stats.Levels{Attack: 10, Ranged: 60, Magic: 90}}
	if got := AttackRoll(attacker, stats.StyleRanged); got != 68*64 {
		t.Fatalf("expected ranged accuracy from ranged level, got %d", got)
	}
	if got := AttackRoll(attacker, stats.StyleMagic); got != 98*64 {
		t.Fatalf("expected magic accuracy from magic level, got %d", got)
	}
	attacker.Prayers.Attack = stats.Multiplier{Num: 6, Den: 5}
	if got := AttackRoll(attacker, stats.StyleSlash); got != 20*64 {
		t.Fatalf("expected prayer boosted melee accuracy, got %d", got)
	}
}

func TestResolveMissDealsNothing(t *testing.T) {
	s := baseStats()
	outcome := Resolve(s, s, stats.StyleSlash, missRoller{})
	if outcome.Hit || outcome.Amount != 0 {
		t.Fatalf("expected miss with no damage, got %+v", outcome)
	}
	if outcome.MaxHit != s.MaxHit[stats.StyleSlash] {
		t.Fatalf("expected max hit to be reported, got %d", outcome.MaxHit)
	}
}

func TestResolveHitCapsAtMaxHit(t *testing.T) {
	s := baseStats()
	outcome := Resolve(s, s, stats.StyleSlash, &hitRoller{damage: 1 << 30})
	if !outcome.Hit || outcome.Amount != outcome.MaxHit {
		t.Fatalf("expected max damage hit, got %+v", outcome)
	}
}

func genStats(t *rapid.T, label string) stats.CombatantStats {
	s := stats.CombatantStats{
		Levels: stats.Levels{
			Attack:   rapid.IntRange(1, 99).Draw(t, label+"_attack"),
			Strength: rapid.IntRange(1, 99).Draw(t, label+"_strength"),
			Defence:  rapid.IntRange(1, 99).Draw(t, label+"_defence"),
			Ranged:   rapid.IntRange(1, 99).Draw(t, label+"_ranged"),
			Magic:    rapid.IntRange(1, 99).Draw(t, label+"_magic"),
		},
		StrengthBonus:       rapid.IntRange(0, 150).Draw(t, label+"_str_bonus"),
		RangedStrengthBonus: rapid.IntRange(0, 150).Draw(t, label+"_rstr_bonus"),
		SpellBaseDamage:     rapid.IntRange(0, 30).Draw(t, label+"_spell"),
		MagicDamagePercent:  rapid.IntRange(0, 40).Draw(t, label+"_mdmg"),
	}
	for style := stats.Style(0); style < stats.StyleCount; style++ {
		s.AttackBonus[style] = rapid.IntRange(-30, 150).Draw(t, label+"_atk_"+style.String())
		s.DefenceBonus[style] = rapid.IntRange(-30, 300).Draw(t, label+"_def_"+style.String())
	}
	return s.WithMaxHits()
}

func TestResolveIsPureAndBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attacker := genStats(t, "attacker")
		defender := genStats(t, "defender")
		style := stats.Style(rapid.IntRange(0, int(stats.StyleCount)-1).Draw(t, "style"))
		seed := rapid.Int64().Draw(t, "seed")

		first := Resolve(attacker, defender, style, rand.New(rand.NewSource(seed)))
		second := Resolve(attacker, defender, style, rand.New(rand.NewSource(seed)))
		if first != second {
			t.Fatalf("expected identical outcomes, got %+v and %+v", first, second)
		}
		if first.Amount < 0 || first.Amount > first.MaxHit {
			t.Fatalf("amount %d outside [0, %d]", first.Amount, first.MaxHit)
		}
		if !first.Hit && first.Amount != 0 {
			t.Fatalf("miss dealt %d damage", first.Amount)
		}
		if first.Chance.Num < 0 || first.Chance.Num > first.Chance.Den {
			t.Fatalf("hit chance %d/%d outside [0, 1]", first.Chance.Num, first.Chance.Den)
		}
	})
}

func TestDeterministicRollerIsReproducible(t *testing.T) {
	a := NewDeterministicRoller("seed", "combat")
	b := NewDeterministicRoller("seed", "combat")
	c := NewDeterministicRoller("seed", "other")
	same := true
	for i := 0; i < 16; i++ {
		av, bv, cv := a.Int63n(1000), b.Int63n(1000), c.Int63n(1000)
		if av != bv {
			t.Fatalf("expected identical streams, got %d and %d", av, bv)
		}
		if av != cv {
			same = false
		}
	}
	if same {
		t.Fatalf("expected different labels to produce different streams")
	}
}
