package combat

import (
	"hash/fnv"
	"math/rand"

	"graveward/internal/entity"
	"graveward/internal/stats"
)

// Roller is the random source used for hit and damage draws. *rand.Rand
// satisfies it.
type Roller interface {
	// Int63n returns a uniform value in [0, n).
	Int63n(n int64) int64
}

// DeterministicSeedValue derives a stable non-zero seed for a labelled stream.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRoller returns a roller whose sequence is fully determined
// by rootSeed and label.
func NewDeterministicRoller(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// OutcomeID identifies one resolution: an attacker swings at most once per tick.
type OutcomeID struct {
	Attacker entity.ID `json:"attacker"`
	Tick     uint64    `json:"tick"`
}

// DamageOutcome is the result of a single resolution.
type DamageOutcome struct {
	ID     OutcomeID   `json:"id"`
	Hit    bool        `json:"hit"`
	Amount int         `json:"amount"`
	Style  stats.Style `json:"style"`
	MaxHit int         `json:"maxHit"`
	Chance HitChance   `json:"chance"`
}

// HitChance is an exact probability Num/Den.
type HitChance struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

func (h HitChance) Float64() float64 {
	if h.Den <= 0 {
		return 0
	}
	return float64(h.Num) / float64(h.Den)
}

// ChanceToHit converts the two rolls into the accuracy fraction:
//
//	attack > defence: 1 - (defence+2) / (2*(attack+1))
//	otherwise:        attack / (2*(defence+1))
func ChanceToHit(attackRoll, defenceRoll int64) HitChance {
	if attackRoll < 0 {
		attackRoll = 0
	}
	if defenceRoll < 0 {
		defenceRoll = 0
	}
	if attackRoll > defenceRoll {
		den := 2 * (attackRoll + 1)
		return HitChance{Num: den - (defenceRoll + 2), Den: den}
	}
	return HitChance{Num: attackRoll, Den: 2 * (defenceRoll + 1)}
}

// AttackRoll computes the attacker's accuracy roll for style.
func AttackRoll(attacker stats.CombatantStats, style stats.Style) int64 {
	var level int64
	switch {
	case style == stats.StyleRanged:
		level = attacker.Prayers.Ranged.Apply(attacker.Levels.Ranged)
	case style == stats.StyleMagic:
		level = attacker.Prayers.Magic.Apply(attacker.Levels.Magic)
	default:
		level = attacker.Prayers.Attack.Apply(attacker.Levels.Attack)
	}
	effective := level + 8 + int64(attacker.Stance.Accuracy)
	return effective * (int64(attacker.AttackBonus.For(style)) + 64)
}

// DefenceRoll computes the defender's roll against an attack of style. The
// bonus is the defender's bonus for that style; against magic the effective
// level blends 70% magic with 30% defence.
func DefenceRoll(defender stats.CombatantStats, style stats.Style) int64 {
	defence := defender.Prayers.Defence.Apply(defender.Levels.Defence)
	level := defence
	if style == stats.StyleMagic {
		magic := defender.Prayers.Magic.Apply(defender.Levels.Magic)
		level = (7*magic + 3*defence) / 10
	}
	effective := level + 9 + int64(defender.Stance.Defence)
	return effective * (int64(defender.DefenceBonus.For(style)) + 64)
}

// Resolve draws one attack. It is pure apart from the roller: the same stats
// and an identically seeded roller always give the same outcome. The outcome
// id is left for the caller to stamp.
func Resolve(attacker, defender stats.CombatantStats, style stats.Style, roller Roller) DamageOutcome {
	maxHit := attacker.MaxHit.For(style)
	if maxHit <= 0 {
		maxHit = stats.MaxHit(attacker, style)
	}
	if maxHit < 0 {
		maxHit = 0
	}
	chance := ChanceToHit(AttackRoll(attacker, style), DefenceRoll(defender, style))
	outcome := DamageOutcome{Style: style, MaxHit: maxHit, Chance: chance}
	if roller == nil || chance.Num <= 0 || chance.Den <= 0 {
		return outcome
	}
	if roller.Int63n(chance.Den) >= chance.Num {
		return outcome
	}
	outcome.Hit = true
	outcome.Amount = int(roller.Int63n(int64(maxHit) + 1))
	return outcome
}
