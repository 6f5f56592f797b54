// Package stats defines the read-only combatant snapshot consumed by damage
// resolution, the bonus tables that derive max hits from it, and the YAML
// catalog that seeds it.
package stats

import "fmt"

// Multiplier is an exact rational applied to a level, e.g. 23/20 for +15%.
type Multiplier struct {
	Num int64 `json:"num" yaml:"num"`
	Den int64 `json:"den" yaml:"den"`
}

// One leaves a level unchanged.
var One = Multiplier{Num: 1, Den: 1}

func (m Multiplier) normalized() Multiplier {
	if m.Den <= 0 || m.Num < 0 {
		return One
	}
	return m
}

// Apply returns floor(level * m). Negative levels are treated as zero.
func (m Multiplier) Apply(level int) int64 {
	if level <= 0 {
		return 0
	}
	n := m.normalized()
	return int64(level) * n.Num / n.Den
}

func (m Multiplier) String() string {
	n := m.normalized()
	return fmt.Sprintf("%d/%d", n.Num, n.Den)
}

// Levels holds the current (boosted or drained) skill levels.
type Levels struct {
	Attack    int `json:"attack" yaml:"attack"`
	Strength  int `json:"strength" yaml:"strength"`
	Defence   int `json:"defence" yaml:"defence"`
	Ranged    int `json:"ranged" yaml:"ranged"`
	Magic     int `json:"magic" yaml:"magic"`
	Hitpoints int `json:"hitpoints" yaml:"hitpoints"`
}

// Prayers holds the active prayer or buff multiplier per skill. Zero values
// behave as One.
type Prayers struct {
	Attack   Multiplier `json:"attack" yaml:"attack"`
	Strength Multiplier `json:"strength" yaml:"strength"`
	Defence  Multiplier `json:"defence" yaml:"defence"`
	Ranged   Multiplier `json:"ranged" yaml:"ranged"`
	Magic    Multiplier `json:"magic" yaml:"magic"`
}

// Stance holds the invisible level bonuses granted by the chosen fighting stance.
type Stance struct {
	Accuracy int `json:"accuracy" yaml:"accuracy"`
	Strength int `json:"strength" yaml:"strength"`
	Defence  int `json:"defence" yaml:"defence"`
}

// CombatantStats is a snapshot taken once per resolution. It is a plain value:
// copying it never aliases provider state.
type CombatantStats struct {
	Levels              Levels       `json:"levels"`
	Prayers             Prayers      `json:"prayers"`
	Stance              Stance       `json:"stance"`
	AttackBonus         StyleBonuses `json:"attackBonus"`
	DefenceBonus        StyleBonuses `json:"defenceBonus"`
	StrengthBonus       int          `json:"strengthBonus"`
	RangedStrengthBonus int          `json:"rangedStrengthBonus"`
	MagicDamagePercent  int          `json:"magicDamagePercent"`
	SpellBaseDamage     int          `json:"spellBaseDamage"`
	MaxHit              StyleBonuses `json:"maxHit"`
	AttackSpeedTicks    uint64       `json:"attackSpeedTicks"`
	AttackRange         int          `json:"attackRange"`
	Style               Style        `json:"style"`
}

// WithMaxHits returns a copy of s whose MaxHit table is derived from its
// levels and bonuses.
func (s CombatantStats) WithMaxHits() CombatantStats {
	for style := Style(0); style < StyleCount; style++ {
		s.MaxHit[style] = MaxHit(s, style)
	}
	return s
}

// MaxHit derives the maximum damage of one attack in the given style.
func MaxHit(s CombatantStats, style Style) int {
	switch {
	case style.IsMelee():
		eff := s.Prayers.Strength.Apply(s.Levels.Strength) + 8 + int64(s.Stance.Strength)
		return boostedMaxHit(eff, s.StrengthBonus)
	case style == StyleRanged:
		eff := s.Prayers.Ranged.Apply(s.Levels.Ranged) + 8 + int64(s.Stance.Strength)
		return boostedMaxHit(eff, s.RangedStrengthBonus)
	case style == StyleMagic:
		if s.SpellBaseDamage <= 0 {
			return 0
		}
		pct := int64(100 + s.MagicDamagePercent)
		if pct < 0 {
			pct = 0
		}
		return int(int64(s.SpellBaseDamage) * pct / 100)
	default:
		return 0
	}
}

func boostedMaxHit(effective int64, bonus int) int {
	product := effective*(int64(bonus)+64) + 320
	if product <= 0 {
		return 0
	}
	return int(product / 640)
}
