package stats

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Template is a named combatant archetype used to seed players and NPCs.
type Template struct {
	Name       string
	Stats      CombatantStats
	Aggressive bool
	Attackable bool
}

// Catalog is an immutable set of templates.
type Catalog struct {
	templates map[string]Template
	names     []string
}

type rawCatalog struct {
	Templates map[string]rawTemplate `yaml:"templates"`
}

type rawTemplate struct {
	Levels              Levels         `yaml:"levels"`
	Prayers             Prayers        `yaml:"prayers"`
	Stance              Stance         `yaml:"stance"`
	AttackBonus         map[string]int `yaml:"attack_bonus"`
	DefenceBonus        map[string]int `yaml:"defence_bonus"`
	StrengthBonus       int            `yaml:"strength_bonus"`
	RangedStrengthBonus int            `yaml:"ranged_strength_bonus"`
	MagicDamagePercent  int            `yaml:"magic_damage_percent"`
	SpellBaseDamage     int            `yaml:"spell_base_damage"`
	AttackSpeedTicks    uint64         `yaml:"attack_speed_ticks"`
	AttackRange         int            `yaml:"attack_range"`
	Style               string         `yaml:"style"`
	Aggressive          bool           `yaml:"aggressive"`
	Attackable          *bool          `yaml:"attackable"`
}

// DefaultCatalog returns the catalog bundled with the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a YAML catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stats catalog: %w", err)
	}
	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode stats catalog: %w", err)
	}
	if len(raw.Templates) == 0 {
		return nil, fmt.Errorf("stats catalog defines no templates")
	}

	catalog := &Catalog{templates: make(map[string]Template, len(raw.Templates))}
	for name, tmpl := range raw.Templates {
		built, err := tmpl.build(name)
		if err != nil {
			return nil, err
		}
		catalog.templates[name] = built
		catalog.names = append(catalog.names, name)
	}
	sort.Strings(catalog.names)
	return catalog, nil
}

func (r rawTemplate) build(name string) (Template, error) {
	style := StyleCrush
	if r.Style != "" {
		parsed, err := ParseStyle(r.Style)
		if err != nil {
			return Template{}, fmt.Errorf("template %s: %w", name, err)
		}
		style = parsed
	}
	attack, err := styleTable(r.AttackBonus)
	if err != nil {
		return Template{}, fmt.Errorf("template %s attack_bonus: %w", name, err)
	}
	defence, err := styleTable(r.DefenceBonus)
	if err != nil {
		return Template{}, fmt.Errorf("template %s defence_bonus: %w", name, err)
	}
	if r.Levels.Hitpoints <= 0 {
		return Template{}, fmt.Errorf("template %s: hitpoints must be positive", name)
	}
	speed := r.AttackSpeedTicks
	if speed == 0 {
		speed = 4
	}
	attackRange := r.AttackRange
	if attackRange <= 0 {
		attackRange = 1
	}
	attackable := true
	if r.Attackable != nil {
		attackable = *r.Attackable
	}

	stats := CombatantStats{
		Levels:              r.Levels,
		Prayers:             r.Prayers,
		Stance:              r.Stance,
		AttackBonus:         attack,
		DefenceBonus:        defence,
		StrengthBonus:       r.StrengthBonus,
		RangedStrengthBonus: r.RangedStrengthBonus,
		MagicDamagePercent:  r.MagicDamagePercent,
		SpellBaseDamage:     r.SpellBaseDamage,
		AttackSpeedTicks:    speed,
		AttackRange:         attackRange,
		Style:               style,
	}
	return Template{
		Name:       name,
		Stats:      stats.WithMaxHits(),
		Aggressive: r.Aggressive,
		Attackable: attackable,
	}, nil
}

func styleTable(values map[string]int) (StyleBonuses, error) {
	var table StyleBonuses
	for name, value := range values {
		style, err := ParseStyle(name)
		if err != nil {
			return table, err
		}
		table[style] = value
	}
	return table, nil
}

// Template looks up a template by name.
func (c *Catalog) Template(name string) (Template, bool) {
	if c == nil {
		return Template{}, false
	}
	tmpl, ok := c.templates[name]
	return tmpl, ok
}

// Names returns the template names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}
