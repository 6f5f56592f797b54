package stats

import (
	"fmt"
	"strings"
)

// Style selects which attack/defence bonus pair applies to an attack.
type Style uint8

const (
	StyleStab Style = iota
	StyleSlash
	StyleCrush
	StyleMagic
	StyleRanged

	StyleCount
)

var styleNames = [StyleCount]string{
	StyleStab:   "stab",
	StyleSlash:  "slash",
	StyleCrush:  "crush",
	StyleMagic:  "magic",
	StyleRanged: "ranged",
}

func (s Style) String() string {
	if s >= StyleCount {
		return "unknown"
	}
	return styleNames[s]
}

// IsMelee reports whether s is stab, slash or crush.
func (s Style) IsMelee() bool {
	return s <= StyleCrush
}

func (s Style) Valid() bool {
	return s < StyleCount
}

// ParseStyle maps a style name onto a Style.
func ParseStyle(value string) (Style, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for i, name := range styleNames {
		if name == normalized {
			return Style(i), nil
		}
	}
	return StyleCount, fmt.Errorf("unknown combat style %q", value)
}

// MarshalText lets styles appear as names in JSON and YAML.
func (s Style) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid combat style %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Style) UnmarshalText(data []byte) error {
	parsed, err := ParseStyle(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StyleBonuses stores one bonus per style.
type StyleBonuses [StyleCount]int

func (b StyleBonuses) For(style Style) int {
	if !style.Valid() {
		return 0
	}
	return b[style]
}
