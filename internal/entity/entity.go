// Package entity holds the identifiers shared by every combat component.
package entity

import (
	"strconv"
	"strings"

	"graveward/logging"
)

// ID identifies a player or NPC. Zero means "no entity".
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses a decimal entity id.
func ParseID(value string) (ID, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(parsed), nil
}

type Kind uint8

const (
	KindUnknown Kind = iota
	KindPlayer
	KindNPC
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNPC:
		return "npc"
	default:
		return "unknown"
	}
}

func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "player":
		return KindPlayer
	case "npc":
		return KindNPC
	default:
		return KindUnknown
	}
}

func (k Kind) logKind() logging.EntityKind {
	switch k {
	case KindPlayer:
		return logging.EntityKindPlayer
	case KindNPC:
		return logging.EntityKindNPC
	default:
		return logging.EntityKindUnknown
	}
}

// Position is a tile coordinate. Plane separates stacked map layers.
type Position struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Plane int `json:"plane"`
}

// Unreachable is returned by Distance for positions on different planes.
const Unreachable = int(^uint(0) >> 1)

// Distance returns the Chebyshev tile distance between p and other.
func (p Position) Distance(other Position) int {
	if p.Plane != other.Plane {
		return Unreachable
	}
	dx := abs(p.X - other.X)
	dy := abs(p.Y - other.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Ref pairs an id with its kind.
type Ref struct {
	ID   ID   `json:"id"`
	Kind Kind `json:"kind"`
}

// Log converts the reference into the logging representation.
func (r Ref) Log() logging.EntityRef {
	if r.ID == 0 {
		return logging.EntityRef{}
	}
	return logging.EntityRef{ID: r.ID.String(), Kind: r.Kind.logKind()}
}
