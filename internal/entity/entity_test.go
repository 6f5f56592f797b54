package entity

import (
	"testing"

	"graveward/logging"
)

func TestPositionDistanceIsChebyshev(t *testing.T) {
	a := Position{X: 10, Y: 10}
	b := Position{X: 13, Y: 8}
	if got := a.Distance(b); got != 3 {
		t.Fatalf("expected distance 3, got %d", got)
	}
	if got := b.Distance(a); got != 3 {
		t.Fatalf("expected symmetric distance 3, got %d", got)
	}
}

func TestPositionDistanceAcrossPlanes(t *testing.T) {
	a := Position{X: 1, Y: 1, Plane: 0}
	b := Position{X: 1, Y: 1, Plane: 1}
	if got := a.Distance(b); got != Unreachable {
		t.Fatalf("expected unreachable, got %d", got)
	}
}

func TestRefLog(t *testing.T) {
	ref := Ref{ID: 42, Kind: KindNPC}
	got := ref.Log()
	if got.ID != "42" || got.Kind != logging.EntityKindNPC {
		t.Fatalf("unexpected log ref %+v", got)
	}
	if empty := (Ref{}).Log(); empty.ID != "" {
		t.Fatalf("expected empty ref for zero id, got %+v", empty)
	}
}

func TestParseIDAndKind(t *testing.T) {
	id, err := ParseID(" 17 ")
	if err != nil || id != 17 {
		t.Fatalf("expected 17, got %d (%v)", id, err)
	}
	if _, err := ParseID("-1"); err == nil {
		t.Fatalf("expected error for negative id")
	}
	if ParseKind("NPC") != KindNPC || ParseKind("player") != KindPlayer || ParseKind("ghost") != KindUnknown {
		t.Fatalf("unexpected kind parsing")
	}
}
