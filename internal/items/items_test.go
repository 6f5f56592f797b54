package items

import "testing"

func TestManifestCloneReturnsCopy(t *testing.T) {
	original := Manifest{{ID: "item-1", Type: "coins", Quantity: 3}, {ID: "item-2", Type: "sword", Quantity: 1}}

	cloned := original.Clone()

	if len(cloned) != len(original) {
		t.Fatalf("expected clone length %d, got %d", len(original), len(cloned))
	}
	if &cloned[0] == &original[0] {
		t.Fatalf("expected clone to allocate new backing array")
	}
	cloned[0].Quantity = 99
	if original[0].Quantity != 3 {
		t.Fatalf("expected original manifest to remain unchanged, got %d", original[0].Quantity)
	}
}

func TestManifestCloneHandlesEmpty(t *testing.T) {
	if clone := Manifest(nil).Clone(); clone != nil {
		t.Fatalf("expected nil input to remain nil")
	}
	if clone := (Manifest{}).Clone(); clone != nil {
		t.Fatalf("expected empty manifest to return nil clone")
	}
}

func TestManifestLookups(t *testing.T) {
	m := Manifest{{ID: "a", Quantity: 2}, {ID: "b", Quantity: 5}}
	if !m.Contains("b") || m.Contains("c") {
		t.Fatalf("unexpected contains result")
	}
	if item, ok := m.Find("a"); !ok || item.Quantity != 2 {
		t.Fatalf("expected to find item a, got %+v", item)
	}
	if m.Count() != 7 {
		t.Fatalf("expected count 7, got %d", m.Count())
	}
	ids := m.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}
}
