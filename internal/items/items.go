// Package items holds the item vocabulary exchanged with the inventory
// collaborator. Stacking and slot rules live with that collaborator.
package items

// Item is a single carried item instance. ID is unique per instance and is
// what claims refer to.
type Item struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

// Manifest is an ordered snapshot of items.
type Manifest []Item

// Clone returns a deep copy of the manifest.
func (m Manifest) Clone() Manifest {
	if len(m) == 0 {
		return nil
	}
	cloned := make(Manifest, len(m))
	copy(cloned, m)
	return cloned
}

func (m Manifest) Find(id string) (Item, bool) {
	for _, item := range m {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

func (m Manifest) Contains(id string) bool {
	_, ok := m.Find(id)
	return ok
}

// Count sums the quantities of every item.
func (m Manifest) Count() int {
	total := 0
	for _, item := range m {
		total += item.Quantity
	}
	return total
}

func (m Manifest) IDs() []string {
	if len(m) == 0 {
		return nil
	}
	ids := make([]string, 0, len(m))
	for _, item := range m {
		ids = append(ids, item.ID)
	}
	return ids
}
