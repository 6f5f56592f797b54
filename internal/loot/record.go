package loot

import (
	"fmt"
	"slices"

	"graveward/internal/entity"
	"graveward/internal/items"
)

// PendingGrant is an item already appended to a record's claimed set whose
// hand-off to the claimant's inventory has not been confirmed yet.
type PendingGrant struct {
	ItemID     string    `json:"itemId"`
	ClaimantID entity.ID `json:"claimantId"`
	Attempts   int       `json:"attempts"`
}

// DeathRecord is the durable trace of one death. ItemManifest never changes
// after the record is written and ClaimedItemIDs only grows.
type DeathRecord struct {
	ID                  string          `json:"id"`
	VictimID            entity.ID       `json:"victimId"`
	VictimKind          entity.Kind     `json:"victimKind"`
	KillerID            entity.ID       `json:"killerId,omitempty"`
	KillerKind          entity.Kind     `json:"killerKind,omitempty"`
	Position            entity.Position `json:"position"`
	TimestampTick       uint64          `json:"timestampTick"`
	ItemManifest        items.Manifest  `json:"itemManifest"`
	ClaimWindowExpiry   uint64          `json:"claimWindowExpiry"`
	ProtectedClaimantID entity.ID       `json:"protectedClaimantId,omitempty"`
	ClaimedItemIDs      []string        `json:"claimedItemIds"`
	PendingGrants       []PendingGrant  `json:"pendingGrants,omitempty"`
	ExpiresAtTick       uint64          `json:"expiresAtTick"`
	WindowAnnounced     bool            `json:"windowAnnounced"`
	Closed              bool            `json:"closed"`
}

// RecordID builds the storage key of a death. Both parts are zero padded so
// keys sort by victim and then by tick.
func RecordID(victim entity.ID, tick uint64) string {
	return fmt.Sprintf("%020d-%020d", uint64(victim), tick)
}

// Clone returns a deep copy of the record.
func (r DeathRecord) Clone() DeathRecord {
	cloned := r
	cloned.ItemManifest = r.ItemManifest.Clone()
	cloned.ClaimedItemIDs = slices.Clone(r.ClaimedItemIDs)
	cloned.PendingGrants = slices.Clone(r.PendingGrants)
	return cloned
}

// IsClaimed reports whether itemID already left the record.
func (r DeathRecord) IsClaimed(itemID string) bool {
	return slices.Contains(r.ClaimedItemIDs, itemID)
}

// Unclaimed lists the manifest items nobody has claimed yet.
func (r DeathRecord) Unclaimed() items.Manifest {
	var remaining items.Manifest
	for _, item := range r.ItemManifest {
		if !r.IsClaimed(item.ID) {
			remaining = append(remaining, item)
		}
	}
	return remaining
}

// ProtectedAt reports whether only the protected claimant may claim at tick.
func (r DeathRecord) ProtectedAt(tick uint64) bool {
	return r.ProtectedClaimantID != 0 && tick < r.ClaimWindowExpiry
}
