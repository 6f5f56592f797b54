package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"graveward/internal/config"
	"graveward/internal/deathstore"
	"graveward/internal/entity"
	"graveward/internal/items"
	"graveward/internal/loot"
)

const goblinID = entity.ID(1001)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	cfg.Storage.Backend = backend
	cfg.Storage.Path = filepath.Join(t.TempDir(), "deaths.db")
	cfg.World.NPCs = []config.NPCConfig{{ID: uint64(goblinID), Template: "goblin", X: 4, Y: 3}}
	cfg.World.NPCRespawnTicks = 3
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, Options{Logger: zap.NewNop(), Console: io.Discard})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

// post sends a request whose reply depends on the simulation loop and steps
// the clock until the handler answers.
func post(t *testing.T, a *App, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	json.NewEncoder(&payload).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &payload)
	resp := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Handler().ServeHTTP(resp, req)
	}()
	for i := 0; i < 100; i++ {
		select {
		case <-done:
			return resp
		default:
		}
		if a.Combat().Queue().Len() > 0 {
			if _, err := a.Clock().Step(context.Background()); err != nil {
				t.Fatalf("step: %v", err)
			}
			continue
		}
		select {
		case <-done:
			return resp
		case <-waitBriefly():
		}
	}
	<-done
	return resp
}

func TestKillAndClaimThroughHTTP(t *testing.T) {
	a := newTestApp(t, testConfig(t, deathstore.BackendMemory))
	ctx := context.Background()

	resp := post(t, a, "/world/join", map[string]any{"entityId": "1", "position": map[string]int{"x": 4, "y": 2}})
	if resp.Code != http.StatusOK {
		t.Fatalf("join: %d %s", resp.Code, resp.Body.String())
	}
	ear := items.Item{ID: "goblin-ear-1", Type: "goblin_ear", Quantity: 1}
	if err := a.World().Give(goblinID, ear); err != nil {
		t.Fatalf("give: %v", err)
	}

	resp = post(t, a, "/combat/attack", map[string]any{"attackerId": "1", "targetId": "1001"})
	if resp.Code != http.StatusOK {
		t.Fatalf("attack: %d %s", resp.Code, resp.Body.String())
	}

	var dead bool
	for i := 0; i < 400 && !dead; i++ {
		if _, err := a.Clock().Step(ctx); err != nil {
			t.Fatalf("step: %v", err)
		}
		_, dead = a.Loot().ActiveDeathRecord(goblinID)
	}
	if !dead {
		t.Fatalf("expected the goblin to die within 400 ticks")
	}
	record, _ := a.Loot().ActiveDeathRecord(goblinID)
	if record.ProtectedClaimantID != 1 {
		t.Fatalf("expected player 1 to be the protected claimant, got %d", record.ProtectedClaimantID)
	}
	if carried, _ := a.World().Inventory(goblinID); len(carried) != 0 {
		t.Fatalf("expected the goblin's items to move into the record, still carries %+v", carried)
	}

	claim := httptest.NewRecorder()
	var payload bytes.Buffer
	json.NewEncoder(&payload).Encode(map[string]any{"recordId": record.ID, "claimantId": "1", "itemId": ear.ID})
	a.Handler().ServeHTTP(claim, httptest.NewRequest(http.MethodPost, "/loot/claim", &payload))
	if claim.Code != http.StatusOK {
		t.Fatalf("claim: %d %s", claim.Code, claim.Body.String())
	}
	carried, _ := a.World().Inventory(1)
	if !carried.Contains(ear.ID) {
		t.Fatalf("expected player to carry the claimed item, got %+v", carried)
	}

	status := httptest.NewRecorder()
	a.Handler().ServeHTTP(status, httptest.NewRequest(http.MethodGet, "/combat/status?id=1", nil))
	var body struct {
		InCombat bool `json:"inCombat"`
	}
	json.Unmarshal(status.Body.Bytes(), &body)
	if body.InCombat {
		t.Fatalf("expected the session to end with the goblin's death")
	}

	for i := 0; i < 5; i++ {
		a.Clock().Step(ctx)
	}
	if current, _, _ := a.World().Vitals().Health(goblinID); current != 5 {
		t.Fatalf("expected the goblin to respawn at full health, got %d", current)
	}
}

func TestAttackCooldownFollowsWeaponSpeed(t *testing.T) {
	a := newTestApp(t, testConfig(t, deathstore.BackendMemory))

	if resp := post(t, a, "/world/join", map[string]any{"entityId": "1"}); resp.Code != http.StatusOK {
		t.Fatalf("join: %d %s", resp.Code, resp.Body.String())
	}
	if resp := post(t, a, "/combat/attack", map[string]any{"attackerId": "1", "targetId": "1001"}); resp.Code != http.StatusOK {
		t.Fatalf("first attack: %d %s", resp.Code, resp.Body.String())
	}
	resp := post(t, a, "/combat/attack", map[string]any{"attackerId": "1", "targetId": "1001"})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected an attack inside the 4 tick weapon speed to be rejected, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestDurableBackendsRecoverOpenRecords(t *testing.T) {
	for _, backend := range []string{deathstore.BackendBolt, deathstore.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			first, err := New(context.Background(), cfg, Options{Logger: zap.NewNop(), Console: io.Discard})
			if err != nil {
				t.Fatalf("new app: %v", err)
			}
			record := loot.DeathRecord{
				ID:                loot.RecordID(7, 3),
				VictimID:          7,
				VictimKind:        entity.KindPlayer,
				TimestampTick:     3,
				ItemManifest:      items.Manifest{{ID: "coin-1", Type: "coin", Quantity: 5}},
				ClaimWindowExpiry: 103,
				ExpiresAtTick:     303,
			}
			if err := first.store.Put(context.Background(), record); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := first.Close(context.Background()); err != nil {
				t.Fatalf("close: %v", err)
			}

			second := newTestApp(t, cfg)
			if _, ok := second.Loot().Record(record.ID); !ok {
				t.Fatalf("expected %s to be recovered", record.ID)
			}
		})
	}
}

func TestUnknownNPCTemplateFailsStartup(t *testing.T) {
	cfg := testConfig(t, deathstore.BackendMemory)
	cfg.World.NPCs = []config.NPCConfig{{ID: 9, Template: "dragon"}}
	if _, err := New(context.Background(), cfg, Options{Logger: zap.NewNop(), Console: io.Discard}); err == nil {
		t.Fatalf("expected startup to fail for an unknown template")
	}
}

func TestLatestTickKeepsNewest(t *testing.T) {
	l := newLatestTick()
	l.offer(1)
	l.offer(2)
	l.offer(3)
	if got := <-l.ch; got != 3 {
		t.Fatalf("expected newest tick 3, got %d", got)
	}
	select {
	case extra := <-l.ch:
		t.Fatalf("expected an empty mailbox, got %d", extra)
	default:
	}
}

func waitBriefly() <-chan time.Time {
	return time.After(5 * time.Millisecond)
}
