// Package net exposes the combat and loot operations over HTTP and streams
// published events to websocket subscribers.
package net

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	nethttp "net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/google/uuid"

	"graveward/internal/combat"
	"graveward/internal/entity"
	"graveward/internal/loot"
	"graveward/internal/platform/errors"
	"graveward/internal/stats"
	"graveward/internal/telemetry"
	"graveward/logging"
)

const maxBodyBytes = 1 << 16

// Combat is the slice of the orchestrator the transport needs. Submit is the
// only way commands reach the simulation loop.
type Combat interface {
	Submit(ctx context.Context, cmd combat.Command) (combat.CommandResult, error)
	IsInCombat(id entity.ID) bool
}

type Loot interface {
	Claim(ctx context.Context, req loot.ClaimRequest) loot.ClaimResult
	ActiveDeathRecord(victim entity.ID) (loot.DeathRecord, bool)
	OpenRecords() []string
}

// Directory resolves entity kinds and tracks connections.
type Directory interface {
	Kind(id entity.ID) (entity.Kind, bool)
	Disconnect(ctx context.Context, id entity.ID, tick uint64, reason string) bool
}

// Lifecycle lets players enter the world and come back after dying.
type Lifecycle interface {
	SpawnPlayer(ctx context.Context, id entity.ID, template string, pos entity.Position, tick uint64) error
	Respawn(ctx context.Context, id entity.ID, tick uint64) error
}

type TickSource interface {
	CurrentTick() uint64
}

// Deps bundles what the HTTP surface talks to.
type Deps struct {
	Combat    Combat
	Loot      Loot
	Directory Directory
	Lifecycle Lifecycle
	Ticks     TickSource
	Stream    *Stream
	Counters  *telemetry.Counters
	Router    *logging.Router
	Logger    telemetry.Logger
}

type HTTPHandlerConfig struct {
	// RequestTimeout bounds how long a handler waits for the simulation loop.
	RequestTimeout time.Duration
	// EnablePprof mounts the runtime profiler under /debug/pprof/.
	EnablePprof bool
}

type handler struct {
	deps    Deps
	timeout time.Duration
}

type attackMessage struct {
	RequestID  string `json:"requestId"`
	AttackerID string `json:"attackerId"`
	TargetID   string `json:"targetId"`
	Tick       uint64 `json:"tick"`
	Style      string `json:"style,omitempty"`
}

type entityMessage struct {
	RequestID string `json:"requestId"`
	EntityID  string `json:"entityId"`
	Tick      uint64 `json:"tick"`
	// Action is only read by /combat/action.
	Action string `json:"action,omitempty"`
}

type claimMessage struct {
	RequestID  string `json:"requestId"`
	RecordID   string `json:"recordId"`
	ClaimantID string `json:"claimantId"`
	ItemID     string `json:"itemId"`
}

type joinMessage struct {
	EntityID string          `json:"entityId"`
	Template string          `json:"template"`
	Position entity.Position `json:"position"`
}

type commandReply struct {
	RequestID string         `json:"requestId"`
	Verdict   combat.Verdict `json:"verdict"`
	Error     *errorBody     `json:"error,omitempty"`
}

type errorBody struct {
	Code     errors.Code       `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func NewHTTPHandler(deps Deps, cfg HTTPHandlerConfig) nethttp.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	h := &handler{deps: deps, timeout: timeout}

	mux := nethttp.NewServeMux()
	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diagnostics", h.diagnostics)
	mux.HandleFunc("/combat/attack", h.attack)
	mux.HandleFunc("/combat/disengage", h.disengage)
	mux.HandleFunc("/combat/disconnect", h.disconnect)
	mux.HandleFunc("/combat/action", h.action)
	mux.HandleFunc("/combat/status", h.status)
	mux.HandleFunc("/loot/claim", h.claim)
	mux.HandleFunc("/deaths/active", h.activeDeath)
	if deps.Lifecycle != nil {
		mux.HandleFunc("/world/join", h.join)
		mux.HandleFunc("/world/respawn", h.respawn)
	}
	if deps.Stream != nil {
		mux.HandleFunc("/ws", deps.Stream.Handle)
	}
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func (h *handler) diagnostics(w nethttp.ResponseWriter, r *nethttp.Request) {
	payload := struct {
		Status      string              `json:"status"`
		ServerTime  int64               `json:"serverTime"`
		Tick        uint64              `json:"tick"`
		OpenRecords int                 `json:"openRecords"`
		Metrics     map[string]uint64   `json:"metrics"`
		Events      logging.RouterStats `json:"events"`
		Subscribers int                 `json:"subscribers"`
	}{
		Status:     "ok",
		ServerTime: time.Now().UnixMilli(),
		Tick:       h.currentTick(),
		Events:     h.deps.Router.Stats(),
	}
	if h.deps.Loot != nil {
		payload.OpenRecords = len(h.deps.Loot.OpenRecords())
	}
	if h.deps.Counters != nil {
		payload.Metrics = h.deps.Counters.Snapshot()
	}
	if h.deps.Stream != nil {
		payload.Subscribers = h.deps.Stream.Subscribers()
	}
	writeJSON(w, nethttp.StatusOK, payload)
}

func (h *handler) attack(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return
	}
	var msg attackMessage
	if !decode(w, r, &msg) {
		return
	}
	attacker, ok := h.parseEntity(w, msg.AttackerID, "attackerId")
	if !ok {
		return
	}
	target, ok := h.parseEntity(w, msg.TargetID, "targetId")
	if !ok {
		return
	}
	req := combat.AttackRequest{
		RequestID:    requestID(msg.RequestID),
		AttackerID:   attacker,
		AttackerKind: h.kindOf(attacker),
		TargetID:     target,
		TargetKind:   h.kindOf(target),
		Tick:         h.tickOr(msg.Tick),
		Origin:       combat.OriginClient,
	}
	if msg.Style != "" {
		style, err := stats.ParseStyle(msg.Style)
		if err != nil {
			writeError(w, req.RequestID, errors.Wrap(errors.CodeInvalidArgument, "invalid style", err))
			return
		}
		req.Style = &style
	}
	h.submit(w, r, req.RequestID, combat.Command{Type: combat.CommandAttack, Attack: req})
}

func (h *handler) disengage(w nethttp.ResponseWriter, r *nethttp.Request) {
	h.entityCommand(w, r, combat.CommandDisengage, combat.ActionDisengage)
}

func (h *handler) disconnect(w nethttp.ResponseWriter, r *nethttp.Request) {
	// Disconnects bypass the guard, so the request carries no action.
	h.entityCommand(w, r, combat.CommandDisconnect, "")
}

// action accepts eat and flee requests.
func (h *handler) action(w nethttp.ResponseWriter, r *nethttp.Request) {
	h.entityCommand(w, r, combat.CommandAction, "")
}

func (h *handler) entityCommand(w nethttp.ResponseWriter, r *nethttp.Request, cmdType combat.CommandType, action combat.Action) {
	if r.Method != nethttp.MethodPost {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return
	}
	var msg entityMessage
	if !decode(w, r, &msg) {
		return
	}
	id, ok := h.parseEntity(w, msg.EntityID, "entityId")
	if !ok {
		return
	}
	if cmdType == combat.CommandAction {
		action = combat.Action(strings.TrimSpace(msg.Action))
		if action != combat.ActionEat && action != combat.ActionFlee {
			httpError(w, "action must be eat or flee", nethttp.StatusBadRequest)
			return
		}
	}
	req := combat.Request{
		ID:         requestID(msg.RequestID),
		EntityID:   id,
		EntityKind: h.kindOf(id),
		Tick:       h.tickOr(msg.Tick),
		Action:     action,
		Origin:     combat.OriginClient,
	}
	if cmdType == combat.CommandDisconnect && h.deps.Directory != nil {
		h.deps.Directory.Disconnect(r.Context(), id, req.Tick, "client_request")
	}
	h.submit(w, r, req.ID, combat.Command{Type: cmdType, Request: req})
}

func (h *handler) submit(w nethttp.ResponseWriter, r *nethttp.Request, id string, cmd combat.Command) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	result, err := h.deps.Combat.Submit(ctx, cmd)
	if err != nil {
		writeError(w, id, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, commandReply{RequestID: id, Verdict: result.Verdict})
}

func (h *handler) status(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return
	}
	id, ok := h.parseEntity(w, r.URL.Query().Get("id"), "id")
	if !ok {
		return
	}
	writeJSON(w, nethttp.StatusOK, struct {
		ID       string `json:"id"`
		InCombat bool   `json:"inCombat"`
	}{ID: id.String(), InCombat: h.deps.Combat.IsInCombat(id)})
}

func (h *handler) claim(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return
	}
	var msg claimMessage
	if !decode(w, r, &msg) {
		return
	}
	claimant, ok := h.parseEntity(w, msg.ClaimantID, "claimantId")
	if !ok {
		return
	}
	if strings.TrimSpace(msg.RecordID) == "" || strings.TrimSpace(msg.ItemID) == "" {
		httpError(w, "recordId and itemId are required", nethttp.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	result := h.deps.Loot.Claim(ctx, loot.ClaimRequest{
		RequestID:    requestID(msg.RequestID),
		RecordID:     msg.RecordID,
		ClaimantID:   claimant,
		ClaimantKind: h.kindOf(claimant),
		ItemID:       msg.ItemID,
		Tick:         h.currentTick(),
	})
	writeJSON(w, claimStatusCode(result.Status), result)
}

func claimStatusCode(status loot.ClaimStatus) int {
	switch status {
	case loot.ClaimGranted:
		return nethttp.StatusOK
	case loot.ClaimGone:
		return nethttp.StatusGone
	case loot.ClaimUnknownItem:
		return nethttp.StatusNotFound
	case loot.ClaimFailed:
		return nethttp.StatusServiceUnavailable
	default:
		return nethttp.StatusConflict
	}
}

func (h *handler) activeDeath(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return
	}
	victim, ok := h.parseEntity(w, r.URL.Query().Get("victim"), "victim")
	if !ok {
		return
	}
	record, found := h.deps.Loot.ActiveDeathRecord(victim)
	if !found {
		writeError(w, "", errors.WithMetadata(errors.CodeNotFound, "no active death record", map[string]string{"victim": victim.String()}))
		return
	}
	writeJSON(w, nethttp.StatusOK, record)
}

func (h *handler) join(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return
	}
	var msg joinMessage
	if !decode(w, r, &msg) {
		return
	}
	id, ok := h.parseEntity(w, msg.EntityID, "entityId")
	if !ok {
		return
	}
	template := strings.TrimSpace(msg.Template)
	if template == "" {
		template = "adventurer"
	}
	if err := h.deps.Lifecycle.SpawnPlayer(r.Context(), id, template, msg.Position, h.currentTick()); err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, nethttp.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

func (h *handler) respawn(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return
	}
	var msg entityMessage
	if !decode(w, r, &msg) {
		return
	}
	id, ok := h.parseEntity(w, msg.EntityID, "entityId")
	if !ok {
		return
	}
	if err := h.deps.Lifecycle.Respawn(r.Context(), id, h.currentTick()); err != nil {
		writeError(w, msg.RequestID, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

func (h *handler) parseEntity(w nethttp.ResponseWriter, value, field string) (entity.ID, bool) {
	id, err := entity.ParseID(value)
	if err != nil || id == 0 {
		httpError(w, "invalid "+field, nethttp.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *handler) kindOf(id entity.ID) entity.Kind {
	if h.deps.Directory == nil {
		return entity.KindUnknown
	}
	kind, _ := h.deps.Directory.Kind(id)
	return kind
}

func (h *handler) currentTick() uint64 {
	if h.deps.Ticks == nil {
		return 0
	}
	return h.deps.Ticks.CurrentTick()
}

// tickOr stamps requests that carry no client tick with the server's tick.
func (h *handler) tickOr(tick uint64) uint64 {
	if tick != 0 {
		return tick
	}
	return h.currentTick()
}

func requestID(supplied string) string {
	if supplied = strings.TrimSpace(supplied); supplied != "" {
		return supplied
	}
	return uuid.NewString()
}

func decode(w nethttp.ResponseWriter, r *nethttp.Request, into any) bool {
	if r.Body == nil {
		httpError(w, "missing payload", nethttp.StatusBadRequest)
		return false
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(into); err != nil {
		httpError(w, "invalid payload", nethttp.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w nethttp.ResponseWriter, id string, err error) {
	body := &errorBody{Code: errors.CodeOf(err), Message: err.Error()}
	var domainErr *errors.Error
	if stderrors.As(err, &domainErr) {
		body.Metadata = domainErr.Metadata
	}
	status := body.Code.HTTPStatus()
	if stderrors.Is(err, context.DeadlineExceeded) {
		status = nethttp.StatusGatewayTimeout
	}
	writeJSON(w, status, commandReply{RequestID: id, Error: body})
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
