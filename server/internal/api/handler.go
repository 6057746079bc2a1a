package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/obsidianstack/slacknotify/pkg/types"
	"github.com/obsidianstack/slacknotify/server/internal/config"
	"github.com/obsidianstack/slacknotify/server/internal/history"
	"github.com/obsidianstack/slacknotify/server/internal/metrics"
	"github.com/obsidianstack/slacknotify/server/internal/sysnotify"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Executor runs one notification. *notification.Notifier implements it.
type Executor interface {
	Run(ctx context.Context, name string, ectx *types.EventContext, cfg config.Notification) (history.Record, error)
}

// Ingest stores streams and messages for backlog lookups. *storage.Store
// implements it.
type Ingest interface {
	UpsertStream(ctx context.Context, st types.Stream) error
	AppendMessage(ctx context.Context, m types.MessageSummary) (types.MessageSummary, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the API. Config, Executor and History are
// required; a nil Ingest, System or Metrics disables the routes using it.
type Deps struct {
	Config   *config.Holder
	Executor Executor
	History  *history.Store
	Ingest   Ingest
	System   sysnotify.Store
	Metrics  *metrics.Registry
	Log      *slog.Logger
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	d   Deps
	mux *http.ServeMux
}

// New creates a Handler wired to d and registers all routes.
func New(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	h := &Handler{d: d, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/notifications", h.listNotifications)
	h.mux.HandleFunc("/api/v1/notifications/", h.execute) // subtree, extracts {name}
	h.mux.HandleFunc("/api/v1/deliveries", h.listDeliveries)
	h.mux.HandleFunc("/api/v1/deliveries/", h.getDelivery)
	h.mux.HandleFunc("/api/v1/streams", h.upsertStream)
	h.mux.HandleFunc("/api/v1/messages", h.appendMessage)
	h.mux.HandleFunc("/api/v1/system/notifications", h.listSystemNotifications)
	h.mux.HandleFunc("/api/v1/system/notifications/", h.dismissSystemNotification)
	if d.Metrics != nil {
		h.mux.Handle("/metrics", d.Metrics.Handler())
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cfg := h.d.Config.Get()
	resp := HealthResponse{
		Status:            "ok",
		NodeID:            cfg.Server.NodeID,
		Storage:           "disabled",
		NotificationCount: len(cfg.Notifications),
		DeliveryCount:     h.d.History.Count(),
	}
	if h.d.Ingest != nil {
		resp.Storage = "ok"
		if err := h.d.Ingest.Ping(r.Context()); err != nil {
			h.d.Log.Warn("api: storage ping", "err", err)
			resp.Storage = "unreachable"
			resp.Status = "degraded"
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cfg := h.d.Config.Get()
	out := make([]NotificationResponse, 0, len(cfg.Notifications))
	for _, name := range cfg.Names() {
		out = append(out, toNotificationResponse(name, cfg.Notifications[name]))
	}
	jsonResp(w, http.StatusOK, out)
}

// execute serves POST /api/v1/notifications/{name}/execute. The body is a
// types.EventContext; an empty body runs with an empty context.
func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/notifications/")
	if rest == "" {
		h.listNotifications(w, r)
		return
	}
	name, ok := strings.CutSuffix(rest, "/execute")
	if !ok || name == "" || strings.Contains(name, "/") {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cfg, ok := h.d.Config.Notification(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "notification not found")
		return
	}

	var ectx types.EventContext
	if err := decodeBody(r, &ectx); err != nil && !errors.Is(err, io.EOF) {
		jsonErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := h.d.Executor.Run(r.Context(), name, &ectx, cfg)
	if err != nil {
		jsonResp(w, http.StatusBadGateway, ExecuteFailure{Error: err.Error(), Delivery: rec})
		return
	}
	jsonResp(w, http.StatusOK, rec)
}

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildDeliveries(h.d.History))
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/deliveries/")
	if id == "" {
		h.listDeliveries(w, r)
		return
	}

	rec, ok := h.d.History.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "delivery not found")
		return
	}
	jsonResp(w, http.StatusOK, rec)
}

func (h *Handler) upsertStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.d.Ingest == nil {
		jsonErr(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	var st types.Stream
	if err := decodeBody(r, &st); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if st.ID == "" {
		jsonErr(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.d.Ingest.UpsertStream(r.Context(), st); err != nil {
		h.d.Log.Error("api: upsert stream", "stream", st.ID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not store stream")
		return
	}
	jsonResp(w, http.StatusCreated, st)
}

func (h *Handler) appendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.d.Ingest == nil {
		jsonErr(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	var m types.MessageSummary
	if err := decodeBody(r, &m); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if m.StreamID == "" {
		jsonErr(w, http.StatusBadRequest, "stream_id is required")
		return
	}

	stored, err := h.d.Ingest.AppendMessage(r.Context(), m)
	if err != nil {
		h.d.Log.Error("api: append message", "stream", m.StreamID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not store message")
		return
	}
	jsonResp(w, http.StatusCreated, stored)
}

func (h *Handler) listSystemNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.d.System == nil {
		jsonResp(w, http.StatusOK, []sysnotify.Notification{})
		return
	}

	list, err := h.d.System.SystemNotifications(r.Context())
	if err != nil {
		h.d.Log.Error("api: list system notifications", "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not list system notifications")
		return
	}
	if list == nil {
		list = []sysnotify.Notification{}
	}
	jsonResp(w, http.StatusOK, list)
}

func (h *Handler) dismissSystemNotification(w http.ResponseWriter, r *http.Request) {
	typ := strings.TrimPrefix(r.URL.Path, "/api/v1/system/notifications/")
	if typ == "" {
		h.listSystemNotifications(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.d.System == nil {
		jsonErr(w, http.StatusNotFound, "system notification not found")
		return
	}

	ok, err := h.d.System.DismissSystemNotification(r.Context(), typ)
	if err != nil {
		h.d.Log.Error("api: dismiss system notification", "type", typ, "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not dismiss system notification")
		return
	}
	if !ok {
		jsonErr(w, http.StatusNotFound, "system notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ----------------------------------------------------------------

// BuildDeliveries returns the recent delivery records of hs.
func BuildDeliveries(hs *history.Store) DeliveriesResponse {
	recs := hs.List()
	if recs == nil {
		recs = []history.Record{}
	}
	return DeliveriesResponse{
		Deliveries:  recs,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func toNotificationResponse(name string, n config.Notification) NotificationResponse {
	return NotificationResponse{
		Name:                 name,
		Channel:              n.Channel,
		UserName:             n.UserName,
		Color:                n.Color,
		IconEmoji:            n.IconEmoji,
		IconURL:              n.IconURL,
		NotifyChannel:        n.NotifyChannel,
		LinkNames:            n.LinkNames,
		CustomMessage:        n.CustomMessage != "",
		BacklogItemMessage:   n.BacklogItemMessage != "",
		BacklogSize:          n.BacklogSize,
		ProxyConfigured:      n.Proxy != "",
		WebhookURLConfigured: n.WebhookURL != "",
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
