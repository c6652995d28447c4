// ABOUTME: Strava push subscription endpoint
// ABOUTME: Subscription validation plus create/update/delete event handling
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/providers/strava"
	"github.com/harperreed/fitsync/sync"
)

// WebhookPath is where Strava delivers subscription events.
const WebhookPath = "/webhook/strava"

const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	deps        Deps
	source      StravaSource
	verifyToken string
}

func NewWebhookHandler(deps Deps, source StravaSource, verifyToken string) *WebhookHandler {
	return &WebhookHandler{deps: deps, source: source, verifyToken: verifyToken}
}

// RegisterRoutes mounts the validation and delivery endpoints.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Get(WebhookPath, h.validate)
	r.Post(WebhookPath, h.receive)
}

func (h *WebhookHandler) validate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if h.verifyToken == "" || q.Get("hub.verify_token") != h.verifyToken {
		h.deps.logger().Warn("strava webhook validation failed")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid verify token"})
		return
	}
	h.deps.logger().Info("strava webhook validated")
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": q.Get("hub.challenge")})
}

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	var event strava.WebhookEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if event.ObjectType != "activity" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	switch event.AspectType {
	case strava.AspectCreate, strava.AspectUpdate, strava.AspectDelete:
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	err := h.deps.runCycle(r.Context(), driverStravaWebhook, models.ServiceStravaWebhook, func(ctx context.Context, log *slog.Logger) (int, error) {
		return 0, h.handle(ctx, log.With("aspect", event.AspectType, "source_id", strconv.FormatInt(event.ObjectID, 10)), event)
	})
	switch {
	case errors.Is(err, sync.ErrNotConnected):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "not fully connected"})
	case err != nil:
		// Non-2xx makes Strava redeliver.
		h.deps.logger().Error("strava webhook event failed", "source_id", event.ObjectID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream failure"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *WebhookHandler) handle(ctx context.Context, log *slog.Logger, event strava.WebhookEvent) error {
	conn, err := h.deps.connect(ctx, sync.ServiceStrava)
	if err != nil {
		log.Error("cannot handle strava event", "error", err)
		return err
	}

	if event.AspectType == strava.AspectDelete {
		removed, err := h.deps.Syncer.DeleteActivity(ctx, sync.DeleteRequest{
			Source:     models.SourceStrava,
			SourceID:   strconv.FormatInt(event.ObjectID, 10),
			Token:      conn.googleToken,
			CalendarID: conn.calendarID,
		})
		if err != nil {
			return err
		}
		log.Info("handled strava delete", "removed", removed)
		return nil
	}

	activity, err := h.source.GetActivity(ctx, conn.providerToken, event.ObjectID)
	if err != nil {
		return fmt.Errorf("failed to fetch strava activity %d: %w", event.ObjectID, err)
	}
	res, err := h.deps.syncStrava(ctx, conn, *activity)
	if err != nil {
		return err
	}
	log.Info("handled strava event", "outcome", string(res.Outcome))
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
