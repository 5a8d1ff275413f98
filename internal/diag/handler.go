package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

type TicketSource interface {
	Snapshot() domain.Ticket
}

type ConnectivitySource interface {
	Online() bool
	OfflineSince() *time.Time
}

type ExposureSource interface {
	Snapshot(offline bool, offlineSince *time.Time) domain.ExposureSnapshot
	RecoveryReport() *domain.RecoveryReport
}

type QueueDepther interface {
	Depth(ctx context.Context) (int, error)
}

// statusResponse is the one-call view a floor manager checks when a
// terminal is acting up.
type statusResponse struct {
	Online       bool                    `json:"online"`
	Ticket       domain.Ticket           `json:"ticket"`
	Exposure     domain.ExposureSnapshot `json:"exposure"`
	Recovery     *domain.RecoveryReport  `json:"recovery_report,omitempty"`
	QueueDepth   int                     `json:"queue_depth"`
	QueueHealthy bool                    `json:"queue_healthy"`
}

// Handler serves the local diagnostics API. It binds to localhost only;
// nothing here is authenticated.
type Handler struct {
	tickets TicketSource
	conn    ConnectivitySource
	guard   ExposureSource
	queue   QueueDepther
}

func NewHandler(tickets TicketSource, conn ConnectivitySource, guard ExposureSource, queue QueueDepther) *Handler {
	return &Handler{tickets: tickets, conn: conn, guard: guard, queue: queue}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.status)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	online := h.conn.Online()
	since := h.conn.OfflineSince()

	resp := statusResponse{
		Online:       online,
		Ticket:       h.tickets.Snapshot(),
		Exposure:     h.guard.Snapshot(!online, since),
		Recovery:     h.guard.RecoveryReport(),
		QueueHealthy: true,
	}
	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("queue depth unavailable")
		resp.QueueHealthy = false
	} else {
		resp.QueueDepth = depth
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
