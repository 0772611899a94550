// Package handler exposes the sync worker to local admin tools over HTTP and
// gRPC.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	"github.com/fekuna/omnipos-sync/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Syncer is the part of the worker the admin surfaces drive.
type Syncer interface {
	Status() worker.Status
	TriggerNow() error
}

type SyncHandler struct {
	sync   Syncer
	outbox outbox.UseCase
	logger logger.ZapLogger
}

func NewSyncHandler(sync Syncer, ob outbox.UseCase, log logger.ZapLogger) *SyncHandler {
	return &SyncHandler{
		sync:   sync,
		outbox: ob,
		logger: log,
	}
}

type retryRequest struct {
	OpIDs []string `json:"op_ids"`
}

type retryResponse struct {
	Retried  int64 `json:"retried"`
	Requeued int64 `json:"requeued"`
}

func (h *SyncHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", h.Health)

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/stats", h.GetStats)
		r.Post("/trigger", h.Trigger)
		r.Post("/retry", h.Retry)
	})

	return r
}

func (h *SyncHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": h.sync.Status().Online,
	})
}

func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sync.Status())
}

func (h *SyncHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.outbox.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to read outbox stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	err := h.sync.TriggerNow()
	switch {
	case errors.Is(err, worker.ErrCycleInFlight):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, worker.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
	}
}

// Retry requeues error rows under the cap and, when op ids are given, those
// rows regardless of their tries.
func (h *SyncHandler) Retry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var res retryResponse
	var err error
	if res.Retried, err = h.outbox.RetryErrorOperations(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if res.Requeued, err = h.outbox.Requeue(r.Context(), req.OpIDs); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SyncHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		h.logger.Debug("admin request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
