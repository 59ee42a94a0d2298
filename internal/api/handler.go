package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/engine"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/message"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/metrics"
)

const maxBatchSize = 100

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng *engine.Engine
	mux *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine) http.Handler {
	h := &Handler{eng: eng, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/messages", h.processMessage)
	h.mux.HandleFunc("POST /v1/messages/batch", h.processBatch)
	h.mux.HandleFunc("GET /v1/features", h.listFeatures)
	h.mux.HandleFunc("GET /v1/features/{id}/transactions/{tx_id}", h.transactionStatus)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/messages — synchronous single-message processing.
func (h *Handler) processMessage(w http.ResponseWriter, r *http.Request) {
	var msg message.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if msg.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "tx_id is required")
		return
	}
	msg.ReceivedAt = time.Now()

	res, err := h.eng.ProcessSync(r.Context(), &msg)
	switch {
	case errors.Is(err, engine.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, engine.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/messages/batch — async batch processing (up to 100 messages).
// Replies are only delivered through the sink, so without one the batch
// would be processed and its replies lost.
func (h *Handler) processBatch(w http.ResponseWriter, r *http.Request) {
	if !h.eng.HasSink() {
		writeError(w, http.StatusServiceUnavailable, "batch processing needs a reply sink; enable kafka or use POST /v1/messages")
		return
	}
	var msgs []*message.Message
	if err := json.NewDecoder(r.Body).Decode(&msgs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(msgs) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one message")
		return
	}
	if len(msgs) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(msgs), maxBatchSize))
		return
	}
	for i, m := range msgs {
		if m == nil || m.TransactionID == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("messages[%d]: tx_id is required", i))
			return
		}
	}

	now := time.Now()
	jobID := uuid.New().String()
	queued := 0
	for _, m := range msgs {
		m.ReceivedAt = now
		if h.eng.ProcessAsync(m) {
			queued++
		}
	}
	slog.Info("batch accepted", "job_id", jobID, "total", len(msgs), "queued", queued)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"total":    len(msgs),
		"queued":   queued,
		"rejected": len(msgs) - queued,
	})
}

// GET /v1/features — list registered features.
func (h *Handler) listFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"features": h.eng.Features(),
	})
}

// GET /v1/features/{id}/transactions/{tx_id} — whether a transaction was already handled.
func (h *Handler) transactionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid feature id %q", r.PathValue("id")))
		return
	}
	txID := r.PathValue("tx_id")

	processed, err := h.eng.Processed(uint32(id), txID)
	switch {
	case errors.Is(err, engine.ErrNotTracked):
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feature_id": id,
		"tx_id":      txID,
		"processed":  processed,
	})
}

// GET /healthz — always 200 (liveness check).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if message queue >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
