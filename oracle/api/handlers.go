package api

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/GPTx-global/rofl-oracle/oracle/health"
	"github.com/GPTx-global/rofl-oracle/oracle/log"
	"github.com/GPTx-global/rofl-oracle/oracle/telemetry"
	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

const maxBodyBytes = 1 << 16

type Handler struct {
	queue    Queue
	reader   ObservationReader
	reporter HealthReporter
}

type errorResponse struct {
	Error string `json:"error"`
}

type submitRequest struct {
	Value *types.Value `json:"value"`
}

type submitResponse struct {
	Message     string `json:"message"`
	QueueLength int    `json:"queueLength"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type queueStatus struct {
	Pending  int `json:"pending"`
	History  int `json:"history"`
	Capacity int `json:"capacity"`
}

type detailedStatusResponse struct {
	Healthy bool                     `json:"healthy"`
	Queue   queueStatus              `json:"queue"`
	Checks  map[string]health.Status `json:"checks"`
}

func (h *Handler) Greeting(w http.ResponseWriter, _ *http.Request) {
	h.jsonResponse(w, http.StatusOK, statusResponse{Status: "oracled relay is running"})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.jsonResponse(w, http.StatusOK, statusResponse{Status: "healthy"})
}

func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	res := detailedStatusResponse{
		Healthy: true,
		Queue: queueStatus{
			Pending:  h.queue.Len(),
			History:  h.queue.HistoryLen(),
			Capacity: h.queue.Capacity(),
		},
		Checks: map[string]health.Status{},
	}
	if h.reporter != nil {
		res.Healthy = h.reporter.IsHealthy()
		res.Checks = h.reporter.GetStatus()
	}

	h.jsonResponse(w, http.StatusOK, res)
}

// Submit validates and queues one observation.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		telemetry.IncrCounter(1, telemetry.MetricAPI, telemetry.MetricRejected)
		h.errorResponse(w, http.StatusBadRequest, "Invalid value: "+err.Error())
		return
	}

	if req.Value == nil {
		telemetry.IncrCounter(1, telemetry.MetricAPI, telemetry.MetricRejected)
		h.errorResponse(w, http.StatusBadRequest, "Value is required")
		return
	}

	value := *req.Value
	if !value.FitsSubmit() {
		telemetry.IncrCounter(1, telemetry.MetricAPI, telemetry.MetricRejected)
		h.errorResponse(w, http.StatusBadRequest, "Value exceeds the uint128 range")
		return
	}

	length, err := h.queue.Enqueue(value)
	if err != nil {
		if errors.Is(err, types.ErrQueueFull) {
			log.Warnf("Rejected observation %s: %v", value, err)
			telemetry.IncrCounter(1, telemetry.MetricAPI, telemetry.MetricRejected)
			h.errorResponse(w, http.StatusServiceUnavailable, "Pending queue is full")
			return
		}
		log.Errorf("Failed to queue observation %s: %v", value, err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to queue observation")
		return
	}

	log.Infof("Queued observation: %s, queue length: %d", value, length)

	h.jsonResponse(w, http.StatusOK, submitResponse{
		Message:     "Observation queued for submission",
		QueueLength: length,
	})
}

// LastObservationLocal returns the newest confirmed submission or null.
func (h *Handler) LastObservationLocal(w http.ResponseWriter, _ *http.Request) {
	value, ok := h.queue.LastHistorical()
	if !ok {
		h.jsonResponse(w, http.StatusOK, nil)
		return
	}
	h.jsonResponse(w, http.StatusOK, value)
}

// LastObservation reads the contract through the signer.
func (h *Handler) LastObservation(w http.ResponseWriter, r *http.Request) {
	observation, err := h.reader.LastObservation(r.Context())
	if err != nil {
		log.Errorf("Error getting last observation: %v", err)
		h.errorResponse(w, http.StatusInternalServerError, "Failed to get last observation")
		return
	}
	h.jsonResponse(w, http.StatusOK, observation)
}

// Delete removes the most recently queued observation and returns it, or null.
func (h *Handler) Delete(w http.ResponseWriter, _ *http.Request) {
	value, ok := h.queue.PopTail()
	if !ok {
		h.jsonResponse(w, http.StatusOK, nil)
		return
	}

	log.Infof("Deleted queued observation: %s, queue length: %d", value, h.queue.Len())
	h.jsonResponse(w, http.StatusOK, value)
}

func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	h.errorResponse(w, http.StatusNotFound, "Not found")
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	h.errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (h *Handler) jsonResponse(w http.ResponseWriter, code int, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("failed to encode response: %v", err)
		h.errorResponse(w, http.StatusInternalServerError, "error generating response")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	if _, err := w.Write(encoded); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, code int, message string) {
	encoded, err := json.Marshal(errorResponse{Error: message})
	if err != nil {
		log.Errorf("failed to encode error message %q: %v", message, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	if _, err := w.Write(encoded); err != nil {
		log.Errorf("failed to send error response: %v", err)
	}
}
