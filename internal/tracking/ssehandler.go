package tracking

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	sseEventType     = "tracking-update"
	keepaliveEvery   = 30 * time.Second
	sseRetryInterval = 2000
)

// SSEHandler streams tracking state for one order to a browser.
type SSEHandler struct {
	hub       *Hub
	logger    aqm.Logger
	keepalive time.Duration
}

func NewSSEHandler(hub *Hub, logger aqm.Logger) *SSEHandler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &SSEHandler{hub: hub, logger: logger, keepalive: keepaliveEvery}
}

// ServeHTTP expects the order id in the "id" route parameter.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		aqm.RespondError(w, http.StatusBadRequest, "Missing order ID")
		return
	}

	session, err := h.hub.Acquire(orderID)
	if err != nil {
		h.logger.Error("cannot start tracking session", "order_id", orderID, "error", err)
		aqm.RespondError(w, http.StatusServiceUnavailable, "Tracking unavailable")
		return
	}
	defer h.hub.Release(orderID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	h.logger.Info("new tracking SSE connection", "order_id", orderID, "subscriber_id", subscriberID)

	updates := session.Subscribe(subscriberID)
	defer session.Unsubscribe(subscriberID)

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: %d\n\n", sseRetryInterval)
	flush(w)

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("tracking SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case st, ok := <-updates:
			if !ok {
				h.logger.Info("tracking session closed", "subscriber_id", subscriberID)
				return
			}
			data, err := json.Marshal(st)
			if err != nil {
				h.logger.Error("cannot encode tracking state", "error", err)
				continue
			}
			sendSSEEvent(w, sseEventType, string(data))
		}
	}
}

// sendSSEEvent writes one event, prefixing every data line.
func sendSSEEvent(w http.ResponseWriter, eventType string, data string) {
	data = strings.TrimSpace(data)

	fmt.Fprintf(w, "event: %s\n", eventType)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprintf(w, "\n")
	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
