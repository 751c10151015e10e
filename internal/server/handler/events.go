// Package handler provides the HTTP handlers for the analytics refresh service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

// EventSink consumes bus events. Ingestion is fire-and-forget: the sink
// swallows downstream failures, so accepting an event never fails once it
// parses.
type EventSink interface {
	HandleEvent(ctx context.Context, event core.BusEvent)
}

// EventHandler ingests billing bus events posted over HTTP.
type EventHandler struct {
	sink   EventSink
	logger *slog.Logger
}

// NewEventHandler creates an event ingestion handler.
func NewEventHandler(sink EventSink, logger *slog.Logger) *EventHandler {
	return &EventHandler{sink: sink, logger: logger}
}

// Handle decodes a bus event and hands it to the sink. Malformed payloads get
// a 400; everything else is accepted with a 202, because failures are
// reported via logs rather than back to the event producer.
func (h *EventHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var event core.BusEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Error("could not parse bus event", "error", err)
		http.Error(w, "Could not parse event", http.StatusBadRequest)
		return
	}
	if event.EventType == "" {
		http.Error(w, "Missing event type", http.StatusBadRequest)
		return
	}

	h.sink.HandleEvent(r.Context(), event)
	w.WriteHeader(http.StatusAccepted)
}
