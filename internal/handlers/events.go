package handlers

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/textor-gateway/internal/lifecycle"
)

// eventPushInterval bounds how often buffered events are flushed to a
// subscriber.
const eventPushInterval = 500 * time.Millisecond

// EventsHandler streams lifecycle events (state changes, upload
// progress, errors, results) to the browser.
type EventsHandler struct {
	events *lifecycle.EventBus
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(events *lifecycle.EventBus) *EventsHandler {
	return &EventsHandler{events: events}
}

// Handle pushes every event published after the connection was opened.
func (h *EventsHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var since int64
	ticker := time.NewTicker(eventPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, event := range h.events.Since(since) {
				if err := c.WriteJSON(event); err != nil {
					log.Printf("Events socket write error: %v", err)
					return
				}
				since = event.Seq
			}
		}
	}
}
