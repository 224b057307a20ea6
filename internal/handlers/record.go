package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/textor-gateway/internal/audio"
	"github.com/codebuildervaibhav/textor-gateway/internal/lifecycle"
)

// Control messages on the recording socket. Binary frames carry raw
// 16-bit little-endian PCM chunks.
const (
	recordCtlEnd    = "END"
	recordCtlDenied = "DENIED"
	recordCtlLang   = "LANG "
)

// RecordHandler receives a live microphone stream over WebSocket and
// turns it into a submission when the browser signals END.
type RecordHandler struct {
	manager *lifecycle.Manager
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(manager *lifecycle.Manager) *RecordHandler {
	return &RecordHandler{manager: manager}
}

// Handle processes one recording session. The capture buffers are
// released on every exit path, including errors and denial.
func (h *RecordHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	recorder := audio.NewRecorder()
	recorder.Start()
	defer recorder.Abort()

	var languageCode string

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Printf("Recording socket read error: %v", err)
			return
		}

		if messageType == websocket.BinaryMessage {
			if err := recorder.Write(message); err != nil {
				writeRecordError(c, err.Error(), "ERR_CAPTURE")
				return
			}
			continue
		}
		if messageType != websocket.TextMessage {
			continue
		}

		switch msg := string(message); {
		case msg == recordCtlEnd:
			h.finalize(c, recorder, languageCode)
			return

		case msg == recordCtlDenied:
			// Browser relayed a getUserMedia rejection.
			writeRecordError(c, "Microphone access was denied, grant permission and try again", "ERR_PERMISSION")
			return

		case strings.HasPrefix(msg, recordCtlLang):
			languageCode = strings.TrimSpace(strings.TrimPrefix(msg, recordCtlLang))
		}
	}
}

// finalize encodes the capture and starts the submission.
func (h *RecordHandler) finalize(c *websocket.Conn, recorder *audio.Recorder, languageCode string) {
	clip, err := recorder.Stop()
	if err != nil {
		writeRecordError(c, err.Error(), "ERR_VALIDATION")
		return
	}

	job := h.manager.Begin(clip.Data, clip.ContentType(), "recording.wav", languageCode)
	log.Printf("Recording finalized into submission %s (%.1fs captured)", job.ID, clip.Duration().Seconds())

	if err := c.WriteJSON(map[string]interface{}{
		"job_id": job.ID,
		"state":  h.manager.State(),
	}); err != nil {
		log.Printf("Recording socket write error: %v", err)
	}
}

func writeRecordError(c *websocket.Conn, message, code string) {
	if err := c.WriteJSON(map[string]string{"error": message, "code": code}); err != nil {
		log.Printf("Recording socket write error: %v", err)
	}
}
