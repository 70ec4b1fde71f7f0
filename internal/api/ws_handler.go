package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/scry-practice/internal/notify"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
)

// JobSubscriber attaches to the push stream of a job.
type JobSubscriber interface {
	Subscribe(ctx context.Context, jobID uuid.UUID) (*notify.Subscription, error)
}

// WebSocketHandler streams job messages to WebSocket clients.
type WebSocketHandler struct {
	jobs     JobReader
	hub      JobSubscriber
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(jobs JobReader, hub JobSubscriber, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for WebSocketHandler")
	}

	return &WebSocketHandler{
		jobs: jobs,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger.With(slog.String("component", "ws_handler")),
	}
}

// Stream handles GET /jobs/{job_id}/ws requests.
// The first frame is the job's current snapshot; the connection is closed
// normally after the terminal message.
func (h *WebSocketHandler) Stream(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, jobID, ok := handleOwnerAndPathUUID(w, r, "job_id", log)
	if !ok {
		return
	}

	if _, err := h.jobs.GetForOwner(r.Context(), jobID, ownerID); err != nil {
		HandleAPIError(w, r, err, "Failed to get job")
		return
	}

	sub, err := h.hub.Subscribe(r.Context(), jobID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to subscribe to job")
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()

	log = log.With(slog.String("job_id", jobID.String()))
	log.Debug("websocket client attached")

	done := make(chan struct{})
	go h.readPump(conn, done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				closeNormally(conn)
				log.Debug("websocket stream finished")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Debug("websocket client went away")
			return
		}
	}
}

// readPump discards client frames and keeps the read deadline fresh via
// pongs. It closes done when the connection fails or the client closes it.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
		time.Now().Add(wsWriteWait),
	)
}
