package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/interfaces"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for every frame sent to WebSocket clients.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler streams job status transitions to connected clients.
// The durable record stays the source of truth; this stream is advisory and
// a dropped frame is never compensated for.
type WebSocketHandler struct {
	logger          arbor.ILogger
	events          interfaces.EventService
	clients         map[*websocket.Conn]bool
	clientMutex     map[*websocket.Conn]*sync.Mutex
	mu              sync.RWMutex
	statusThrottler *rate.Limiter
	// serverInstanceID changes on every restart so clients can detect it
	serverInstanceID string
}

// NewWebSocketHandler creates a WebSocket handler
func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	throttle := 250 * time.Millisecond
	if config != nil {
		throttle = config.StatusThrottleOr(throttle)
	}

	h := &WebSocketHandler{
		logger:           logger,
		events:           events,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		statusThrottler:  rate.NewLimiter(rate.Every(throttle), 1),
		serverInstanceID: uuid.New().String(),
	}

	logger.Debug().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")

	return h
}

// SubscribeToJobEvents wires the handler onto the event bus. Call once
// during startup, after the event service exists.
func (h *WebSocketHandler) SubscribeToJobEvents() error {
	handler := func(ctx context.Context, event interfaces.Event) error {
		payload, ok := event.Payload.(interfaces.JobStatusPayload)
		if !ok {
			return nil
		}
		h.BroadcastJobStatus(payload)
		return nil
	}

	if err := h.events.Subscribe(interfaces.EventJobStatusChanged, handler); err != nil {
		return err
	}
	return h.events.Subscribe(interfaces.EventJobAccepted, handler)
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client goes away.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendToClient(conn, WSMessage{
		Type: "connected",
		Payload: map[string]string{
			"serverInstanceId": h.serverInstanceID,
		},
	})

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read loop exists only to detect disconnection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// BroadcastJobStatus sends a job status transition to all clients.
// Intermediate transitions are throttled; terminal verdicts always go out.
func (h *WebSocketHandler) BroadcastJobStatus(payload interfaces.JobStatusPayload) {
	if !payload.Status.Terminal() && !h.statusThrottler.Allow() {
		return
	}

	h.broadcast(WSMessage{
		Type:    "job_status",
		Payload: payload,
	})
}

// broadcast writes one frame to every registered client. Per-client write
// mutexes keep concurrent broadcasts from interleaving frames.
func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mutexes[i].Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutexes[i].Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to write to WebSocket client")
		}
	}
}

// sendToClient writes one frame to a single client.
func (h *WebSocketHandler) sendToClient(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return
	}

	mutex.Lock()
	defer mutex.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write to WebSocket client")
	}
}
