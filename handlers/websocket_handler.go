package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tombola/broadcast"
	"github.com/Dosada05/tombola/services"
	"github.com/gorilla/websocket"
)

// Inbound message types.
const (
	msgExtract = "extract"
	msgPing    = "ping"
	msgPong    = "pong"
)

type extractPayload struct {
	GameID int `json:"game_id"`
}

type WebSocketHandler struct {
	hub         *broadcast.Hub
	gameService services.GameService
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins; an empty list
// accepts any origin.
func NewWebSocketHandler(hub *broadcast.Hub, gs services.GameService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:         hub,
		gameService: gs,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// ServeWs upgrades an authenticated request and joins the caller's user room.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Int("user_id", actor.UserID), slog.Any("error", err))
		return
	}

	client := broadcast.NewClient(h.hub, conn, actor)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(context.WithoutCancel(r.Context()), h.handleInbound)

	h.logger.InfoContext(r.Context(), "websocket connected",
		slog.String("client_id", client.ID),
		slog.Int("user_id", actor.UserID),
		slog.String("room", client.Room),
	)
}

func (h *WebSocketHandler) handleInbound(ctx context.Context, c *broadcast.Client, msg broadcast.InboundMessage) {
	switch msg.Type {
	case msgPing:
		_ = c.SendMessage(broadcast.Message{Type: msgPong})

	case msgExtract:
		var p extractPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.GameID <= 0 {
			h.replyError(c, "extract requires a positive game_id")
			return
		}
		// The extraction and gameUpdate events reach this client through its room.
		if _, err := h.gameService.DrawNextNumber(ctx, c.Principal(), p.GameID); err != nil {
			h.logger.InfoContext(ctx, "websocket extract rejected",
				slog.Int("user_id", c.UserID),
				slog.Int("game_id", p.GameID),
				slog.Any("error", err),
			)
			h.replyError(c, err.Error())
		}

	default:
		h.replyError(c, "unknown message type "+msg.Type)
	}
}

func (h *WebSocketHandler) replyError(c *broadcast.Client, message string) {
	_ = c.SendMessage(broadcast.Message{Type: broadcast.EventError, Payload: broadcast.ErrorPayload{Message: message}})
}
