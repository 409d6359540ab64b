package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/eurobot/webchat/internal/model/chat"
	chatService "github.com/eurobot/webchat/internal/service/chat"
	"github.com/eurobot/webchat/internal/service/session"
	"github.com/eurobot/webchat/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
)

// Handler pushes session snapshots over a WebSocket and accepts send/retry commands.
type Handler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler. Browsers may only connect from the same
// host or from one of allowedOrigins; "*" admits any origin.
func New(chatSvc *chatService.Service, allowedOrigins []string) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.ToLower(strings.TrimSuffix(origin, "/"))] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		log.Warn().Str("origin", origin).Msg("websocket origin rejected")
		return false
	}
}

// RegisterRoutes mounts the WebSocket route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type outgoingMessage struct {
	Type      string         `json:"type"`
	Data      *chat.Snapshot `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctrl, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("session_id", sessionID).Logger()
	logger.Info().Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	errs := make(chan string, 8)
	go writeLoop(ctx, cancel, conn, updates, errs, logger)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		h.dispatch(ctx, ctrl, msg, errs)
	}
}

// dispatch runs a command without blocking the read loop, so a second send
// while one is in flight is rejected by the controller instead of queued.
func (h *Handler) dispatch(ctx context.Context, ctrl *session.Controller, msg inboundMessage, errs chan<- string) {
	switch msg.Type {
	case "send":
		go func() {
			err := ctrl.Send(context.WithoutCancel(ctx), msg.Text)
			if err != nil && !errors.Is(err, session.ErrEmptyMessage) {
				report(ctx, errs, err.Error())
			}
		}()
	case "retry":
		go func() {
			if _, err := ctrl.RetryConnection(context.WithoutCancel(ctx)); err != nil {
				report(ctx, errs, err.Error())
			}
		}()
	default:
		report(ctx, errs, "unsupported message type: "+msg.Type)
	}
}

func report(ctx context.Context, errs chan<- string, message string) {
	select {
	case errs <- message:
	case <-ctx.Done():
	}
}

// writeLoop is the only writer of conn.
func writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, updates <-chan chat.Snapshot, errs <-chan string, logger zerolog.Logger) {
	defer cancel()
	defer conn.Close()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	write := func(msg outgoingMessage) error {
		msg.Timestamp = time.Now().UnixMilli()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := write(outgoingMessage{Type: "state", Data: &snap}); err != nil {
				logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case message := <-errs:
			if err := write(outgoingMessage{Type: "error", Error: message}); err != nil {
				logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
