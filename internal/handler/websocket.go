package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"careportal/internal/auth"
	"careportal/internal/chat"
	"careportal/internal/protocol"
	"careportal/internal/realtime"
)

// createUpgrader creates a WebSocket upgrader with the given allowed origins
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedMap[origin]
		},
	}
}

// HandleWebSocket handles GET /ws
// 認証はアップグレード前に行い、失敗したらセッションを作らない
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := h.Auth.Authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		h.Log.Warn().Str("reason", auth.Reason(err)).Str("remote_addr", r.RemoteAddr).
			Msg("[WebSocket] ❌ Authentication failed")
		writeError(w, http.StatusUnauthorized, "Authentication error")
		return
	}

	upgrader := createUpgrader(h.Config.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn().Err(err).Str("origin", r.Header.Get("Origin")).Msg("[WebSocket] upgrade error")
		return
	}

	session := realtime.NewSession(user, conn, h.Log)
	session.Start()
	h.Hub.Attach(session)

	actor := chat.Actor{Peer: session, User: user}
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.Hub.Detach(session)
		h.Chat.Disconnect(actor)
		session.Close(websocket.CloseNormalClosure, "")
	}()

	if err := realtime.Emit(session, protocol.Connected{UserID: user.ID, UserName: user.Name}); err != nil {
		return
	}

	session.PrepareRead()
	for {
		data, err := session.ReadFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.Log.Debug().Err(err).Str("user_id", user.ID).Msg("[WebSocket] read error")
			}
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			h.Log.Debug().Err(err).Str("user_id", user.ID).Msg("[WebSocket] rejected frame")
			realtime.Emit(session, rejectionFor(err))
			continue
		}
		h.Chat.Dispatch(ctx, actor, ev)
	}
}

// rejectionFor answers a frame that failed to decode. A bad payload for a
// known event gets that event's own error type.
func rejectionFor(err error) protocol.Event {
	var pe *protocol.PayloadError
	if errors.As(err, &pe) {
		return protocol.Rejection(pe.Event, decodeMessage(err))
	}
	return protocol.Error{Error: decodeMessage(err)}
}

func decodeMessage(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownEvent):
		return "Unknown event"
	case errors.Is(err, protocol.ErrInvalidPayload):
		return "Invalid payload"
	}
	return "Malformed frame"
}
