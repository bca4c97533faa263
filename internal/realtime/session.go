package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"careportal/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// MaxFrameSize caps inbound frames.
	MaxFrameSize = 1 << 20

	sendBuffer = 128
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrBufferFull    = errors.New("session send buffer full")
)

// Session binds one websocket connection to an authenticated user.
// Outbound frames go through a buffered queue drained by a single writer.
type Session struct {
	id   string
	user model.User
	ws   *websocket.Conn
	log  zerolog.Logger

	send chan []byte
	done chan struct{}
	once sync.Once
}

var _ Peer = (*Session)(nil)

// NewSession wraps ws for user.
func NewSession(user model.User, ws *websocket.Conn, log zerolog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:   id,
		user: user,
		ws:   ws,
		log:  log.With().Str("session_id", id).Str("user_id", user.ID).Logger(),
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (s *Session) SessionID() string { return s.id }
func (s *Session) UserID() string    { return s.user.ID }

// Start launches the write loop. It must be called exactly once.
func (s *Session) Start() {
	go s.writeLoop()
}

// Send enqueues payload without blocking. A client too slow to drain its
// queue is disconnected so one stalled socket cannot hold up a broadcast.
func (s *Session) Send(payload []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- payload:
		return nil
	default:
		s.log.Warn().Msg("[WebSocket] send buffer full, dropping session")
		s.abort()
		return ErrBufferFull
	}
}

// abort drops the connection without a close frame. The writer may be
// stuck on the same socket holding the write lock, so nothing here waits on it.
func (s *Session) abort() {
	s.once.Do(func() {
		close(s.done)
		if s.ws != nil {
			_ = s.ws.Close()
		}
	})
}

// Close terminates the connection and stops the write loop. Safe to call repeatedly.
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		close(s.done)
		if s.ws == nil {
			return
		}
		deadline := time.Now().Add(writeWait)
		_ = s.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = s.ws.Close()
	})
}

// PrepareRead applies the inbound limits and keepalive deadline to the connection.
func (s *Session) PrepareRead() {
	s.ws.SetReadLimit(MaxFrameSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// ReadFrame blocks for the next text frame from the client.
func (s *Session) ReadFrame() ([]byte, error) {
	_, data, err := s.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	return data, nil
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				s.log.Debug().Err(err).Msg("[WebSocket] write failed")
				s.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (s *Session) write(messageType int, payload []byte) error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(messageType, payload)
}
