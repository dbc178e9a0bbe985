package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBufSize = 256
)

// Socket adapts a gorilla websocket.Conn to Transport. Writes are queued on a
// buffered channel and drained by WritePump; frames queued before Close are
// still flushed before the close frame.
type Socket struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
	logger zerolog.Logger
}

func NewSocket(conn *websocket.Conn, logger zerolog.Logger) *Socket {
	return &Socket{
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (s *Socket) Send(data []byte) error {
	if s.closed.Load() {
		return ErrTransportClosed
	}
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrTransportClosed
	default:
		return ErrSendBufferFull
	}
}

func (s *Socket) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
	return nil
}

func (s *Socket) IsOpen() bool {
	return !s.closed.Load()
}

// ReadPump blocks reading text frames and hands each to onMessage in order.
// It returns when the peer goes away or the socket is closed.
func (s *Socket) ReadPump(onMessage func(data []byte)) error {
	s.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			s.Close()
			return err
		}
		onMessage(data)
	}
}

// WritePump drains queued frames to the peer until the socket is closed.
func (s *Socket) WritePump() {
	defer s.conn.Close()

	for {
		select {
		case data := <-s.send:
			if err := s.write(data); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			s.flush()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Socket) flush() {
	for {
		select {
		case data := <-s.send:
			if err := s.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Socket) write(data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug().Err(err).Msg("WebSocket write error")
		return err
	}
	return nil
}
