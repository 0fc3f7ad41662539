package net

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Session is one overlay feed subscriber. Network I/O runs in dedicated
// goroutines; Send is called only from the game loop.
type Session struct {
	ID   uint64
	conn net.Conn
	IP   string

	OutQueue chan []byte // writer goroutine reads from here

	writeTimeout time.Duration
	onClose      func(id uint64)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, outSize int, writeTimeout time.Duration, log *zap.Logger) *Session {
	return &Session{
		ID:           id,
		conn:         conn,
		IP:           conn.RemoteAddr().String(),
		OutQueue:     make(chan []byte, outSize),
		writeTimeout: writeTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues one framed payload. Non-blocking: if OutQueue is full the
// subscriber is too slow and is disconnected (backpressure).
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("out queue full, disconnecting slow subscriber")
		s.Close()
	}
}

// Close shuts the session down. Safe to call from any goroutine, any
// number of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s.ID)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop only detects disconnects; subscribers have nothing to say.
func (s *Session) readLoop() {
	defer s.Close()

	if _, err := io.Copy(io.Discard, s.conn); err != nil && !s.closed.Load() {
		s.log.Debug("read error", zap.Error(err))
	}
}

// writeLoop drains OutQueue to the connection. Frames are already framed
// by the caller.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if _, err := s.conn.Write(data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
