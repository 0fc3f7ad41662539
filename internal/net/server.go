package net

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Server accepts overlay feed subscribers. New sessions reach the game loop
// through a channel; the subscriber list itself is owned by the game loop.
type Server struct {
	listener     net.Listener
	nextID       atomic.Uint64
	newConns     chan *Session
	deadCh       chan uint64 // session IDs of dead sessions
	outSize      int
	writeTimeout time.Duration
	log          *zap.Logger
	closeCh      chan struct{}
	closeOnce    sync.Once

	sessions []*Session // game loop only
}

func NewServer(bindAddr string, outSize int, writeTimeout time.Duration, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener:     ln,
		newConns:     make(chan *Session, 64),
		deadCh:       make(chan uint64, 64),
		outSize:      outSize,
		writeTimeout: writeTimeout,
		log:          log,
		closeCh:      make(chan struct{}),
	}
	return s, nil
}

// AcceptLoop runs in its own goroutine. It accepts connections, creates
// sessions and pushes them onto the newConns channel.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.outSize, s.writeTimeout, s.log)
		sess.onClose = s.NotifyDead
		sess.Start()

		s.log.Info("feed subscriber connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("connection queue full, rejecting subscriber")
			sess.Close()
		}
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Broadcast admits pending sessions, drops closed ones and queues data on
// every remaining subscriber. Called only from the game loop. Returns the
// subscriber count after the send.
func (s *Server) Broadcast(data []byte) int {
	s.drain()
	for _, sess := range s.sessions {
		sess.Send(data)
	}
	return len(s.sessions)
}

// Poll admits pending sessions and drops closed ones without sending
// anything. Returns the subscriber count.
func (s *Server) Poll() int {
	s.drain()
	return len(s.sessions)
}

func (s *Server) drain() {
	for {
		select {
		case sess := <-s.newConns:
			s.sessions = append(s.sessions, sess)
		case id := <-s.deadCh:
			s.log.Info("feed subscriber disconnected", zap.Uint64("session", id))
		default:
			live := s.sessions[:0]
			for _, sess := range s.sessions {
				if !sess.IsClosed() {
					live = append(live, sess)
				}
			}
			clear(s.sessions[len(live):])
			s.sessions = live
			return
		}
	}
}

// Shutdown stops accepting new connections and closes every session.
// Safe to call more than once.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.listener.Close()
		s.drain()
		for _, sess := range s.sessions {
			sess.Close()
		}
		s.sessions = nil
	})
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
