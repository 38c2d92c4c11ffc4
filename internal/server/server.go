// Package server accepts subscriber WebSocket connections and streams
// filtered token creation events to them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/DivineUX23/pump-fun-monitor/internal/hub"
	"github.com/DivineUX23/pump-fun-monitor/internal/observability"
)

// Server owns the listener, the upgrader and the session registry.
type Server struct {
	addr string
	hub  *hub.Hub
	log  *logrus.Entry

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// New creates a server listening on the given TCP port.
func New(port int, h *hub.Hub, log *logrus.Entry) *Server {
	return &Server{
		addr: fmt.Sprintf(":%d", port),
		hub:  h,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[uuid.UUID]*session),
	}
}

// Run serves until ctx is cancelled. A bind failure surfaces immediately so
// startup can abort with a non-zero exit.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}

	// Every path accepts upgrades; there is no path-based routing.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.handleUpgrade(ctx, w, r)
	})

	httpSrv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(listener)
	}()
	s.log.Infof("subscriber server listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleUpgrade upgrades the connection and runs the session to completion.
func (s *Server) handleUpgrade(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).WithField("remote", r.RemoteAddr).Warn("upgrade failed")
		return
	}

	sess := newSession(conn, s.hub.Subscribe(), s.hub, s.log)
	s.register(sess)
	defer s.unregister(sess)

	sess.run(ctx)
}

func (s *Server) register(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	observability.SetSubscribers(n)
	s.log.WithFields(logrus.Fields{"id": sess.id, "remote": sess.conn.RemoteAddr()}).Info("subscriber connected")
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	n := len(s.sessions)
	s.mu.Unlock()
	observability.SetSubscribers(n)
	s.log.WithField("id", sess.id).Info("subscriber disconnected")
}

// SessionCount returns the number of active sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
