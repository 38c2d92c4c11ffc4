package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/DivineUX23/pump-fun-monitor/internal/domain"
	"github.com/DivineUX23/pump-fun-monitor/internal/hub"
	"github.com/DivineUX23/pump-fun-monitor/internal/observability"
)

// writeWait bounds a single frame write; a subscriber that cannot take a
// frame within it is dropped.
const writeWait = 5 * time.Second

// session is one subscriber connection: an ingress goroutine reading control
// messages and a drain goroutine forwarding matching hub events. The filter
// is an immutable snapshot swapped atomically by ingress and read by drain,
// so an update applies to every subsequent hub read.
type session struct {
	id   uuid.UUID
	conn *websocket.Conn
	sub  *hub.Subscription
	h    *hub.Hub
	log  *logrus.Entry

	filter atomic.Pointer[domain.FilterCriteria]

	// writeMu serializes the event writes with the close frame.
	writeMu sync.Mutex
}

func newSession(conn *websocket.Conn, sub *hub.Subscription, h *hub.Hub, log *logrus.Entry) *session {
	s := &session{
		id:   uuid.New(),
		conn: conn,
		sub:  sub,
		h:    h,
		log:  log,
	}
	s.filter.Store(&domain.FilterCriteria{})
	return s
}

// run blocks until the session ends. Either task failing tears the whole
// session down; other sessions and the pipeline are unaffected.
func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.h.Unsubscribe(s.sub)
	defer s.conn.Close()

	// Unblock the ingress read as soon as either task ends.
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		s.ingress()
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		s.drain(ctx)
	}()

	wg.Wait()
}

// ingress reads subscriber control messages until the connection drops.
// Malformed JSON and unknown actions are dropped silently.
func (s *session) ingress() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg domain.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.WithField("id", s.id).Debug("ignoring malformed control frame")
			continue
		}

		switch msg.Action {
		case domain.ActionSetFilter:
			filter := msg.Filter
			if filter == nil {
				filter = &domain.FilterCriteria{}
			}
			// Replace, never mutate: drain observes the new snapshot on
			// its next read.
			s.filter.Store(filter)
			s.log.WithFields(logrus.Fields{
				"id":           s.id,
				"creator":      filter.Creator,
				"symbol":       filter.Symbol,
				"nameContains": filter.NameContains,
			}).Info("filter updated")
		default:
			s.log.WithFields(logrus.Fields{"id": s.id, "action": msg.Action}).Debug("ignoring unknown action")
		}
	}
}

// drain forwards matching hub events until the stream ends or the
// subscriber stops keeping up.
func (s *session) drain(ctx context.Context) {
	for {
		event, err := s.sub.Recv(ctx)
		if err != nil {
			var lagged hub.ErrLagged
			switch {
			case errors.As(err, &lagged):
				observability.RecordSessionLagged()
				s.log.WithFields(logrus.Fields{"id": s.id, "skipped": lagged.Skipped}).
					Warn("subscriber lagged, closing session")
				s.sendClose(websocket.ClosePolicyViolation, "subscriber too slow")
			case errors.Is(err, hub.ErrClosed):
				s.sendClose(websocket.CloseGoingAway, "shutting down")
			}
			return
		}

		if !s.filter.Load().Matches(event) {
			continue
		}

		payload, err := json.Marshal(event)
		if err != nil {
			s.log.WithError(err).WithField("id", s.id).Error("event serialization failed, closing session")
			s.sendClose(websocket.CloseInternalServerErr, "")
			return
		}

		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = s.conn.WriteMessage(websocket.TextMessage, payload)
		s.writeMu.Unlock()
		if err != nil {
			s.log.WithError(err).WithField("id", s.id).Warn("write failed, closing session")
			return
		}
		observability.RecordFrameSent()
	}
}

// sendClose writes a close frame, best effort.
func (s *session) sendClose(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
