package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the cap on the reconnect backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for the subscription ack.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns the default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// LogStreamClient maintains a persistent logsSubscribe subscription for a
// single program id over gorilla/websocket. Failures in any state drop the
// connection and trigger a reconnect with exponential backoff and full
// jitter; notifications missed during the gap are not recovered.
type LogStreamClient struct {
	endpoint  string
	programID string
	config    WSClientConfig
	log       *logrus.Entry

	// OnStateChange, when set, observes every connection state transition.
	OnStateChange func(ConnState)

	state     atomic.Int32
	requestID atomic.Uint64
	notifs    chan LogNotification
	closeOnce sync.Once
}

// NewLogStreamClient creates a client for logs mentioning programID.
func NewLogStreamClient(endpoint, programID string, config *WSClientConfig, log *logrus.Entry) *LogStreamClient {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	return &LogStreamClient{
		endpoint:  endpoint,
		programID: programID,
		config:    cfg,
		log:       log,
		notifs:    make(chan LogNotification, 1000),
	}
}

// Notifications returns the stream of log notifications for successful
// transactions. Closed when Run returns.
func (c *LogStreamClient) Notifications() <-chan LogNotification {
	return c.notifs
}

// State returns the current connection state.
func (c *LogStreamClient) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *LogStreamClient) setState(s ConnState) {
	c.state.Store(int32(s))
	if c.OnStateChange != nil {
		c.OnStateChange(s)
	}
}

// Run connects, subscribes and forwards notifications until ctx is
// cancelled. It only returns on cancellation; every upstream failure is
// absorbed by the reconnect loop.
func (c *LogStreamClient) Run(ctx context.Context) error {
	defer c.closeOnce.Do(func() { close(c.notifs) })
	defer c.setState(StateDisconnected)

	backoff := Backoff{Base: c.config.ReconnectDelay, Max: c.config.MaxReconnectDelay}

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := c.connectAndStream(ctx, &backoff)
		if ctx.Err() != nil {
			return nil
		}

		delay := backoff.Next()
		c.log.WithError(err).Warnf("subscription lost, reconnecting in %v", delay.Round(time.Millisecond))
		c.setState(StateDisconnected)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// connectAndStream runs one connection lifecycle:
// Connecting -> Subscribed -> (Draining on shutdown).
func (c *LogStreamClient) connectAndStream(ctx context.Context, backoff *Backoff) error {
	c.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return &UpstreamError{Kind: KindTransient, Op: "ws dial", Err: err}
	}
	defer conn.Close()

	subID, err := c.subscribe(conn)
	if err != nil {
		return err
	}
	c.setState(StateSubscribed)
	backoff.Reset()
	c.log.WithField("subscription", subID).Infof("subscribed to logs mentioning %s", c.programID)

	// Shutdown watcher: on cancellation, drain and close cleanly.
	watcherDone := make(chan struct{})
	connDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			c.setState(StateDraining)
			c.unsubscribe(conn, subID)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.config.WriteTimeout))
			conn.Close()
		case <-connDone:
		}
	}()
	defer func() {
		close(connDone)
		<-watcherDone
	}()

	// Keepalive ping loop.
	pingDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			}
		}
	}()
	defer close(pingDone)

	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &UpstreamError{Kind: KindTransient, Op: "ws read", Err: err}
		}
		c.handleMessage(ctx, message)
	}
}

// subscribe sends the logsSubscribe request and waits for the ack. The
// subscription id is recorded for the unsubscribe on clean shutdown; it is
// not needed for demultiplexing because only one subscription is active.
func (c *LogStreamClient) subscribe(conn *websocket.Conn) (int64, error) {
	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{c.programID}},
			map[string]string{"commitment": "confirmed"},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return 0, &UpstreamError{Kind: KindTransient, Op: "ws subscribe", Err: err}
	}

	// Read frames until the matching ack arrives. Notifications cannot
	// arrive before the ack for this subscription, but unrelated frames are
	// skipped rather than treated as failures.
	deadline := time.Now().Add(c.config.SubscribeTimeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, message, err := conn.ReadMessage()
		if err != nil {
			return 0, &UpstreamError{Kind: KindTransient, Op: "ws subscribe ack", Err: err}
		}

		var resp wsSubscribeResponse
		if err := json.Unmarshal(message, &resp); err == nil && resp.ID == reqID {
			if resp.Error != nil {
				return 0, &UpstreamError{Kind: KindProtocol, Op: "ws subscribe ack", Err: resp.Error}
			}
			if resp.Result <= 0 {
				return 0, &UpstreamError{Kind: KindProtocol, Op: "ws subscribe ack",
					Err: fmt.Errorf("invalid subscription id %d", resp.Result)}
			}
			return resp.Result, nil
		}
	}

	return 0, &UpstreamError{Kind: KindProtocol, Op: "ws subscribe ack",
		Err: fmt.Errorf("no ack within %v", c.config.SubscribeTimeout)}
}

// unsubscribe sends logsUnsubscribe on clean shutdown. Best effort: the
// connection is closing either way.
func (c *LogStreamClient) unsubscribe(conn *websocket.Conn, subID int64) {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "logsUnsubscribe",
		Params:  []interface{}{subID},
	}
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		c.log.WithError(err).Debug("logsUnsubscribe failed")
	}
}

// handleMessage parses one incoming frame. Frames that are not the expected
// notification shape are ignored.
func (c *LogStreamClient) handleMessage(ctx context.Context, message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "logsNotification" {
		return
	}
	if notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value

	// Failed transactions carry a non-null err and are filtered here.
	if value.Err != nil {
		return
	}

	logNotif := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
	}
	if notif.Params.Result.Context != nil {
		logNotif.Slot = notif.Params.Result.Context.Slot
	}

	select {
	case c.notifs <- logNotif:
	case <-ctx.Done():
	}
}

// WebSocket message types.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Result  int64     `json:"result"`
	Error   *rpcError `json:"error,omitempty"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
