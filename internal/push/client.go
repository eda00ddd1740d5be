// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

// Package push maintains the persistent event channel to the wall server,
// translating inbound frames into cache updates and exposing a
// connectivity-gated command primitive.
//
// Connection state machine:
//
//	disconnected -> connecting -> connected -> disconnected (retry)
//	                                        -> error (retries exhausted)
//
// Retry attempts are counted across consecutive failures and reset to zero
// on every successful connect. Exceeding the budget is terminal: the client
// surfaces the error state once and stops retrying until its service is
// restarted by the operator.
package push

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wallwatch/wallwatch/internal/logging"
	"github.com/wallwatch/wallwatch/internal/metrics"
	"github.com/wallwatch/wallwatch/internal/models"
	"github.com/wallwatch/wallwatch/internal/state"
)

// ConnState is the push channel's connection state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateError        ConnState = "error"
)

// ErrNotConnected is reported through command results when a send was
// attempted while the channel was down.
var ErrNotConnected = errors.New("push: channel not connected")

// Config configures the push client.
type Config struct {
	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration

	// MaxRetries is the consecutive-failure budget before the terminal
	// error state.
	MaxRetries int

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration

	// PingInterval is the keepalive cadence on an open connection.
	PingInterval time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:   3 * time.Second,
		MaxRetries:       5,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// Client is the reconnecting push-event channel client.
type Client struct {
	wsURL   string
	session *state.Session
	cfg     Config

	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	stateMu   sync.RWMutex
	connState ConnState

	pendingMu sync.Mutex
	pending   map[string]string // request id -> action, for result routing

	// OnStateChange, if set, is invoked once per state transition; the
	// dashboard uses it to surface connectivity once per transition
	// rather than once per retry attempt.
	OnStateChange func(ConnState)

	// OnCommandResult, if set, receives the acknowledgement or rejection
	// of a previously sent stream_control frame.
	OnCommandResult func(requestID, action string, err error)

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewClient creates a push client for the given server base URL
// (http/https; converted to ws/wss against the /ws endpoint).
func NewClient(baseURL string, session *state.Session, cfg Config) (*Client, error) {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultConfig().HandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}

	wsURL, err := buildWSURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		wsURL:     wsURL,
		session:   session,
		cfg:       cfg,
		connState: StateDisconnected,
		pending:   make(map[string]string),
		stopChan:  make(chan struct{}),
	}, nil
}

// buildWSURL converts the server base URL into the event channel URL.
func buildWSURL(baseURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + parsed.Host + "/ws", nil
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connState
}

// IsConnected reports whether the channel is currently connected.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// setState applies a transition and surfaces it once.
func (c *Client) setState(next ConnState) {
	c.stateMu.Lock()
	prev := c.connState
	c.connState = next
	c.stateMu.Unlock()

	if prev == next {
		return
	}

	metrics.PushConnectionState.Set(stateGaugeValue(next))
	switch next {
	case StateConnected:
		logging.Info().Msg("push channel connected")
	case StateDisconnected:
		logging.Warn().Msg("push channel disconnected")
	case StateError:
		logging.Error().Int("max_retries", c.cfg.MaxRetries).
			Msg("push channel retries exhausted, manual reconnect required")
	case StateConnecting:
	}

	if c.OnStateChange != nil {
		c.OnStateChange(next)
	}
}

func stateGaugeValue(s ConnState) float64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateError:
		return 3
	default:
		return 0
	}
}

// Serve implements suture.Service: it runs the connect/read/reconnect loop
// until the context is canceled. After the retry budget is exhausted the
// client parks in the error state instead of returning, so the supervisor
// does not convert a terminal failure into an unbounded retry loop.
func (c *Client) Serve(ctx context.Context) error {
	retries := 0

	for {
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return ctx.Err()
		case <-c.stopChan:
			c.setState(StateDisconnected)
			return nil
		default:
		}

		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			retries++
			metrics.PushReconnects.Inc()
			logging.Debug().Err(err).Int("attempt", retries).Msg("push channel connect failed")
			if retries >= c.cfg.MaxRetries {
				c.setState(StateError)
				// Park until shutdown; manual reconnect means restarting
				// the service.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-c.stopChan:
					return nil
				}
			}
			c.setState(StateDisconnected)
			select {
			case <-time.After(c.cfg.ReconnectDelay):
			case <-ctx.Done():
				return ctx.Err()
			case <-c.stopChan:
				return nil
			}
			continue
		}

		retries = 0
		c.setConn(conn)
		c.setState(StateConnected)
		c.requestSnapshot()

		c.readLoop(ctx, conn)
		c.setConn(nil)

		// An intentional close shows up as stopChan; anything else is an
		// unintentional disconnect and goes back around the retry loop.
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return ctx.Err()
		case <-c.stopChan:
			c.setState(StateDisconnected)
			return nil
		default:
		}

		retries++
		metrics.PushReconnects.Inc()
		if retries >= c.cfg.MaxRetries {
			c.setState(StateError)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.stopChan:
				return nil
			}
		}

		c.setState(StateDisconnected)
		select {
		case <-time.After(c.cfg.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopChan:
			return nil
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (c *Client) String() string { return "push-client" }

// Close shuts the client down intentionally: the reconnect loop exits and
// no reconnect timer survives.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.closeConn()
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  c.cfg.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, resp, err := dialer.DialContext(ctx, c.wsURL, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	return conn, err
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

func (c *Client) currentConn() *websocket.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
		c.conn = nil
	}
}

// readLoop reads frames until the connection breaks or shutdown begins.
// A keepalive ping runs alongside.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	pingDone := make(chan struct{})
	go c.pingLoop(conn, pingDone)
	defer close(pingDone)

	// Pongs answering the keepalive pings extend the deadline, so an
	// event-quiet channel does not cycle through reconnects.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * c.cfg.PingInterval))
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(2 * c.cfg.PingInterval)); err != nil {
			logging.Debug().Err(err).Msg("push channel: set read deadline failed")
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug().Err(err).Msg("push channel read error")
			}
			_ = conn.Close()
			return
		}
		c.handleMessage(message)
	}
}

// pingLoop keeps the connection alive until done is closed.
func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// requestSnapshot asks the server for a full status snapshot of all known
// streams, closing the gap between connection establishment and the first
// push event.
func (c *Client) requestSnapshot() {
	groups := c.session.Cache.Groups()
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}

	frame := map[string]any{
		"type":      "request_status",
		"group_ids": ids,
		"timestamp": time.Now().UnixMilli(),
	}
	if err := c.writeJSON(frame); err != nil {
		logging.Debug().Err(err).Msg("push channel: snapshot request failed")
	}
}

// handleMessage routes one inbound frame.
func (c *Client) handleMessage(data []byte) {
	var event models.PushEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logging.Error().Err(err).Msg("failed to parse push event")
		return
	}

	metrics.PushEvents.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case models.EventStreamUpdate:
		groupID := event.GroupID
		if groupID == "" {
			groupID = event.StreamID
		}
		if groupID == "" {
			return
		}
		marker := event.Timestamp
		if marker == 0 {
			marker = time.Now().UnixMilli()
		}
		patch := models.DecodeStatusPatch(event.Data, marker)
		c.session.Cache.ApplyStatusPatch(groupID, patch)

	case models.EventClientUpdate:
		var list models.ClientList
		if err := json.Unmarshal(event.Data, &list); err != nil {
			logging.Error().Err(err).Msg("failed to parse client update")
			return
		}
		c.session.Cache.ReplaceClients(list.Clients)

	case models.EventConnectionEstablished:
		logging.Debug().Msg("push channel handshake acknowledged")

	case models.EventSuccess:
		c.resolvePending(event.RequestID, nil)

	case models.EventError:
		msg := event.Message
		if msg == "" {
			msg = "command rejected"
		}
		c.resolvePending(event.RequestID, errors.New(msg))

	default:
		logging.Debug().Str("type", event.Type).Msg("unknown push event type")
	}
}

// Send transmits a stream_control command over the channel. Returns false
// immediately, without a network attempt, when the channel is not
// connected; false means "command not sent", never "delivery pending".
func (c *Client) Send(streamID, groupID, action string) bool {
	if !c.IsConnected() {
		return false
	}
	conn := c.currentConn()
	if conn == nil {
		return false
	}

	requestID := uuid.NewString()
	frame := models.StreamControl{
		Type:      "stream_control",
		StreamID:  streamID,
		GroupID:   groupID,
		Action:    action,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}

	c.pendingMu.Lock()
	c.pending[requestID] = action
	c.pendingMu.Unlock()

	if err := c.writeJSON(frame); err != nil {
		c.resolvePending(requestID, err)
		return false
	}
	return true
}

// writeJSON serializes writes; gorilla/websocket allows one writer at a time.
func (c *Client) writeJSON(v any) error {
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// resolvePending completes one in-flight command, if known.
func (c *Client) resolvePending(requestID string, err error) {
	if requestID == "" {
		return
	}
	c.pendingMu.Lock()
	action, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.pendingMu.Unlock()

	if !ok {
		return
	}
	if c.OnCommandResult != nil {
		c.OnCommandResult(requestID, action, err)
	}
}
