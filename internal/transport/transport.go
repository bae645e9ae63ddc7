// Package transport implements the duplex ticker feed client: dial,
// subscribe, and run a blocking read pump handing frames to a callback.
// Adapted from the dialer/read-pump shape of a production exchange
// WebSocket manager, narrowed to a single connection with no reconnection
// (the spec's Non-goals exclude reconnect/backoff; a read error is fatal
// and triggers the orchestrator's shutdown path).
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/marketpulse/tickerpipe/internal/observability"
)

// Config controls dial behavior and the subscription sent on connect.
type Config struct {
	URL              string
	Product          string
	HandshakeTimeout time.Duration
	ReadLimitBytes   int64
}

// Client is a single WebSocket connection dedicated to one product's
// ticker channel. It is owned entirely by the Ingress stage: Dial, then
// ReadLoop on Ingress's goroutine, then Close on shutdown.
type Client struct {
	cfg    Config
	conn   *websocket.Conn
	logger *observability.StageLogger

	errLimiter *rate.Limiter
}

// New constructs a Client. Dial must be called before ReadLoop.
func New(cfg Config, logger *observability.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: observability.NewStageLogger(logger, "transport"),
		// Bound read-error log lines to 1/sec with a small burst. ReadLoop
		// returns on its first read error, so this only limits lines across
		// repeated ReadLoop calls on the same Client.
		errLimiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// Dial opens the connection and sends the subscribe frame for cfg.Product.
func (c *Client) Dial(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	if c.cfg.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = c.cfg.HandshakeTimeout
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", c.cfg.URL, err)
	}

	if c.cfg.ReadLimitBytes > 0 {
		conn.SetReadLimit(c.cfg.ReadLimitBytes)
	}
	c.conn = conn

	sub := map[string]any{
		"type":        "subscribe",
		"product_ids": []string{c.cfg.Product},
		"channels":    []string{"ticker"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("transport: subscribe: %w", err)
	}

	return nil
}

// ReadLoop blocks, invoking onFrame for each text frame received, until ctx
// is cancelled or a read fails. ctx is checked only between reads: a read in
// progress is not interrupted by cancellation, only by a frame arriving or
// the connection closing (see Close). A read error or ctx cancellation is
// treated as fatal by the caller: there is no reconnection attempt.
func (c *Client) ReadLoop(ctx context.Context, onFrame func([]byte)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.errLimiter.Allow() {
				c.logger.LocalError(ctx, "read failed, connection is fatal", err)
			}
			return fmt.Errorf("transport: read: %w", err)
		}

		if messageType == websocket.TextMessage {
			onFrame(message)
		}
	}
}

// Close closes the underlying connection. Safe to call after a failed
// ReadLoop or during orderly shutdown.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
