// Package transport owns the single WebSocket connection to the recognition
// backend.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// ErrConnectionLost is returned by Listen when the backend goes away.
var ErrConnectionLost = errors.New("connection to recognition backend lost")

// MessageHandler consumes inbound text frames.
type MessageHandler interface {
	HandleMessage(raw string) error
}

// Options tunes the connection.
type Options struct {
	DialTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	InsecureSkipTLS bool
}

// Client is a connected backend socket. Send may be called from any
// goroutine; Listen must run in exactly one.
type Client struct {
	url          string
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to url.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: opts.DialTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}
	if opts.InsecureSkipTLS {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	log.Infof("Connecting to recognition backend at %s", url)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	if opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(opts.MaxMessageBytes)
	}
	log.Infof("Connected to %s", url)

	return &Client{
		url:          url,
		conn:         conn,
		writeTimeout: opts.WriteTimeout,
	}, nil
}

// URL returns the endpoint the client is connected to.
func (c *Client) URL() string { return c.url }

// Send writes one text frame.
func (c *Client) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// Listen reads frames until the connection fails or ctx is cancelled and
// hands each text frame to h. Handler errors are logged; they never end the
// loop. The returned error wraps ErrConnectionLost unless ctx ended first.
func (c *Client) Listen(ctx context.Context, h MessageHandler) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warnf("Disconnected from %s", c.url)
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		if kind != websocket.TextMessage {
			log.Debugf("Ignoring non-text frame of %d bytes", len(data))
			continue
		}
		if err := h.HandleMessage(string(data)); err != nil {
			log.WithError(err).Warn("Dropped inbound frame")
		}
	}
}

// Close sends a close frame and releases the socket. Safe to call repeatedly.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
