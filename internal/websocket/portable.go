// Package websocket implements the two WebSocket backends of SPEC_FULL.md
// section 4.7 behind the uniform frakt.WebSocket interface: Portable here
// (github.com/gorilla/websocket), Native in the platform engine adapters.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	frakt "github.com/nvm/fraktgo"
	"github.com/nvm/fraktgo/internal/retry"
)

// HandshakeTimeout is the section 4.7 default: if the upgrade handshake
// does not complete within this window, the attempt fails with
// frakt.Timeout.
const HandshakeTimeout = 30 * time.Second

// pingInterval is how often Portable sends a ping control frame to keep
// intermediaries (and the connection watchdog on the other end) from
// treating an idle-but-healthy connection as stalled.
const pingInterval = 20 * time.Second

// Portable wraps a *websocket.Conn to satisfy frakt.WebSocket.
type Portable struct {
	conn       *websocket.Conn
	maxMsgSize int64

	mu     sync.Mutex
	closed bool

	stopKeepalive context.CancelFunc
}

var _ frakt.WebSocket = (*Portable)(nil)

// Dial performs the WebSocket upgrade handshake against rawURL, failing
// with frakt.Timeout if it does not complete within opts.HandshakeTimeout
// (or HandshakeTimeout if unset).
func Dial(ctx context.Context, rawURL string, opts frakt.WebSocketOptions) (*Portable, error) {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = HandshakeTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := make(http.Header)
	if opts.Headers != nil {
		opts.Headers.Each(func(name, value string) { header.Add(name, value) })
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(dialCtx, rawURL, header)
	if err != nil {
		if dialCtx.Err() != nil {
			return nil, frakt.Timeout
		}
		return nil, frakt.NetworkError(0, "websocket handshake failed", err)
	}

	p := &Portable{conn: conn, maxMsgSize: opts.MaximumMessageSize}
	if p.maxMsgSize > 0 {
		conn.SetReadLimit(p.maxMsgSize)
	}
	p.startKeepalive()
	return p, nil
}

// DialWithRetry calls Dial, and on failure keeps retrying with
// exponential backoff (internal/retry.Backoff: 1s, 2s, 4s, 8s, capped at
// 10s, ±10% jitter) until it succeeds, attempts is exhausted, or ctx is
// done. attempts <= 0 means retry indefinitely.
func DialWithRetry(ctx context.Context, rawURL string, opts frakt.WebSocketOptions, attempts int) (*Portable, error) {
	backoff := retry.NewBackoff()

	var lastErr error
	for attempts <= 0 || backoff.Attempt() < attempts {
		conn, err := Dial(ctx, rawURL, opts)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		select {
		case <-time.After(backoff.Next()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// startKeepalive launches a single background goroutine, managed through
// an errgroup.Group, that pings the peer every pingInterval until Close
// stops it.
func (p *Portable) startKeepalive() {
	keepaliveCtx, cancel := context.WithCancel(context.Background())
	p.stopKeepalive = cancel

	g, gctx := errgroup.WithContext(keepaliveCtx)
	g.Go(func() error {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				p.mu.Lock()
				closed := p.closed
				p.mu.Unlock()
				if closed {
					return nil
				}
				_ = p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	})
}

// Send transmits msg as a text or binary frame.
func (p *Portable) Send(ctx context.Context, msg frakt.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return &frakt.Error{Kind: frakt.ErrWebSocketClosed, Message: "connection is closed"}
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = p.conn.SetWriteDeadline(deadline)
	}

	switch msg.Kind {
	case frakt.MessageText:
		return translateWriteErr(p.conn.WriteMessage(websocket.TextMessage, []byte(msg.Text)))
	default:
		return translateWriteErr(p.conn.WriteMessage(websocket.BinaryMessage, msg.Data))
	}
}

// Receive blocks for the next data frame. Control frames (ping/pong/close)
// are handled transparently by gorilla/websocket's default handlers; once
// a close frame has been received, this and subsequent calls fail with
// ErrWebSocketClosed.
func (p *Portable) Receive(ctx context.Context) (frakt.Message, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return frakt.Message{}, &frakt.Error{Kind: frakt.ErrWebSocketClosed, Message: "connection is closed"}
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = p.conn.SetReadDeadline(deadline)
	}

	kind, data, err := p.conn.ReadMessage()
	if err != nil {
		p.markClosed()
		if err == websocket.ErrReadLimit || websocket.IsCloseError(err, websocket.CloseMessageTooBig) {
			return frakt.Message{}, &frakt.Error{Kind: frakt.ErrResponseTooLarge, Message: "message exceeds maximum_message_size", Cause: err}
		}
		return frakt.Message{}, &frakt.Error{Kind: frakt.ErrWebSocketClosed, Message: "connection closed", Cause: err}
	}

	if kind == websocket.TextMessage {
		return frakt.TextMessage(string(data)), nil
	}
	return frakt.BinaryMessage(data), nil
}

// Close sends a close frame with code and reason, then closes the
// underlying connection. Idempotent.
func (p *Portable) Close(code frakt.CloseCode, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.stopKeepalive != nil {
		p.stopKeepalive()
	}

	deadline := time.Now().Add(5 * time.Second)
	msg := websocket.FormatCloseMessage(int(code), reason)
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return p.conn.Close()
}

func (p *Portable) markClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	return &frakt.Error{Kind: frakt.ErrWebSocketClosed, Message: "write failed", Cause: err}
}
