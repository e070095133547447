// Package transport carries framed envelopes over one TCP or TLS connection,
// dialing lazily and redialing with backoff after the connection drops.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gsaluja9/aperturedb-go/internal/observability"
	"github.com/gsaluja9/aperturedb-go/protocol/envelope"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed      = errors.New("transport: connection closed")
	ErrUnreachable = errors.New("transport: server unreachable")
)

// Conn is a client connection. Round trips are serialized because the
// protocol pairs responses with requests by order alone.
type Conn struct {
	opts   Options
	codec  envelope.Codec
	tlsCfg *tls.Config

	mu     sync.Mutex
	conn   net.Conn
	dialed bool
	closed bool
	rng    *rand.Rand
}

// New validates opts and returns an unconnected Conn. The first RoundTrip
// dials.
func New(opts Options) (*Conn, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, ErrMissingAddr
	}
	c := &Conn{
		opts:  opts,
		codec: envelope.Codec{Limits: opts.Limits},
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if opts.UseTLS {
		cfg, err := opts.tlsConfig()
		if err != nil {
			return nil, fmt.Errorf("transport: tls config: %w", err)
		}
		c.tlsCfg = cfg
	}
	return c, nil
}

// RoundTrip writes req and reads the matching response. Any failure after
// the connection is up drops it; the request is not replayed since the
// server may already have applied it.
func (c *Conn) RoundTrip(ctx context.Context, req envelope.Message) (envelope.Message, error) {
	if err := c.codec.Verify(req); err != nil {
		return envelope.Message{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return envelope.Message{}, ErrClosed
	}
	conn, err := c.connect(ctx)
	if err != nil {
		return envelope.Message{}, err
	}
	observability.RecordBlobs("out", req.Blobs)
	resp, err := c.exchange(ctx, conn, req)
	if err != nil {
		c.drop()
		return envelope.Message{}, err
	}
	observability.RecordBlobs("in", resp.Blobs)
	return resp, nil
}

// Connected reports whether a live connection is held.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Conn) connect(ctx context.Context) (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	attempts := c.opts.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.opts.Backoff.Delay(attempt-1, c.rng)); err != nil {
				return nil, err
			}
		}
		if c.dialed || attempt > 1 {
			observability.RecordReconnect()
		}
		conn, err := c.dial(ctx)
		if err == nil {
			c.conn = conn
			c.dialed = true
			log.Debug().Str("addr", c.opts.Addr).Bool("tls", c.tlsCfg != nil).Int("attempt", attempt).Msg("transport.connect")
			return conn, nil
		}
		lastErr = err
		log.Warn().Str("addr", c.opts.Addr).Int("attempt", attempt).Err(err).Msg("transport.dial failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrUnreachable, c.opts.Addr, attempts, lastErr)
}

func (c *Conn) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.opts.ConnectTimeout}
	if !c.opts.Keepalive {
		dialer.KeepAlive = -1
	}
	rawConn, err := dialer.DialContext(ctx, "tcp", c.opts.Addr)
	if err != nil {
		return nil, err
	}
	if c.tlsCfg == nil {
		return rawConn, nil
	}
	conn := tls.Client(rawConn, c.tlsCfg)
	hsCtx := ctx
	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		hsCtx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}
	if err := conn.HandshakeContext(hsCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Conn) exchange(ctx context.Context, conn net.Conn, req envelope.Message) (envelope.Message, error) {
	if err := conn.SetWriteDeadline(deadline(ctx, c.opts.WriteTimeout)); err != nil {
		return envelope.Message{}, c.wrap(ctx, "write", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	if err := c.codec.WriteMessage(conn, req); err != nil {
		return envelope.Message{}, c.wrap(ctx, "write", err)
	}
	if err := conn.SetReadDeadline(deadline(ctx, c.opts.ReadTimeout)); err != nil {
		return envelope.Message{}, c.wrap(ctx, "read", err)
	}
	// A cancel that landed between the write and the line above was overwritten.
	if err := ctx.Err(); err != nil {
		return envelope.Message{}, c.wrap(ctx, "read", err)
	}
	resp, err := c.codec.ReadMessage(conn)
	if err != nil {
		return envelope.Message{}, c.wrap(ctx, "read", err)
	}
	return resp, nil
}

func (c *Conn) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("transport: %s %s: %w", op, c.opts.Addr, ctxErr)
	}
	return fmt.Errorf("transport: %s %s: %w", op, c.opts.Addr, err)
}

func (c *Conn) drop() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	log.Debug().Str("addr", c.opts.Addr).Msg("transport.drop")
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var t time.Time
	if timeout > 0 {
		t = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (t.IsZero() || d.Before(t)) {
		t = d
	}
	return t
}
