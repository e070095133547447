// Package aperturedb is a client for the ApertureDB multimodal database.
//
// A Client owns one connection and one session. Operations from the query
// package are batched into a single request with Query, or run one at a
// time through the per-kind sub-clients (Images, Descriptors, ...).
package aperturedb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gsaluja9/aperturedb-go/config"
	"github.com/gsaluja9/aperturedb-go/internal/observability"
	"github.com/gsaluja9/aperturedb-go/internal/session"
	"github.com/gsaluja9/aperturedb-go/internal/transport"
	"github.com/gsaluja9/aperturedb-go/protocol/envelope"
	"github.com/gsaluja9/aperturedb-go/query"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Transport carries one request envelope and returns the response.
type Transport interface {
	RoundTrip(ctx context.Context, req envelope.Message) (envelope.Message, error)
	Close() error
}

type Option func(*Client)

// WithTransport replaces the TCP/TLS connection built from the config.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.rt = t }
}

type Client struct {
	cfg  config.Config
	rt   Transport
	auth *session.Manager

	Images         *Images
	Videos         *Videos
	Frames         *Frames
	Clips          *Clips
	Descriptors    *Descriptors
	DescriptorSets *DescriptorSets
	BoundingBoxes  *BoundingBoxes
	Polygons       *Polygons
	Entities       *Entities
	Connections    *Connections
}

// New validates cfg and returns a Client. No connection is made until the
// first request.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.rt == nil {
		conn, err := transport.New(transport.OptionsFrom(cfg))
		if err != nil {
			return nil, err
		}
		c.rt = conn
	}
	c.auth = session.New(c.rt, session.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
		Token:    cfg.Token,
	}, cfg.RefreshBefore)

	c.Images = &Images{kindClient[query.AddImage, query.FindImage, query.Image]{c, query.KindImage, query.Images}}
	c.Videos = &Videos{kindClient[query.AddVideo, query.FindVideo, query.Video]{c, query.KindVideo, query.Videos}}
	c.Frames = &Frames{kindClient[query.AddFrame, query.FindFrame, query.Frame]{c, query.KindFrame, query.Frames}}
	c.Clips = &Clips{kindClient[query.AddClip, query.FindClip, query.Clip]{c, query.KindClip, query.Clips}}
	c.Descriptors = &Descriptors{kindClient[query.AddDescriptor, query.FindDescriptor, query.Descriptor]{c, query.KindDescriptor, query.Descriptors}}
	c.DescriptorSets = &DescriptorSets{kindClient[query.AddDescriptorSet, query.FindDescriptorSet, query.DescriptorSet]{c, query.KindDescriptorSet, query.DescriptorSets}}
	c.BoundingBoxes = &BoundingBoxes{kindClient[query.AddBoundingBox, query.FindBoundingBox, query.BoundingBox]{c, query.KindBoundingBox, query.BoundingBoxes}}
	c.Polygons = &Polygons{kindClient[query.AddPolygon, query.FindPolygon, query.Polygon]{c, query.KindPolygon, query.Polygons}}
	c.Entities = &Entities{kindClient[query.AddEntity, query.FindEntity, query.Entity]{c, query.KindEntity, query.Entities}}
	c.Connections = &Connections{kindClient[query.AddConnection, query.FindConnection, query.Connection]{c, query.KindConnection, query.Connections}}
	return c, nil
}

func (c *Client) Config() config.Config { return c.cfg }

func (c *Client) Close() error { return c.rt.Close() }

// Session authenticates if needed and returns the current session.
func (c *Client) Session(ctx context.Context) (query.Session, error) {
	if _, err := c.auth.Token(ctx); err != nil {
		return query.Session{}, err
	}
	return c.auth.Session(), nil
}

// Query sends ops as one request. Spans line up with ops and locate each
// operation's results in the response. A non-zero command status is left
// in the response for the caller to inspect.
func (c *Client) Query(ctx context.Context, ops ...query.Operation) (*query.Response, []query.Span, error) {
	q := query.New()
	spans := make([]query.Span, len(ops))
	for i, op := range ops {
		s, err := q.Add(op)
		if err != nil {
			return nil, nil, fmt.Errorf("aperturedb: operation %d: %w", i, err)
		}
		spans[i] = s
	}
	resp, err := c.Execute(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return resp, spans, nil
}

// Execute builds q, sends it with the current session token and parses
// the response against it.
func (c *Client) Execute(ctx context.Context, q *query.Query) (*query.Response, error) {
	doc, err := q.Build()
	if err != nil {
		return nil, err
	}
	raw, err := c.send(ctx, doc)
	if err != nil {
		return nil, err
	}
	return query.Parse(doc, []byte(raw.JSON), raw.Blobs)
}

// send performs one authenticated round trip. A request the server turns
// down as a whole for an authentication reason is retried once with a
// renewed session, since that is how an expired token is reported. Other
// whole-request failures are returned as they are.
func (c *Client) send(ctx context.Context, doc query.Document) (envelope.Message, error) {
	logger := log.With().Str("request_id", uuid.NewString()).Logger()
	command := "empty"
	if len(doc.Commands) > 0 {
		command = doc.Commands[0].Name
	}
	start := time.Now()
	raw, err := c.exchange(ctx, doc, logger)
	if err == nil && authRejected(raw) {
		logger.Debug().Str("command", command).Msg("aperturedb.send rejected, renewing session")
		c.auth.Invalidate()
		raw, err = c.exchange(ctx, doc, logger)
	}
	elapsed := time.Since(start)
	observability.RecordQuery(command, err, elapsed)
	if err != nil {
		logger.Warn().Str("command", command).Err(err).Msg("aperturedb.send")
		return envelope.Message{}, err
	}
	logger.Debug().
		Str("command", command).
		Int("commands", len(doc.Commands)).
		Int("blobs_out", len(doc.Blobs)).
		Int("blobs_in", len(raw.Blobs)).
		Dur("elapsed", elapsed).
		Msg("aperturedb.send")
	return raw, nil
}

func (c *Client) exchange(ctx context.Context, doc query.Document, logger zerolog.Logger) (envelope.Message, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return envelope.Message{}, err
	}
	logger.Trace().Strs("commands", doc.Names()).Int("bytes", len(doc.JSON)).Msg("aperturedb.exchange")
	return c.rt.RoundTrip(ctx, doc.Message(token))
}

// authMarkers are fragments of the info text the server sends when it
// refuses a request because of the session rather than the query.
var authMarkers = []string{"authenticat", "token", "session"}

// authRejected reports a top-level status object with a failing status
// whose info points at the session.
func authRejected(raw envelope.Message) bool {
	v, err := query.ParseValue([]byte(raw.JSON))
	if err != nil {
		return false
	}
	top, ok := v.AsDoc()
	if !ok {
		return false
	}
	status, ok := top.Get("status")
	if !ok {
		return false
	}
	if n, ok := status.AsInt(); !ok || n == 0 {
		return false
	}
	info, _ := top.Get("info")
	text, _ := info.AsString()
	text = strings.ToLower(text)
	for _, m := range authMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// run sends op alone and returns the result of its command named command.
// A failing status comes back as a *query.StatusError.
func (c *Client) run(ctx context.Context, op query.Operation, command string) (query.Result, error) {
	resp, spans, err := c.Query(ctx, op)
	if err != nil {
		return query.Result{}, err
	}
	if err := resp.Err(); err != nil {
		return query.Result{}, err
	}
	return resp.ResultOf(spans[0], command)
}

// IsStatus reports whether err is a server-side command failure.
func IsStatus(err error) bool {
	var serr *query.StatusError
	return errors.As(err, &serr)
}
