// Package session obtains and renews the token embedded in every request
// envelope.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gsaluja9/aperturedb-go/internal/observability"
	"github.com/gsaluja9/aperturedb-go/protocol/envelope"
	"github.com/gsaluja9/aperturedb-go/query"
	"github.com/rs/zerolog/log"
)

// ErrAuthenticationFailed is returned when the server rejects the
// credentials. It is sticky: a Manager that saw it never retries.
var ErrAuthenticationFailed = errors.New("session: authentication failed")

type RoundTripper interface {
	RoundTrip(ctx context.Context, req envelope.Message) (envelope.Message, error)
}

// Credentials authenticate with a password or with an API token.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Manager hands out a current session token, authenticating on first use,
// refreshing when the session nears expiry and authenticating again once
// the refresh token has expired too. Safe for concurrent use.
type Manager struct {
	rt            RoundTripper
	creds         Credentials
	refreshBefore time.Duration
	now           func() time.Time

	mu            sync.Mutex
	sess          query.Session
	sessionExpiry time.Time
	refreshExpiry time.Time
	fatal         error
}

func New(rt RoundTripper, creds Credentials, refreshBefore time.Duration) *Manager {
	return &Manager{
		rt:            rt,
		creds:         creds,
		refreshBefore: refreshBefore,
		now:           time.Now,
	}
}

// Token returns a session token with more than refreshBefore left on it.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fatal != nil {
		return "", m.fatal
	}
	now := m.now()
	if m.sess.SessionToken != "" && (m.sessionExpiry.IsZero() || now.Add(m.refreshBefore).Before(m.sessionExpiry)) {
		return m.sess.SessionToken, nil
	}
	if m.sess.RefreshToken != "" && (m.refreshExpiry.IsZero() || now.Before(m.refreshExpiry)) {
		err := m.exchange(ctx, "refresh", query.RefreshToken{Token: m.sess.RefreshToken})
		if err == nil {
			return m.sess.SessionToken, nil
		}
		var serr *query.StatusError
		if !errors.As(err, &serr) {
			return "", err
		}
		log.Warn().Int("status", serr.Status).Str("info", serr.Info).Msg("session.refresh rejected, authenticating")
	}
	err := m.exchange(ctx, "authenticate", query.Authenticate{
		Username: m.creds.Username,
		Password: m.creds.Password,
		Token:    m.creds.Token,
	})
	if err != nil {
		var serr *query.StatusError
		if errors.As(err, &serr) {
			m.fatal = fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
			return "", m.fatal
		}
		return "", err
	}
	return m.sess.SessionToken, nil
}

// Invalidate forgets the session token so the next Token call renews it.
// Used when the server reports the token as no longer valid.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.SessionToken = ""
	m.sessionExpiry = time.Time{}
}

// Session returns the current session state.
func (m *Manager) Session() query.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

func (m *Manager) exchange(ctx context.Context, kind string, op query.Operation) error {
	sess, err := m.call(ctx, op)
	observability.RecordAuth(kind, err == nil)
	if err != nil {
		log.Debug().Str("kind", kind).Err(err).Msg("session.exchange")
		return err
	}
	now := m.now()
	if sess.RefreshToken == "" {
		sess.RefreshToken = m.sess.RefreshToken
	}
	m.sess = sess
	m.sessionExpiry = expiry(now, sess.SessionExpiresIn)
	if sess.RefreshExpiresIn > 0 {
		m.refreshExpiry = expiry(now, sess.RefreshExpiresIn)
	}
	log.Info().
		Str("kind", kind).
		Dur("session_expires_in", sess.SessionExpiresIn).
		Dur("refresh_expires_in", sess.RefreshExpiresIn).
		Msg("session.exchange")
	return nil
}

// call runs a single auth command. Auth commands travel without a token.
func (m *Manager) call(ctx context.Context, op query.Operation) (query.Session, error) {
	q := query.New()
	if _, err := q.Add(op); err != nil {
		return query.Session{}, err
	}
	doc, err := q.Build()
	if err != nil {
		return query.Session{}, err
	}
	raw, err := m.rt.RoundTrip(ctx, doc.Message(""))
	if err != nil {
		return query.Session{}, err
	}
	resp, err := query.Parse(doc, []byte(raw.JSON), raw.Blobs)
	if err != nil {
		return query.Session{}, err
	}
	if resp.Status != 0 {
		return query.Session{}, resp.Err()
	}
	return query.SessionFrom(resp.Results[0])
}

func expiry(now time.Time, in time.Duration) time.Time {
	if in <= 0 {
		return time.Time{}
	}
	return now.Add(in)
}
