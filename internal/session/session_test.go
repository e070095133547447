package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gsaluja9/aperturedb-go/internal/testutil/testlog"
	"github.com/gsaluja9/aperturedb-go/protocol/envelope"
)

// fakeServer answers Authenticate and RefreshToken from a script.
type fakeServer struct {
	calls     []string
	params    []map[string]any
	tokens    []string
	rejectAll bool
	rejectRef bool
	netErr    error
	issued    int
}

func (s *fakeServer) RoundTrip(_ context.Context, req envelope.Message) (envelope.Message, error) {
	if s.netErr != nil {
		return envelope.Message{}, s.netErr
	}
	var cmds []map[string]map[string]any
	if err := json.Unmarshal([]byte(req.JSON), &cmds); err != nil || len(cmds) != 1 {
		return envelope.Message{}, fmt.Errorf("bad request %q", req.JSON)
	}
	s.tokens = append(s.tokens, req.Token)
	for name, params := range cmds[0] {
		s.calls = append(s.calls, name)
		s.params = append(s.params, params)
		reject := s.rejectAll || (name == "RefreshToken" && s.rejectRef)
		if reject {
			return envelope.New(fmt.Sprintf(`[{%q:{"status":-1,"info":"denied"}}]`, name), nil, ""), nil
		}
		s.issued++
		return envelope.New(fmt.Sprintf(
			`[{%q:{"status":0,"session_token":"s%d","refresh_token":"r%d","session_token_expires_in":3600,"refresh_token_expires_in":86400}}]`,
			name, s.issued, s.issued), nil, ""), nil
	}
	return envelope.Message{}, errors.New("unreachable")
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newManager(srv *fakeServer, creds Credentials) (*Manager, *clock) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := New(srv, creds, time.Minute)
	m.now = clk.now
	return m, clk
}

func TestTokenAuthenticatesOnce(t *testing.T) {
	testlog.Start(t)
	srv := &fakeServer{}
	m, _ := newManager(srv, Credentials{Username: "admin", Password: "admin"})

	for i := 0; i < 3; i++ {
		tok, err := m.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok != "s1" {
			t.Fatalf("expected s1, got %q", tok)
		}
	}
	if len(srv.calls) != 1 || srv.calls[0] != "Authenticate" {
		t.Fatalf("unexpected calls %v", srv.calls)
	}
	if srv.params[0]["username"] != "admin" || srv.params[0]["password"] != "admin" {
		t.Fatalf("unexpected params %v", srv.params[0])
	}
	if srv.tokens[0] != "" {
		t.Fatalf("auth request must not carry a token, got %q", srv.tokens[0])
	}
	if s := m.Session(); s.RefreshToken != "r1" || s.SessionExpiresIn != time.Hour {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestTokenWithAPIKey(t *testing.T) {
	testlog.Start(t)
	srv := &fakeServer{}
	m, _ := newManager(srv, Credentials{Token: "adbp_key"})
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if srv.params[0]["token"] != "adbp_key" {
		t.Fatalf("unexpected params %v", srv.params[0])
	}
	if _, ok := srv.params[0]["password"]; ok {
		t.Fatalf("password must not be sent with an API key")
	}
}

func TestTokenRefreshesNearExpiry(t *testing.T) {
	testlog.Start(t)
	srv := &fakeServer{}
	m, clk := newManager(srv, Credentials{Username: "u", Password: "p"})
	ctx := context.Background()
	if _, err := m.Token(ctx); err != nil {
		t.Fatalf("Token: %v", err)
	}

	clk.t = clk.t.Add(58 * time.Minute)
	tok, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "s1" {
		t.Fatalf("token outside the refresh window should be reused, got %q", tok)
	}

	clk.t = clk.t.Add(90 * time.Second)
	tok, err = m.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "s2" {
		t.Fatalf("expected refreshed token s2, got %q", tok)
	}
	if got := srv.calls; len(got) != 2 || got[1] != "RefreshToken" {
		t.Fatalf("unexpected calls %v", got)
	}
	if srv.params[1]["refresh_token"] != "r1" {
		t.Fatalf("unexpected refresh params %v", srv.params[1])
	}
}

func TestTokenReauthenticatesAfterRefreshExpiry(t *testing.T) {
	testlog.Start(t)
	srv := &fakeServer{}
	m, clk := newManager(srv, Credentials{Username: "u", Password: "p"})
	ctx := context.Background()
	if _, err := m.Token(ctx); err != nil {
		t.Fatalf("Token: %v", err)
	}
	clk.t = clk.t.Add(25 * time.Hour)
	if _, err := m.Token(ctx); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got := srv.calls; len(got) != 2 || got[1] != "Authenticate" {
		t.Fatalf("unexpected calls %v", got)
	}
}

func TestTokenFallsBackWhenRefreshRejected(t *testing.T) {
	testlog.Start(t)
	srv := &fakeServer{rejectRef: true}
	m, clk := newManager(srv, Credentials{Username: "u", Password: "p"})
	ctx := context.Background()
	if _, err := m.Token(ctx); err != nil {
		t.Fatalf("Token: %v", err)
	}
	clk.t = clk.t.Add(time.Hour)
	tok, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "s2" {
		t.Fatalf("expected new session s2, got %q", tok)
	}
	want := []string{"Authenticate", "RefreshToken", "Authenticate"}
	if fmt.Sprint(srv.calls) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", srv.calls, want)
	}
}

func TestAuthenticationFailureIsFatal(t *testing.T) {
	testlog.Start(t)
	srv := &fakeServer{rejectAll: true}
	m, _ := newManager(srv, Credentials{Username: "u", Password: "bad"})
	ctx := context.Background()

	_, err := m.Token(ctx)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	srv.rejectAll = false
	if _, err := m.Token(ctx); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("failure should be sticky, got %v", err)
	}
	if len(srv.calls) != 1 {
		t.Fatalf("expected no retry after fatal failure, got %v", srv.calls)
	}
}

func TestTransportErrorIsNotFatal(t *testing.T) {
	testlog.Start(t)
	srv := &fakeServer{netErr: errors.New("connection refused")}
	m, _ := newManager(srv, Credentials{Username: "u", Password: "p"})
	ctx := context.Background()

	if _, err := m.Token(ctx); err == nil || errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected a plain transport error, got %v", err)
	}
	srv.netErr = nil
	if tok, err := m.Token(ctx); err != nil || tok != "s1" {
		t.Fatalf("expected recovery, got %q, %v", tok, err)
	}
}

func TestInvalidateForcesRenewal(t *testing.T) {
	testlog.Start(t)
	srv := &fakeServer{}
	m, _ := newManager(srv, Credentials{Username: "u", Password: "p"})
	ctx := context.Background()
	if _, err := m.Token(ctx); err != nil {
		t.Fatalf("Token: %v", err)
	}
	m.Invalidate()
	tok, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "s2" || srv.calls[1] != "RefreshToken" {
		t.Fatalf("expected refresh after invalidate, got %q via %v", tok, srv.calls)
	}
}

func TestMissingCredentials(t *testing.T) {
	testlog.Start(t)
	srv := &fakeServer{}
	m, _ := newManager(srv, Credentials{})
	if _, err := m.Token(context.Background()); err == nil {
		t.Fatalf("expected error without credentials")
	}
	if len(srv.calls) != 0 {
		t.Fatalf("nothing should be sent without credentials")
	}
}
