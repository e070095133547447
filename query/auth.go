package query

import (
	"fmt"
	"time"

	"github.com/gsaluja9/aperturedb-go/protocol"
)

const (
	AuthenticateCommand = "Authenticate"
	RefreshTokenCommand = "RefreshToken"
)

// Authenticate logs in with a password or an API token.
type Authenticate struct {
	Username string
	Password string
	Token    string
}

func (a Authenticate) appendTo(q *Query) error {
	if a.Username == "" && a.Token == "" {
		return protocol.Violationf(AuthenticateCommand+".username", "missing username")
	}
	if (a.Password == "") == (a.Token == "") {
		return protocol.Violationf(AuthenticateCommand, "exactly one of password and token is required")
	}
	var params Properties
	if a.Username != "" {
		params.Set("username", String(a.Username))
	}
	if a.Password != "" {
		params.Set("password", String(a.Password))
	} else {
		params.Set("token", String(a.Token))
	}
	q.emit(Command{Name: AuthenticateCommand, Params: params})
	return nil
}

// RefreshToken trades a refresh token for a new session.
type RefreshToken struct {
	Token string
}

func (r RefreshToken) appendTo(q *Query) error {
	if r.Token == "" {
		return protocol.Violationf(RefreshTokenCommand+".refresh_token", "missing refresh token")
	}
	var params Properties
	params.Set("refresh_token", String(r.Token))
	q.emit(Command{Name: RefreshTokenCommand, Params: params})
	return nil
}

// Session is what Authenticate and RefreshToken return.
type Session struct {
	SessionToken     string
	RefreshToken     string
	SessionExpiresIn time.Duration
	RefreshExpiresIn time.Duration
}

// SessionFrom reads the session out of an Authenticate or RefreshToken
// result. A non-zero status is returned as a *StatusError.
func SessionFrom(res Result) (Session, error) {
	if err := res.Err(); err != nil {
		return Session{}, err
	}
	var s Session
	str := func(key string) (string, error) {
		v, ok := res.Extra.Get(key)
		if !ok {
			return "", nil
		}
		out, isStr := v.AsString()
		if !isStr {
			return "", &protocol.ProtocolMismatch{Command: res.Command, Reason: fmt.Sprintf("%s is a %s", key, v.Kind())}
		}
		return out, nil
	}
	secs := func(key string) (time.Duration, error) {
		v, ok := res.Extra.Get(key)
		if !ok {
			return 0, nil
		}
		n, isNum := v.AsFloat()
		if !isNum || n < 0 {
			return 0, &protocol.ProtocolMismatch{Command: res.Command, Reason: fmt.Sprintf("%s is not a duration", key)}
		}
		return time.Duration(n * float64(time.Second)), nil
	}
	var err error
	if s.SessionToken, err = str("session_token"); err != nil {
		return Session{}, err
	}
	if s.RefreshToken, err = str("refresh_token"); err != nil {
		return Session{}, err
	}
	if s.SessionExpiresIn, err = secs("session_token_expires_in"); err != nil {
		return Session{}, err
	}
	if s.RefreshExpiresIn, err = secs("refresh_token_expires_in"); err != nil {
		return Session{}, err
	}
	if s.SessionToken == "" {
		return Session{}, &protocol.ProtocolMismatch{Command: res.Command, Reason: "no session_token in result"}
	}
	return s, nil
}
