// Package config holds the client connection settings: defaults, a TOML
// file layer, environment overrides and validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gsaluja9/aperturedb-go/internal/logging"
)

const DefaultPort = 55555

const (
	EnvHost     = "APERTUREDB_HOST"
	EnvPort     = "APERTUREDB_PORT"
	EnvUsername = "APERTUREDB_USERNAME"
	EnvPassword = "APERTUREDB_PASSWORD"
	EnvToken    = "APERTUREDB_TOKEN"
	EnvUseSSL   = "APERTUREDB_USE_SSL"
)

var (
	ErrMissingHost        = errors.New("config: host is required")
	ErrInvalidPort        = errors.New("config: port must be in 1..65535")
	ErrMissingCredentials = errors.New("config: token or username and password required")
)

type TLSConfig struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

// Config is everything a client needs to reach and authenticate with a
// server. Build one with Default and override fields; there is no global
// instance.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Token is an API key used instead of a password.
	Token string

	UseSSL       bool
	UseKeepalive bool
	TLS          TLSConfig

	RetryInterval    time.Duration
	RetryMaxAttempts int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// RefreshBefore is how long before session expiry the token is renewed.
	RefreshBefore time.Duration

	MaxMessageBytes uint64
	LogLevel        string
}

func Default() Config {
	return Config{
		Host:             "localhost",
		Port:             DefaultPort,
		UseSSL:           true,
		UseKeepalive:     true,
		RetryInterval:    time.Second,
		RetryMaxAttempts: 3,
		ConnectTimeout:   10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     60 * time.Second,
		RefreshBefore:    30 * time.Second,
		MaxMessageBytes:  1 << 30,
		LogLevel:         "info",
	}
}

// Addr is host:port for dialing.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func Validate(c Config) error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrMissingHost
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Port)
	}
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return ErrMissingCredentials
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("config: retry_max_attempts must be >= 1, got %d", c.RetryMaxAttempts)
	}
	for name, d := range map[string]time.Duration{
		"retry_interval":  c.RetryInterval,
		"connect_timeout": c.ConnectTimeout,
		"read_timeout":    c.ReadTimeout,
		"write_timeout":   c.WriteTimeout,
		"refresh_before":  c.RefreshBefore,
	} {
		if d < 0 {
			return fmt.Errorf("config: %s must not be negative", name)
		}
	}
	if c.MaxMessageBytes == 0 {
		return fmt.Errorf("config: max_message_bytes must be positive")
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("config: tls cert_file and key_file must be set together")
	}
	if !c.UseSSL && (c.TLS.CAFile != "" || c.TLS.CertFile != "") {
		return fmt.Errorf("config: tls files set but use_ssl is false")
	}
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
		}
	}
	return nil
}

// FromEnv overlays the APERTUREDB_* variables that are set onto c.
func FromEnv(c Config) (Config, error) {
	return fromLookup(c, os.LookupEnv)
}

func fromLookup(c Config, lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvHost); ok {
		c.Host = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", EnvPort, err)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvUsername); ok {
		c.Username = v
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Password = v
	}
	if v, ok := lookup(EnvToken); ok {
		c.Token = v
	}
	if v, ok := lookup(EnvUseSSL); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", EnvUseSSL, err)
		}
		c.UseSSL = b
	}
	return c, nil
}
