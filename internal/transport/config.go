package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/gsaluja9/aperturedb-go/config"
	"github.com/gsaluja9/aperturedb-go/protocol/frame"
)

var ErrMissingAddr = errors.New("transport: address is required")

// Options is the connection-level slice of config.Config.
type Options struct {
	Addr           string
	UseTLS         bool
	TLS            config.TLSConfig
	Keepalive      bool
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// MaxAttempts bounds dial attempts per round trip; values below 1 mean 1.
	MaxAttempts int
	Backoff     Backoff
	Limits      frame.Limits
}

// OptionsFrom maps client configuration onto transport options. The
// retry interval seeds an exponential backoff capped at ten intervals.
func OptionsFrom(c config.Config) Options {
	return Options{
		Addr:           c.Addr(),
		UseTLS:         c.UseSSL,
		TLS:            c.TLS,
		Keepalive:      c.UseKeepalive,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		MaxAttempts:    c.RetryMaxAttempts,
		Backoff: Backoff{
			Initial:    c.RetryInterval,
			Multiplier: 2.0,
			Max:        10 * c.RetryInterval,
			Jitter:     true,
		},
		Limits: frame.Limits{MaxPayloadBytes: c.MaxMessageBytes},
	}
}

func (o Options) attempts() int {
	if o.MaxAttempts < 1 {
		return 1
	}
	return o.MaxAttempts
}

func (o Options) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: o.TLS.InsecureSkipVerify,
	}
	serverName := strings.TrimSpace(o.TLS.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(o.Addr)
		if err != nil {
			return nil, err
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(o.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("transport: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}
	if o.TLS.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(o.TLS.CertFile, o.TLS.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
