package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig is the on-disk shape. Durations are strings such as "1s".
type fileConfig struct {
	Host             string  `toml:"host"`
	Port             int     `toml:"port"`
	Username         string  `toml:"username"`
	Password         string  `toml:"password"`
	Token            string  `toml:"token"`
	UseSSL           bool    `toml:"use_ssl"`
	UseKeepalive     bool    `toml:"use_keepalive"`
	RetryInterval    string  `toml:"retry_interval"`
	RetryMaxAttempts int     `toml:"retry_max_attempts"`
	ConnectTimeout   string  `toml:"connect_timeout"`
	ReadTimeout      string  `toml:"read_timeout"`
	WriteTimeout     string  `toml:"write_timeout"`
	RefreshBefore    string  `toml:"refresh_before"`
	MaxMessageBytes  uint64  `toml:"max_message_bytes"`
	LogLevel         string  `toml:"log_level"`
	TLS              fileTLS `toml:"tls"`
}

type fileTLS struct {
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Load reads path over Default. Only keys present in the file override
// defaults, so an explicit false or 0 is honored.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("username") {
		cfg.Username = raw.Username
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("token") {
		cfg.Token = raw.Token
	}
	if meta.IsDefined("use_ssl") {
		cfg.UseSSL = raw.UseSSL
	}
	if meta.IsDefined("use_keepalive") {
		cfg.UseKeepalive = raw.UseKeepalive
	}
	if meta.IsDefined("retry_max_attempts") {
		cfg.RetryMaxAttempts = raw.RetryMaxAttempts
	}
	if meta.IsDefined("max_message_bytes") {
		cfg.MaxMessageBytes = raw.MaxMessageBytes
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"retry_interval", raw.RetryInterval, &cfg.RetryInterval},
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"refresh_before", raw.RefreshBefore, &cfg.RefreshBefore},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("tls", "ca_file") {
		cfg.TLS.CAFile = raw.TLS.CAFile
	}
	if meta.IsDefined("tls", "cert_file") {
		cfg.TLS.CertFile = raw.TLS.CertFile
	}
	if meta.IsDefined("tls", "key_file") {
		cfg.TLS.KeyFile = raw.TLS.KeyFile
	}
	if meta.IsDefined("tls", "server_name") {
		cfg.TLS.ServerName = raw.TLS.ServerName
	}
	if meta.IsDefined("tls", "insecure_skip_verify") {
		cfg.TLS.InsecureSkipVerify = raw.TLS.InsecureSkipVerify
	}

	return cfg, nil
}
