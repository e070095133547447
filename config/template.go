package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

func toFile(c Config) fileConfig {
	return fileConfig{
		Host:             c.Host,
		Port:             c.Port,
		Username:         c.Username,
		Password:         c.Password,
		Token:            c.Token,
		UseSSL:           c.UseSSL,
		UseKeepalive:     c.UseKeepalive,
		RetryInterval:    c.RetryInterval.String(),
		RetryMaxAttempts: c.RetryMaxAttempts,
		ConnectTimeout:   c.ConnectTimeout.String(),
		ReadTimeout:      c.ReadTimeout.String(),
		WriteTimeout:     c.WriteTimeout.String(),
		RefreshBefore:    c.RefreshBefore.String(),
		MaxMessageBytes:  c.MaxMessageBytes,
		LogLevel:         c.LogLevel,
		TLS: fileTLS{
			CAFile:             c.TLS.CAFile,
			CertFile:           c.TLS.CertFile,
			KeyFile:            c.TLS.KeyFile,
			ServerName:         c.TLS.ServerName,
			InsecureSkipVerify: c.TLS.InsecureSkipVerify,
		},
	}
}

// Marshal renders c in the file format Load reads.
func Marshal(c Config) ([]byte, error) {
	b, err := toml.Marshal(toFile(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return b, nil
}

// WriteTemplate writes Default to path with placeholder credentials.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	cfg := Default()
	cfg.Username = "admin"
	cfg.Password = "admin"
	b, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
