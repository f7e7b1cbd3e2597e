// Package config handles loading and validation of pushkit configuration.
// It loads from a .env file and environment variables; the VAPID key pair
// and subject are supplied once per process and never rotated here.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all push delivery configuration.
type Config struct {
	VAPIDPublicKey  string        // VAPID_PUBLIC_KEY (base64url, 65-byte uncompressed point)
	VAPIDPrivateKey string        // VAPID_PRIVATE_KEY (base64url, raw scalar or PKCS#8)
	VAPIDSubject    string        // VAPID_SUBJECT, or mailto: + VAPID_EMAIL
	SendTimeout     time.Duration // PUSHKIT_SEND_TIMEOUT (seconds)
	TTL             int           // PUSHKIT_TTL (seconds)
	Concurrency     int           // PUSHKIT_CONCURRENCY
	LogLevel        string        // PUSHKIT_LOG_LEVEL
}

// Load reads configuration from a .env file and environment variables.
func Load() (*Config, error) {
	// .env file is optional
	_ = godotenv.Load(".env")
	return loadFromEnv()
}

func loadFromEnv() (*Config, error) {
	cfg := &Config{
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:    subjectFromEnv(),
		LogLevel:        os.Getenv("PUSHKIT_LOG_LEVEL"),
	}

	if env := os.Getenv("PUSHKIT_SEND_TIMEOUT"); env != "" {
		if v, err := strconv.Atoi(env); err == nil {
			cfg.SendTimeout = time.Duration(v) * time.Second
		}
	}
	if env := os.Getenv("PUSHKIT_TTL"); env != "" {
		if v, err := strconv.Atoi(env); err == nil {
			cfg.TTL = v
		}
	}
	if env := os.Getenv("PUSHKIT_CONCURRENCY"); env != "" {
		if v, err := strconv.Atoi(env); err == nil {
			cfg.Concurrency = v
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// subjectFromEnv reads VAPID_SUBJECT, falling back to the legacy
// VAPID_EMAIL variable used by earlier deployments.
func subjectFromEnv() string {
	if v := os.Getenv("VAPID_SUBJECT"); v != "" {
		return v
	}
	if v := os.Getenv("VAPID_EMAIL"); v != "" {
		return "mailto:" + v
	}
	return ""
}

// applyDefaults sets default values for empty config fields.
func (c *Config) applyDefaults() {
	if c.VAPIDSubject == "" {
		c.VAPIDSubject = "mailto:admin@trackmind.app"
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.TTL == 0 {
		c.TTL = 86400
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for errors. Key material is only
// checked for presence here; the curve-level checks happen when the
// credentials are parsed.
func (c *Config) Validate() error {
	if c.VAPIDPublicKey == "" || c.VAPIDPrivateKey == "" {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must both be set (run `pushkit keygen` to create a pair)")
	}
	if !strings.HasPrefix(c.VAPIDSubject, "mailto:") && !strings.HasPrefix(c.VAPIDSubject, "https:") {
		return fmt.Errorf("VAPID_SUBJECT must be a mailto: or https: URI, got %q", c.VAPIDSubject)
	}
	if c.SendTimeout < time.Second || c.SendTimeout > 60*time.Second {
		return fmt.Errorf("send timeout must be between 1s and 60s, got %v", c.SendTimeout)
	}
	if c.TTL < 0 || c.TTL > 2419200 {
		return fmt.Errorf("TTL must be between 0 and 2419200 seconds, got %d", c.TTL)
	}
	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("concurrency must be between 1 and 64, got %d", c.Concurrency)
	}
	return nil
}

// Level maps the configured log level onto slog.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// String returns a redacted representation of the config.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Config{\n")
	fmt.Fprintf(&sb, "  VAPIDPublicKey: %s,\n", c.VAPIDPublicKey)
	fmt.Fprintf(&sb, "  VAPIDPrivateKey: ****,\n")
	fmt.Fprintf(&sb, "  VAPIDSubject: %s,\n", c.VAPIDSubject)
	fmt.Fprintf(&sb, "  SendTimeout: %v,\n", c.SendTimeout)
	fmt.Fprintf(&sb, "  TTL: %d,\n", c.TTL)
	fmt.Fprintf(&sb, "  Concurrency: %d,\n", c.Concurrency)
	fmt.Fprintf(&sb, "  LogLevel: %s,\n", c.LogLevel)
	fmt.Fprintf(&sb, "}")
	return sb.String()
}
