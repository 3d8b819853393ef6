package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Line    LineConfig    `koanf:"line"`
	Metrics MetricsConfig `koanf:"metrics"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LineConfig holds the LINE channel credentials and reply API settings.
type LineConfig struct {
	ChannelSecret      string `koanf:"channel_secret"`
	ChannelAccessToken string `koanf:"channel_access_token"`
	EncryptionKey      string `koanf:"encryption_key"`
	APIBaseURL         string `koanf:"api_base_url"`
	ReplyTimeoutSecs   int    `koanf:"reply_timeout_secs"`
	MaxBodyBytes       int64  `koanf:"max_body_bytes"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// legacyEnv maps the unprefixed variable names used by existing LINE
// deployments onto config keys.
var legacyEnv = map[string]string{
	"CHANNEL_SECRET":       "line.channel_secret",
	"CHANNEL_ACCESS_TOKEN": "line.channel_access_token",
	"ENCRYPTION_KEY":       "line.encryption_key",
	"PORT":                 "server.port",
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":             5000,
		"server.host":             "0.0.0.0",
		"log.level":               "info",
		"log.format":              "json",
		"line.api_base_url":       "https://api.line.me",
		"line.reply_timeout_secs": 10,
		"line.max_body_bytes":     1 << 20,
		"metrics.enabled":         true,
		"metrics.path":            "/metrics",
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	_ = k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil)

	// Prefixed variables override everything
	// LINERELAY_LINE_API_BASE_URL -> line.api_base_url
	_ = k.Load(env.Provider("LINERELAY_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "LINERELAY_"))
		section, rest, ok := strings.Cut(key, "_")
		if !ok {
			return key
		}
		return section + "." + rest
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
