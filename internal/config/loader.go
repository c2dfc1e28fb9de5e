// Package config loads chatsync configuration from YAML with
// CHATSYNC_* environment overrides.
package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envOverrides mirrors the config fields that may be set from the
// environment. Environment values win over the file.
type envOverrides struct {
	APIBase  string `env:"CHATSYNC_API_BASE"`
	WSBase   string `env:"CHATSYNC_WS_BASE"`
	Host     string `env:"CHATSYNC_HOST"`
	Token    string `env:"CHATSYNC_TOKEN"`
	UserID   string `env:"CHATSYNC_USER_ID"`
	FullName string `env:"CHATSYNC_FULL_NAME"`
	LogLevel string `env:"CHATSYNC_LOG_LEVEL"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			APIBase: "http://localhost:5180",
			WSBase:  "ws://localhost:5180",
			Host:    "localhost",
		},
		Presence: PresenceConfig{FreshnessSeconds: 300},
		Notify:   NotifyConfig{RetryDelaySeconds: 5, InboxLimit: 200},
		Upload:   UploadConfig{TimeoutSeconds: 30},
		Logging:  LoggingConfig{Level: "info", Style: "pretty"},
	}
}

// Load reads the config file, fills defaults, and applies environment
// overrides. A missing file yields defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return cfg, err
	}

	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.APIBase == "" {
		cfg.Server.APIBase = "http://localhost:5180"
	}
	if cfg.Server.WSBase == "" {
		cfg.Server.WSBase = "ws://localhost:5180"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Presence.FreshnessSeconds == 0 {
		cfg.Presence.FreshnessSeconds = 300
	}
	if cfg.Notify.RetryDelaySeconds == 0 {
		cfg.Notify.RetryDelaySeconds = 5
	}
	if cfg.Notify.InboxLimit == 0 {
		cfg.Notify.InboxLimit = 200
	}
	if cfg.Upload.TimeoutSeconds == 0 {
		cfg.Upload.TimeoutSeconds = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = "pretty"
	}
}

func applyEnvOverrides(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return err
	}
	if ov.APIBase != "" {
		cfg.Server.APIBase = ov.APIBase
	}
	if ov.WSBase != "" {
		cfg.Server.WSBase = ov.WSBase
	}
	if ov.Host != "" {
		cfg.Server.Host = ov.Host
	}
	if ov.Token != "" {
		cfg.Auth.Token = ov.Token
	}
	if ov.UserID != "" {
		cfg.Auth.UserID = ov.UserID
	}
	if ov.FullName != "" {
		cfg.Auth.FullName = ov.FullName
	}
	if ov.LogLevel != "" {
		cfg.Logging.Level = ov.LogLevel
	}
	return nil
}
