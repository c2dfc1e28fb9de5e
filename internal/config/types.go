package config

// Config is the root configuration for chatsync.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	Auth     AuthConfig     `yaml:"auth,omitempty"`
	Presence PresenceConfig `yaml:"presence,omitempty"`
	Notify   NotifyConfig   `yaml:"notify,omitempty"`
	Upload   UploadConfig   `yaml:"upload,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig holds the backend base URLs. Host is the client-side
// hostname used for tenant resolution (normally the machine's own
// notion of "where am I pointed", e.g. "acme.localhost").
type ServerConfig struct {
	APIBase string `yaml:"apiBase,omitempty"` // http(s)://host:port
	WSBase  string `yaml:"wsBase,omitempty"`  // ws(s)://host:port
	Host    string `yaml:"host,omitempty"`    // tenant-bearing hostname
}

// AuthConfig carries the access token read from durable storage.
// Refresh and expiry are out of scope here.
type AuthConfig struct {
	Token    string `yaml:"token,omitempty"`
	UserID   string `yaml:"userId,omitempty"`
	FullName string `yaml:"fullName,omitempty"`
	Avatar   string `yaml:"avatar,omitempty"`
}

// PresenceConfig tunes the liveness heuristic.
type PresenceConfig struct {
	FreshnessSeconds int `yaml:"freshnessSeconds,omitempty"` // default 300
}

// NotifyConfig tunes the notification fan-out listener.
type NotifyConfig struct {
	RetryDelaySeconds int `yaml:"retryDelaySeconds,omitempty"` // default 5
	InboxLimit        int `yaml:"inboxLimit,omitempty"`        // default 200
}

// UploadConfig points at the media upload collaborator.
type UploadConfig struct {
	Endpoint       string `yaml:"endpoint,omitempty"` // default {apiBase}/v1/media
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" .. "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}

// ConfigError reports an invalid or unparseable config file.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }
