package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prowser-dev/prowser/pkg/metrics"
	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

// SessionConfig holds configuration for individual sessions.
type SessionConfig struct {
	// ReadTimeout is the maximum time to wait for a message or pong from
	// the client.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HandshakeTimeout is the maximum time for the client's Hello.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// HeartbeatInterval is the time between heartbeat pings.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 64KB.
	MaxMessageSize int64

	// MaxEventQueue is the size of the event channel buffer.
	// Default: 64.
	MaxEventQueue int
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    64 * 1024,
		MaxEventQueue:     64,
	}
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Config configures a Server.
type Config struct {
	// Address is the address to listen on.
	// Default: "localhost:8080".
	Address string

	// Document is the location of the previewed document: a path, a
	// file://, http(s):// or s3:// URL.
	Document string

	// Title is the shell page title. Defaults to the document location.
	Title string

	// WatchInterval is how often the document is polled for changes.
	// Zero disables watching; POST /reload still works.
	// Default: 1 second.
	WatchInterval time.Duration

	// Loader fetches the document and everything sessions navigate to.
	// Default: source.NewDefaultMux with default options.
	Loader source.Loader

	// Builder turns documents into trees.
	// Default: vdom.NewBuilder().
	Builder *vdom.Builder

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// SessionConfig is the configuration for individual sessions.
	// Default: DefaultSessionConfig().
	SessionConfig *SessionConfig

	// MaxSessions is the maximum number of concurrent sessions.
	// 0 means no limit.
	MaxSessions int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// Metrics receives load, reconcile and session metrics. Nil disables
	// them.
	Metrics *metrics.Metrics

	// Gatherer is served on /metrics.
	// Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Logger is the server's logger.
	// Default: slog.Default() with component=server.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults. Document must
// still be set.
func DefaultConfig() *Config {
	return &Config{
		Address:           "localhost:8080",
		WatchInterval:     time.Second,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       SameOriginCheck,
		SessionConfig:     DefaultSessionConfig(),
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		Gatherer:          prometheus.DefaultGatherer,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.SessionConfig = c.SessionConfig.Clone()
	return &clone
}

// withDefaults fills in unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	config := c.Clone()
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.Address == "" {
		config.Address = defaults.Address
	}
	if config.ReadBufferSize == 0 {
		config.ReadBufferSize = defaults.ReadBufferSize
	}
	if config.WriteBufferSize == 0 {
		config.WriteBufferSize = defaults.WriteBufferSize
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = defaults.CheckOrigin
	}
	if config.SessionConfig == nil {
		config.SessionConfig = defaults.SessionConfig
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if config.Gatherer == nil {
		config.Gatherer = defaults.Gatherer
	}
	if config.Loader == nil {
		config.Loader = source.NewDefaultMux(source.Options{})
	}
	if config.Builder == nil {
		config.Builder = vdom.NewBuilder()
	}
	if config.Logger == nil {
		config.Logger = slog.Default().With("component", "server")
	}
	if config.Title == "" {
		config.Title = config.Document
	}
	return config
}

// SameOriginCheck validates that the WebSocket request origin matches the
// host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No Origin header (e.g., same-origin request or curl)
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}
	return originURL.Host == host
}
