package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/prowser-dev/prowser/internal/errors"
	"github.com/prowser-dev/prowser/pkg/render"
	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "prowser.json"

	// DefaultPort is the default preview server port.
	DefaultPort = 8080

	// DefaultHost is the default preview server host.
	DefaultHost = "localhost"

	// DefaultTimeout is the default document fetch timeout.
	DefaultTimeout = "10s"

	// DefaultWatchInterval is how often the preview server polls the
	// document by default.
	DefaultWatchInterval = "1s"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "prowser"
)

// fileNames are the configuration files Load looks for, in order.
var fileNames = []string{ConfigFileName, "prowser.yaml", "prowser.yml"}

// Config represents the complete prowser configuration.
type Config struct {
	// Browser configures fetching and the terminal browser.
	Browser BrowserConfig `json:"browser" yaml:"browser"`

	// Builder configures how documents become trees.
	Builder BuilderConfig `json:"builder" yaml:"builder"`

	// Render configures HTML output.
	Render RenderConfig `json:"render" yaml:"render"`

	// Serve configures the live preview server.
	Serve ServeConfig `json:"serve" yaml:"serve"`

	// S3 enables s3:// locations when set.
	S3 *S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// BrowserConfig contains fetch and terminal browser settings.
type BrowserConfig struct {
	// Home is opened when browse is run without a URL.
	Home string `json:"home,omitempty" yaml:"home,omitempty"`

	// Timeout bounds each HTTP fetch (e.g., "10s").
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"omitempty,duration"`

	// UserAgent is sent with HTTP requests.
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
}

// BuilderConfig contains tree builder settings.
type BuilderConfig struct {
	// Denylist names tags that never render.
	Denylist []string `json:"denylist,omitempty" yaml:"denylist,omitempty" validate:"dive,required"`

	// KeyAttr is the attribute whose value keys a node.
	KeyAttr string `json:"keyAttr,omitempty" yaml:"keyAttr,omitempty" validate:"required"`

	// PreserveWhitespace keeps whitespace-only text and untrimmed text.
	PreserveWhitespace bool `json:"preserveWhitespace,omitempty" yaml:"preserveWhitespace,omitempty"`

	// MaxDepth drops nodes nested deeper than this.
	MaxDepth int `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty" validate:"gte=0"`
}

// RenderConfig contains HTML output settings.
type RenderConfig struct {
	// Pretty indents the output.
	Pretty bool `json:"pretty,omitempty" yaml:"pretty,omitempty"`

	// Indent is one level of indentation in pretty output.
	Indent string `json:"indent,omitempty" yaml:"indent,omitempty"`

	// Minify minifies the output. It takes precedence over Pretty.
	Minify bool `json:"minify,omitempty" yaml:"minify,omitempty"`
}

// ServeConfig contains preview server settings.
type ServeConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty" validate:"required"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty" yaml:"port,omitempty" validate:"gte=0,lte=65535"`

	// Document is the previewed document when none is given on the
	// command line.
	Document string `json:"document,omitempty" yaml:"document,omitempty"`

	// WatchInterval is how often the document is polled ("0s" disables).
	WatchInterval string `json:"watchInterval,omitempty" yaml:"watchInterval,omitempty" validate:"omitempty,duration"`

	// WriteTimeout bounds each WebSocket write.
	WriteTimeout string `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty" validate:"omitempty,duration"`

	// MaxSessions limits concurrent sessions; 0 means no limit.
	MaxSessions int `json:"maxSessions,omitempty" yaml:"maxSessions,omitempty" validate:"gte=0"`
}

// S3Config contains the S3 client settings.
type S3Config struct {
	// Region is the bucket region.
	Region string `json:"region" yaml:"region" validate:"required"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"omitempty,url"`

	// UsePathStyle addresses buckets by path instead of subdomain.
	UsePathStyle bool `json:"usePathStyle,omitempty" yaml:"usePathStyle,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled registers the collectors and serves /metrics.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty" validate:"required_if=Enabled true"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Browser: BrowserConfig{
			Timeout: DefaultTimeout,
		},
		Builder: BuilderConfig{
			Denylist: append([]string(nil), vdom.DefaultDenylist...),
			KeyAttr:  vdom.KeyAttr,
			MaxDepth: vdom.DefaultMaxDepth,
		},
		Serve: ServeConfig{
			Host:          DefaultHost,
			Port:          DefaultPort,
			WatchInterval: DefaultWatchInterval,
			WriteTimeout:  "10s",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// prowser.json, then prowser.yaml and prowser.yml.
func Load(dir string) (*Config, error) {
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E100").
		WithDetail("No prowser.json or prowser.yaml found in " + dir).
		WithSuggestion("Run 'prowser init' to create one")
}

// LoadOrDefault is Load, falling back to New when dir has no
// configuration file. Other errors are returned.
func LoadOrDefault(dir string) (*Config, error) {
	if !Exists(dir) {
		return New(), nil
	}
	return Load(dir)
}

// LoadFile reads configuration from the specified file path. The format
// follows the extension: .yaml and .yml are YAML, anything else JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No configuration file at " + path).
				WithSuggestion("Run 'prowser init' to create one")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithLocationFromError(path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML when the
// extension says so and JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		// Add newline at end of file
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E101").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Browser.Timeout == "" {
		c.Browser.Timeout = DefaultTimeout
	}
	if c.Builder.KeyAttr == "" {
		c.Builder.KeyAttr = vdom.KeyAttr
	}
	if c.Builder.Denylist == nil {
		c.Builder.Denylist = append([]string(nil), vdom.DefaultDenylist...)
	}
	if c.Builder.MaxDepth == 0 {
		c.Builder.MaxDepth = vdom.DefaultMaxDepth
	}
	if c.Serve.Host == "" {
		c.Serve.Host = DefaultHost
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = DefaultPort
	}
	if c.Serve.WatchInterval == "" {
		c.Serve.WatchInterval = DefaultWatchInterval
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}

// ServeAddress returns the host:port the preview server listens on.
func (c *Config) ServeAddress() string {
	return c.Serve.Host + ":" + strconv.Itoa(c.Serve.Port)
}

// Timeout returns the fetch timeout, or zero when unset.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.Browser.Timeout)
}

// WatchInterval returns the document polling interval.
func (c *Config) WatchInterval() time.Duration {
	return parseDuration(c.Serve.WatchInterval)
}

// WriteTimeout returns the WebSocket write timeout, or zero when unset.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Serve.WriteTimeout)
}

// BuilderOptions returns the vdom builder options for c.
func (c *Config) BuilderOptions() []vdom.BuilderOption {
	opts := []vdom.BuilderOption{
		vdom.WithKeyAttr(c.Builder.KeyAttr),
		vdom.WithPreserveWhitespace(c.Builder.PreserveWhitespace),
		vdom.WithDenylist(c.Builder.Denylist...),
	}
	if c.Builder.MaxDepth > 0 {
		opts = append(opts, vdom.WithMaxDepth(c.Builder.MaxDepth))
	}
	return opts
}

// SourceOptions returns the loader options for c.
func (c *Config) SourceOptions() source.Options {
	opts := source.Options{
		Timeout:   c.Timeout(),
		UserAgent: c.Browser.UserAgent,
	}
	if c.S3 != nil {
		opts.S3 = &source.S3Config{
			Region:       c.S3.Region,
			Endpoint:     c.S3.Endpoint,
			UsePathStyle: c.S3.UsePathStyle,
		}
	}
	return opts
}

// RendererConfig returns the HTML renderer configuration for c.
func (c *Config) RendererConfig() render.RendererConfig {
	return render.RendererConfig{
		Pretty: c.Render.Pretty,
		Indent: c.Render.Indent,
		Minify: c.Render.Minify,
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range fileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// parseDuration parses a validated duration; invalid input reads as zero.
func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
