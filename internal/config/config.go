// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the addrlens configuration. It can be loaded from a JSON or YAML file;
// every field is optional and missing values fall back to Default.
type Config struct {
	DatabaseURL     string `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	CanonicalSource string `json:"canonical_source,omitempty" yaml:"canonical_source,omitempty" validate:"omitempty,max=64"`

	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error off"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"omitempty,oneof=console json"`

	UseBrowser   bool     `json:"use_browser,omitempty" yaml:"use_browser,omitempty"`     // Render pages in headless Chrome
	FetchTimeout Duration `json:"fetch_timeout,omitempty" yaml:"fetch_timeout,omitempty"` // Per-page fetch timeout

	Rescan  RescanConfig   `json:"rescan" yaml:"rescan"`
	Hover   HoverConfig    `json:"hover" yaml:"hover"`
	Server  ServerConfig   `json:"server" yaml:"server"`
	Sources []SourceConfig `json:"sources,omitempty" yaml:"sources,omitempty" validate:"dive"`
}

// RescanConfig tunes the debounced rescan.
type RescanConfig struct {
	Window   Duration `json:"window,omitempty" yaml:"window,omitempty"`
	MaxDelay Duration `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
}

// HoverConfig tunes the hover panel.
type HoverConfig struct {
	ShowDelay      Duration `json:"show_delay,omitempty" yaml:"show_delay,omitempty"`
	HideDelay      Duration `json:"hide_delay,omitempty" yaml:"hide_delay,omitempty"`
	RecordTimeout  Duration `json:"record_timeout,omitempty" yaml:"record_timeout,omitempty"`
	PanelWidth     float64  `json:"panel_width,omitempty" yaml:"panel_width,omitempty" validate:"gte=0"`
	PanelHeight    float64  `json:"panel_height,omitempty" yaml:"panel_height,omitempty" validate:"gte=0"`
	ViewportWidth  float64  `json:"viewport_width,omitempty" yaml:"viewport_width,omitempty" validate:"gte=0"`
	ViewportHeight float64  `json:"viewport_height,omitempty" yaml:"viewport_height,omitempty" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `json:"addr,omitempty" yaml:"addr,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	RateLimit      float64  `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty" validate:"gte=0"` // Requests per second per client, 0 disables
	Burst          int      `json:"burst,omitempty" yaml:"burst,omitempty" validate:"gte=0"`
}

// SourceConfig describes one scraped tag source: a list of pages and the selectors
// that pick a row and its address, name and entity cells.
type SourceConfig struct {
	Name       string   `json:"name" yaml:"name" validate:"required,max=64"`
	URLs       []string `json:"urls" yaml:"urls" validate:"required,min=1,dive,url"`
	Row        string   `json:"row" yaml:"row" validate:"required"`
	Address    string   `json:"address" yaml:"address" validate:"required"`
	NameCell   string   `json:"name_cell" yaml:"name_cell" validate:"required"`
	EntityCell string   `json:"entity_cell,omitempty" yaml:"entity_cell,omitempty"`
	Next       string   `json:"next,omitempty" yaml:"next,omitempty"`                           // Selector for the next-page link
	MaxPages   int      `json:"max_pages,omitempty" yaml:"max_pages,omitempty" validate:"gte=0"` // Pages followed per start URL
	Rate       float64  `json:"rate,omitempty" yaml:"rate,omitempty" validate:"gte=0"`           // Pages per second
	UseBrowser bool     `json:"use_browser,omitempty" yaml:"use_browser,omitempty"`
}

// Duration is a time.Duration that reads "500ms" style strings or plain milliseconds.
type Duration struct {
	time.Duration
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := parseDuration(v)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// UnmarshalYAML accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	parsed, err := parseDuration(v)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseDuration(v any) (time.Duration, error) {
	switch x := v.(type) {
	case string:
		d, err := time.ParseDuration(x)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", x, err)
		}
		return d, nil
	case float64:
		return time.Duration(x * float64(time.Millisecond)), nil
	case int:
		return time.Duration(x) * time.Millisecond, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("invalid duration %v", v)
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CanonicalSource: "arkham",
		LogLevel:        "info",
		LogFormat:       "console",
		FetchTimeout:    Duration{30 * time.Second},
		Rescan:          RescanConfig{Window: Duration{500 * time.Millisecond}},
		Hover: HoverConfig{
			ShowDelay:     Duration{300 * time.Millisecond},
			HideDelay:     Duration{500 * time.Millisecond},
			RecordTimeout: Duration{5 * time.Second},
			PanelWidth:    320,
			PanelHeight:   180,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 10,
			Burst:     20,
		},
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' validation", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	for _, d := range []struct {
		name string
		v    Duration
	}{
		{"fetch_timeout", c.FetchTimeout},
		{"rescan.window", c.Rescan.Window},
		{"rescan.max_delay", c.Rescan.MaxDelay},
		{"hover.show_delay", c.Hover.ShowDelay},
		{"hover.hide_delay", c.Hover.HideDelay},
		{"hover.record_timeout", c.Hover.RecordTimeout},
	} {
		if d.v.Duration < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", d.name)
		}
	}
	if c.Rescan.MaxDelay.Duration > 0 && c.Rescan.Window.Duration > 0 && c.Rescan.MaxDelay.Duration < c.Rescan.Window.Duration {
		return fmt.Errorf("config error: 'rescan.max_delay' must not be shorter than 'rescan.window'")
	}

	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if seen[s.Name] {
			return fmt.Errorf("config error: duplicate source %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// ApplyEnv overrides fields from ADDRLENS_* variables and DATABASE_URL.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := getenv("ADDRLENS_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := getenv("ADDRLENS_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := getenv("ADDRLENS_LOG_FORMAT"); v != "" {
		c.LogFormat = strings.ToLower(v)
	}
	if v := getenv("ADDRLENS_CANONICAL_SOURCE"); v != "" {
		c.CanonicalSource = strings.ToLower(v)
	}
	if v := getenv("ADDRLENS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("ADDRLENS_USE_BROWSER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config error: ADDRLENS_USE_BROWSER: %w", err)
		}
		c.UseBrowser = b
	}
	if v := getenv("ADDRLENS_RESCAN_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config error: ADDRLENS_RESCAN_WINDOW: %w", err)
		}
		c.Rescan.Window = Duration{d}
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.CanonicalSource == "" {
		result.CanonicalSource = defaults.CanonicalSource
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.Server.Addr == "" {
		result.Server.Addr = defaults.Server.Addr
	}
	if len(result.Server.AllowedOrigins) == 0 {
		result.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if len(result.Sources) == 0 {
		result.Sources = defaults.Sources
	}

	// Durations and numbers: use default if zero
	mergeDuration(&result.FetchTimeout, defaults.FetchTimeout)
	mergeDuration(&result.Rescan.Window, defaults.Rescan.Window)
	mergeDuration(&result.Rescan.MaxDelay, defaults.Rescan.MaxDelay)
	mergeDuration(&result.Hover.ShowDelay, defaults.Hover.ShowDelay)
	mergeDuration(&result.Hover.HideDelay, defaults.Hover.HideDelay)
	mergeDuration(&result.Hover.RecordTimeout, defaults.Hover.RecordTimeout)
	mergeFloat(&result.Hover.PanelWidth, defaults.Hover.PanelWidth)
	mergeFloat(&result.Hover.PanelHeight, defaults.Hover.PanelHeight)
	mergeFloat(&result.Hover.ViewportWidth, defaults.Hover.ViewportWidth)
	mergeFloat(&result.Hover.ViewportHeight, defaults.Hover.ViewportHeight)
	mergeFloat(&result.Server.RateLimit, defaults.Server.RateLimit)
	if result.Server.Burst == 0 {
		result.Server.Burst = defaults.Server.Burst
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

func mergeDuration(dst *Duration, def Duration) {
	if dst.Duration == 0 {
		*dst = def
	}
}

func mergeFloat(dst *float64, def float64) {
	if *dst == 0 {
		*dst = def
	}
}
