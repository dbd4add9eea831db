// Package config loads topograph settings from YAML or TOML files on top of
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/TFMV/topograph/logging"
	"github.com/TFMV/topograph/view"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrUnknownView is returned for view kinds without a configuration
var ErrUnknownView = errors.New("config: unknown view kind")

// Config holds topograph configuration
type Config struct {
	Server ServerConfig   `json:"server" yaml:"server" toml:"server"`
	Log    logging.Config `json:"log" yaml:"log" toml:"log"`
	Layout LayoutConfig   `json:"layout" yaml:"layout" toml:"layout"`
	Views  ViewsConfig    `json:"views" yaml:"views" toml:"views"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Addr       string `json:"addr" yaml:"addr" toml:"addr" validate:"required"`
	MaxFPS     int    `json:"max_fps" yaml:"max_fps" toml:"max_fps" validate:"gte=1,lte=240"`
	Sample     bool   `json:"sample" yaml:"sample" toml:"sample"`
	Data       string `json:"data" yaml:"data" toml:"data"` // hierarchy file served as "default"
	Watch      bool   `json:"watch" yaml:"watch" toml:"watch"`
	DebounceMS int    `json:"debounce_ms" yaml:"debounce_ms" toml:"debounce_ms" validate:"gte=0,lte=60000"`
}

// LayoutConfig controls offline layout runs
type LayoutConfig struct {
	MaxIterations   int     `json:"max_iterations" yaml:"max_iterations" toml:"max_iterations" validate:"gte=1"`
	StableThreshold float64 `json:"stable_threshold" yaml:"stable_threshold" toml:"stable_threshold" validate:"gt=0"`
	Theme           string  `json:"theme" yaml:"theme" toml:"theme" validate:"omitempty,oneof=light dark"`
}

// ViewsConfig holds one configuration per view kind
type ViewsConfig struct {
	Compact  view.Config `json:"compact" yaml:"compact" toml:"compact"`
	Expanded view.Config `json:"expanded" yaml:"expanded" toml:"expanded"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			MaxFPS:     30,
			Sample:     true,
			DebounceMS: 250,
		},
		Log: logging.Config{
			Level:  "info",
			Format: logging.FormatText,
		},
		Layout: LayoutConfig{
			MaxIterations:   500,
			StableThreshold: 0.05,
			Theme:           "light",
		},
		Views: ViewsConfig{
			Compact:  view.Compact(),
			Expanded: view.Expanded(),
		},
	}
}

// Load reads the file at path over the defaults. The format follows the
// extension: .yaml, .yml or .toml. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}

	// the kind is fixed by the section, not the file
	cfg.Views.Compact.Kind = view.KindCompact
	cfg.Views.Expanded.Kind = view.KindExpanded

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// View returns the view configuration for a kind name. An empty name is
// the expanded view.
func (c *Config) View(kind string) (view.Config, error) {
	switch view.Kind(kind) {
	case view.KindCompact:
		return c.Views.Compact, nil
	case view.KindExpanded, "":
		return c.Views.Expanded, nil
	default:
		return view.Config{}, fmt.Errorf("%w: %s", ErrUnknownView, kind)
	}
}
