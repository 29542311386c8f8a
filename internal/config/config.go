// Package config provides configuration management for sitepipe using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// Every field has a default, so a project with the stock layout needs no
// configuration file at all. Values from a .sitepipe.yml file and
// SITEPIPE_-prefixed environment variables override the defaults, and
// validation rejects paths that escape the project directory.
package config

import (
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/paths"
)

type Config struct {
	Source string                `mapstructure:"source" yaml:"source"`
	Output string                `mapstructure:"output" yaml:"output"`
	Paths  map[string]PathConfig `mapstructure:"paths" yaml:"paths,omitempty"`
	Server ServerConfig          `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig           `mapstructure:"watch" yaml:"watch"`
	CSS    CSSConfig             `mapstructure:"css" yaml:"css"`
	JS     JSConfig              `mapstructure:"js" yaml:"js"`
	Build  BuildConfig           `mapstructure:"build" yaml:"build"`
	Log    LogConfig             `mapstructure:"log" yaml:"log"`
}

// PathConfig overrides one entry of the path table.
type PathConfig struct {
	Src  string `mapstructure:"src" yaml:"src,omitempty"`
	Dest string `mapstructure:"dest" yaml:"dest,omitempty"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// SocketPath is the URL path browsers open the live-reload socket on.
	SocketPath string `mapstructure:"socket_path" yaml:"socket_path"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	// CSS lists the globs that re-run the css task. Partials imported by the
	// entry stylesheet live next to it, so this is wider than the css source.
	CSS []string `mapstructure:"css" yaml:"css"`
}

type CSSConfig struct {
	Safelist  []string `mapstructure:"safelist" yaml:"safelist"`
	Variables bool     `mapstructure:"variables" yaml:"variables"`
	Targets   []string `mapstructure:"targets" yaml:"targets"`
}

type JSConfig struct {
	Transpile bool   `mapstructure:"transpile" yaml:"transpile"`
	Target    string `mapstructure:"target" yaml:"target"`
}

type BuildConfig struct {
	Minify      bool `mapstructure:"minify" yaml:"minify"`
	Concurrency int  `mapstructure:"concurrency" yaml:"concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

const (
	DefaultSource      = "src"
	DefaultOutput      = "public"
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 3000
	DefaultSocketPath  = "/__livereload"
	DefaultDebounce    = 200 * time.Millisecond
	DefaultConcurrency = 8
	DefaultJSTarget    = "es2017"
)

// DefaultSafelist keeps selectors that scripts add at runtime.
var DefaultSafelist = []string{"carousel-dot"}

// DefaultTargets are the browsers the CSS transform lowers syntax for.
var DefaultTargets = []string{"chrome90", "edge90", "firefox88", "safari14"}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, nil)
	return cfg
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and applies defaults for every
// value that was not set.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// viper leaves slices empty when they come from env vars
	if v.IsSet("css.safelist") && len(config.CSS.Safelist) == 0 {
		config.CSS.Safelist = v.GetStringSlice("css.safelist")
	}
	if v.IsSet("css.targets") && len(config.CSS.Targets) == 0 {
		config.CSS.Targets = v.GetStringSlice("css.targets")
	}
	if v.IsSet("watch.css") && len(config.Watch.CSS) == 0 {
		config.Watch.CSS = v.GetStringSlice("watch.css")
	}

	applyDefaults(&config, v)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config, v *viper.Viper) {
	isSet := func(key string) bool { return v != nil && v.IsSet(key) }

	if config.Source == "" {
		config.Source = DefaultSource
	}
	if config.Output == "" {
		config.Output = DefaultOutput
	}
	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if !isSet("server.port") {
		config.Server.Port = DefaultPort
	}
	if config.Server.SocketPath == "" {
		config.Server.SocketPath = DefaultSocketPath
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}
	if len(config.Watch.CSS) == 0 {
		config.Watch.CSS = []string{path.Join(filepath.ToSlash(config.Source), "css/**/*.css")}
	}
	if !isSet("css.safelist") {
		config.CSS.Safelist = append([]string(nil), DefaultSafelist...)
	}
	if !isSet("css.variables") {
		config.CSS.Variables = true
	}
	if len(config.CSS.Targets) == 0 {
		config.CSS.Targets = append([]string(nil), DefaultTargets...)
	}
	if config.JS.Target == "" {
		config.JS.Target = DefaultJSTarget
	}
	if config.Build.Concurrency <= 0 {
		config.Build.Concurrency = DefaultConcurrency
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
}

// EnvKeys are the settings that can be overridden from SITEPIPE_ variables.
var EnvKeys = []string{
	"source", "output",
	"server.host", "server.port", "server.socket_path",
	"watch.debounce", "watch.css",
	"css.safelist", "css.variables", "css.targets",
	"js.transpile", "js.target",
	"build.minify", "build.concurrency",
	"log.level", "log.format",
}

// BindEnv makes every EnvKeys entry known to v so an environment override
// reaches Unmarshal even when no file sets the key.
func BindEnv(v *viper.Viper) error {
	for _, key := range EnvKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

// Table builds the path table: the stock layout under Source and Output
// with any per-category overrides applied.
func (c *Config) Table() (paths.Table, error) {
	table := paths.Default(c.Source, c.Output)

	for name, override := range c.Paths {
		category := paths.Category(name)
		entry, err := table.Resolve(category)
		if err != nil {
			return paths.Table{}, fmt.Errorf("paths.%s: %w", name, err)
		}
		if override.Src != "" {
			entry.Source = override.Src
		}
		if override.Dest != "" {
			entry.Dest = override.Dest
		}
		if table, err = table.With(category, entry); err != nil {
			return paths.Table{}, fmt.Errorf("paths.%s: %w", name, err)
		}
	}

	return table, nil
}

// Addr is the dev server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
