package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/paths"
)

var knownFormats = map[string]bool{"console": true, "json": true}

var knownJSTargets = map[string]bool{
	"es2015": true, "es2016": true, "es2017": true, "es2018": true, "es2019": true,
	"es2020": true, "es2021": true, "es2022": true, "esnext": true,
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	for _, p := range []struct{ field, value string }{
		{"source", config.Source},
		{"output", config.Output},
	} {
		if err := validatePath(p.value); err != nil {
			return fmt.Errorf("%s: %w", p.field, err)
		}
	}

	if filepath.Clean(config.Output) == "." {
		return fmt.Errorf("output: refusing to use the project root as output directory")
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}

	if !knownJSTargets[strings.ToLower(config.JS.Target)] {
		return fmt.Errorf("js.target %q is not a known ECMAScript version", config.JS.Target)
	}

	if !knownFormats[config.Log.Format] {
		return fmt.Errorf("log.format %q must be console or json", config.Log.Format)
	}

	if _, err := config.Table(); err != nil {
		return err
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// 0 lets the OS pick a port
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", "/"}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}

	if !strings.HasPrefix(config.SocketPath, "/") || config.SocketPath == "/" ||
		strings.ContainsAny(config.SocketPath, " ?#") || path.Clean(config.SocketPath) != config.SocketPath {
		return fmt.Errorf("socket path %q must be a clean absolute URL path", config.SocketPath)
	}

	return nil
}

// validatePath validates a project-relative directory
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	if filepath.IsAbs(path) {
		return fmt.Errorf("path %s should be relative", path)
	}

	cleanPath := filepath.ToSlash(filepath.Clean(path))
	for _, part := range strings.Split(cleanPath, "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}

	return nil
}

// KnownCategories lists the path table keys accepted under paths.
func KnownCategories() []paths.Category {
	return paths.Default(DefaultSource, DefaultOutput).Categories()
}
