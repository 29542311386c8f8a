package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".sitepipe.yml"

// WriteFile writes cfg as YAML. It refuses to replace an existing file
// unless force is set.
func WriteFile(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	header := []byte("# sitepipe configuration. Every key is optional.\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
