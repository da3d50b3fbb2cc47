// Package config loads the standalone server's YAML configuration and any
// mock-definition files it references.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mockitohq/mockito/pkg/mock"
	"github.com/mockitohq/mockito/pkg/server"
)

// LogConfig selects the operational log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the standalone server configuration.
type Config struct {
	// Listen is the address to serve on.
	Listen string `yaml:"listen"`

	// Log configures the operational logger.
	Log LogConfig `yaml:"log"`

	// MockFiles are paths to JSON files, each holding an array of mock
	// records in the wire schema, preloaded into the registry at startup.
	MockFiles []string `yaml:"mock_files"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen: server.DefaultAddr,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML configuration file. Fields left empty fall back to the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = server.DefaultAddr
	}
	return cfg, nil
}

// LoadMocks reads every configured mock file and returns the definitions in
// file order. A decode failure names the offending file.
func LoadMocks(paths []string) ([]*mock.Mock, error) {
	var mocks []*mock.Mock
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mock file: %w", err)
		}
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse mock file %s: %w", path, err)
		}
		// Preloaded definitions go through the same strict decode as the
		// wire protocol, so a sparse record is rejected here too.
		for _, record := range records {
			m, err := mock.Decode(record)
			if err != nil {
				return nil, fmt.Errorf("parse mock file %s: %w", path, err)
			}
			mocks = append(mocks, m)
		}
	}
	return mocks, nil
}
