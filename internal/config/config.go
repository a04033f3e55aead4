package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"arkoon-rule-exporter/internal/store"
)

// Config carries the settings that can come from a YAML file or from flags.
type Config struct {
	OutDir       string `yaml:"out_dir"`
	LogLevel     string `yaml:"log_level"`
	LogFile      string `yaml:"log_file"`
	ExpandGroups bool   `yaml:"expand_groups"`
	DB           string `yaml:"db"`
	DBTable      string `yaml:"db_table"`
	NoColor      bool   `yaml:"no_color"`
}

func Default() Config {
	return Config{
		OutDir:   ".",
		LogLevel: "INFO",
		DBTable:  store.DefaultTable,
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}
