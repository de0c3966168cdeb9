package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// serverConfig is the optional daemon configuration file. CLI flags and
// environment variables override it.
type serverConfig struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Path       string `yaml:"path"`
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
}

func defaultServerConfig() serverConfig {
	var cfg serverConfig
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 3000
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.Log.MaxSizeMB = 10
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 30
	return cfg
}

// loadServerConfig reads the yaml file when present; a missing file is not
// an error, a malformed one is.
func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	return cfg, nil
}
