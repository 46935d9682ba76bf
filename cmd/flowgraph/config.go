package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	json "github.com/goccy/go-json"
)

// Config holds all flowgraph configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	LogLevel      string   `json:"log_level"`
	CategoryOrder []string `json:"category_order"`
	Direction     string   `json:"direction"`
	Density       string   `json:"density"`
	PollInterval  string   `json:"poll_interval"`
	MetricsAddr   string   `json:"metrics_addr"`
	PanelAddr     string   `json:"panel_addr"`
	BuiltinsPath  string   `json:"builtins_path"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:     "info",
		Direction:    "TB",
		Density:      "complicated",
		PollInterval: "@every 2s",
	}
}

func flowgraphDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowgraph"
	}
	return filepath.Join(home, ".flowgraph")
}

func settingsPath() string {
	return filepath.Join(flowgraphDir(), "settings.json")
}

func loadConfig() (Config, error) {
	return loadConfigFrom(settingsPath(), os.Getenv)
}

// loadConfigFrom layers settings at path and the env lookup over the
// defaults. A missing settings file is not an error.
func loadConfigFrom(path string, getenv func(string) string) (Config, error) {
	var cfg Config

	// Layer 2: settings.json.
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	// Layer 3: env vars override.
	if v := getenv("FLOWGRAPH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("FLOWGRAPH_CATEGORY_ORDER"); v != "" {
		cfg.CategoryOrder = splitList(v)
	}
	if v := getenv("FLOWGRAPH_DIRECTION"); v != "" {
		cfg.Direction = v
	}
	if v := getenv("FLOWGRAPH_DENSITY"); v != "" {
		cfg.Density = v
	}
	if v := getenv("FLOWGRAPH_POLL_INTERVAL"); v != "" {
		cfg.PollInterval = v
	}
	if v := getenv("FLOWGRAPH_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := getenv("FLOWGRAPH_PANEL_ADDR"); v != "" {
		cfg.PanelAddr = v
	}
	if v := getenv("FLOWGRAPH_BUILTINS_PATH"); v != "" {
		cfg.BuiltinsPath = v
	}

	// Layer 1: defaults fill whatever is still unset.
	if err := mergo.Merge(&cfg, defaultConfig()); err != nil {
		return Config{}, fmt.Errorf("merge config defaults: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
