// Package config resolves runtime settings from the config file,
// environment, and CLI flags, recording where each value came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue carries a setting together with its provenance, so
// `notisum stats` can show operators which layer won.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath  string
	CLIDBPath   string
	CLIProvider string
	CLIEndpoint string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath        ResolvedValue `json:"db_path"`
	RetentionDays ResolvedValue `json:"retention_days"`
	DedupWindow   ResolvedValue `json:"dedup_window"`
	MetricsAddr   ResolvedValue `json:"metrics_addr"`

	Provider     ResolvedValue `json:"provider"`
	Endpoint     ResolvedValue `json:"endpoint"`
	TokenURL     ResolvedValue `json:"token_url"`
	ClientID     ResolvedValue `json:"client_id"`
	ClientSecret ResolvedValue `json:"client_secret"`
}

type fileConfig struct {
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
	DedupWindow   string `yaml:"dedup_window"`
	MetricsAddr   string `yaml:"metrics_addr"`
	Inference     struct {
		Provider     string `yaml:"provider"`
		Endpoint     string `yaml:"endpoint"`
		TokenURL     string `yaml:"token_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"inference"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".notisum", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		if cfg.RetentionDays > 0 {
			apply(&out.RetentionDays, strconv.Itoa(cfg.RetentionDays), SourceConfig, path)
		}
		apply(&out.DedupWindow, cfg.DedupWindow, SourceConfig, path)
		apply(&out.MetricsAddr, cfg.MetricsAddr, SourceConfig, path)
		apply(&out.Provider, cfg.Inference.Provider, SourceConfig, path)
		apply(&out.Endpoint, cfg.Inference.Endpoint, SourceConfig, path)
		apply(&out.TokenURL, cfg.Inference.TokenURL, SourceConfig, path)
		apply(&out.ClientID, cfg.Inference.ClientID, SourceConfig, path)
		apply(&out.ClientSecret, cfg.Inference.ClientSecret, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "NOTISUM_DB")
	applyEnv(&out.DBPath, "NOTISUM_DB_PATH")
	applyEnv(&out.RetentionDays, "NOTISUM_RETENTION_DAYS")
	applyEnv(&out.DedupWindow, "NOTISUM_DEDUP_WINDOW")
	applyEnv(&out.MetricsAddr, "NOTISUM_METRICS_ADDR")
	applyEnv(&out.Provider, "NOTISUM_PROVIDER")
	applyEnv(&out.Endpoint, "NOTISUM_ENDPOINT")
	applyEnv(&out.TokenURL, "NOTISUM_TOKEN_URL")
	applyEnv(&out.ClientID, "NOTISUM_CLIENT_ID")
	applyEnv(&out.ClientSecret, "NOTISUM_CLIENT_SECRET")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Provider, opts.CLIProvider, SourceCLI, "--provider")
	apply(&out.Endpoint, opts.CLIEndpoint, SourceCLI, "--endpoint")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// EffectiveRetentionDays returns the retention window in days, with a
// built-in 7 day default.
func (r ResolvedConfig) EffectiveRetentionDays() int {
	if v := strings.TrimSpace(r.RetentionDays.Value); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 7
}

// EffectiveDedupWindow returns the duplicate-text suppression window,
// defaulting to 60 seconds.
func (r ResolvedConfig) EffectiveDedupWindow() time.Duration {
	if v := strings.TrimSpace(r.DedupWindow.Value); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 60 * time.Second
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
