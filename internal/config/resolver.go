// Package config resolves runtime settings from a YAML config file,
// environment variables, and CLI flags. Precedence is CLI > env > config
// file > built-in default, and every resolved value remembers where it came
// from so `discredit config` can explain itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
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

// ResolvedValue is a setting plus its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI flag values that participate in resolution.
type ResolveOptions struct {
	ConfigPath    string
	CLIDBPath     string
	CLIEmbedModel string
}

// ResolvedConfig is the full resolved runtime configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath       ResolvedValue `json:"db_path"`
	EmbedModel   ResolvedValue `json:"embed_model"`
	OpenAIAPIKey ResolvedValue `json:"openai_api_key"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	Embed  struct {
		Model  string `yaml:"model"`
		APIKey string `yaml:"api_key"`
	} `yaml:"embed"`
}

// DefaultConfigPath is ~/.discredit/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".discredit", "config.yaml")
}

// ResolveConfig loads the config file (if present), a local .env file (if
// present), then layers environment variables and CLI flags on top.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	// .env values become plain environment variables; existing env wins.
	_ = godotenv.Load()

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
		apply(&out.EmbedModel, cfg.Embed.Model, SourceConfig, path)
		apply(&out.OpenAIAPIKey, cfg.Embed.APIKey, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "DISCREDIT_DB")
	applyEnv(&out.DBPath, "DISCREDIT_DB_PATH")
	applyEnv(&out.EmbedModel, "DISCREDIT_EMBED_MODEL")
	applyEnv(&out.OpenAIAPIKey, "OPENAI_API_KEY")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.EmbedModel, opts.CLIEmbedModel, SourceCLI, "--model")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// EffectiveDBPath returns the resolved database path or the given fallback.
func (r ResolvedConfig) EffectiveDBPath(fallback string) ResolvedValue {
	if strings.TrimSpace(r.DBPath.Value) != "" {
		return r.DBPath
	}
	return ResolvedValue{Value: expandUserPath(fallback), Source: SourceDefault, From: "built-in default"}
}

// EffectiveEmbedModel returns the resolved embedding model or the fallback.
func (r ResolvedConfig) EffectiveEmbedModel(fallback string) ResolvedValue {
	if strings.TrimSpace(r.EmbedModel.Value) != "" {
		return r.EmbedModel
	}
	return ResolvedValue{Value: fallback, Source: SourceDefault, From: "built-in default"}
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
