package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestResolveFromFile(t *testing.T) {
	path := writeConfig(t, `
db_path: /data/discredit.db
embed:
  model: text-embedding-3-large
  api_key: sk-from-file
`)

	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.DBPath.Value != "/data/discredit.db" || cfg.DBPath.Source != SourceConfig {
		t.Fatalf("db path: %+v", cfg.DBPath)
	}
	if cfg.EmbedModel.Value != "text-embedding-3-large" {
		t.Fatalf("embed model: %+v", cfg.EmbedModel)
	}
	if cfg.OpenAIAPIKey.Value != "sk-from-file" || cfg.OpenAIAPIKey.From != path {
		t.Fatalf("api key: %+v", cfg.OpenAIAPIKey)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "db_path: /from/file.db\n")
	t.Setenv("DISCREDIT_DB", "/from/env.db")

	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.DBPath.Value != "/from/env.db" || cfg.DBPath.Source != SourceEnv {
		t.Fatalf("env should win over file: %+v", cfg.DBPath)
	}
	if cfg.DBPath.From != "DISCREDIT_DB" {
		t.Fatalf("provenance wrong: %+v", cfg.DBPath)
	}
}

func TestCLIOverridesEverything(t *testing.T) {
	path := writeConfig(t, "db_path: /from/file.db\n")
	t.Setenv("DISCREDIT_DB", "/from/env.db")

	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path, CLIDBPath: "/from/cli.db"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.DBPath.Value != "/from/cli.db" || cfg.DBPath.Source != SourceCLI {
		t.Fatalf("cli should win: %+v", cfg.DBPath)
	}
}

func TestMissingFileIsNotAnError(t *testing.T) {
	t.Setenv("DISCREDIT_DB", "")
	t.Setenv("DISCREDIT_DB_PATH", "")
	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	if err != nil {
		t.Fatalf("missing config file must not error: %v", err)
	}
	if cfg.DBPath.Value != "" {
		t.Fatalf("expected unset db path, got %+v", cfg.DBPath)
	}
}

func TestMalformedFileErrors(t *testing.T) {
	path := writeConfig(t, "db_path: [not: valid\n")
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: path}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaults(t *testing.T) {
	t.Setenv("DISCREDIT_DB", "")
	t.Setenv("DISCREDIT_DB_PATH", "")
	t.Setenv("DISCREDIT_EMBED_MODEL", "")
	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	db := cfg.EffectiveDBPath("~/.discredit/discredit.db")
	if db.Source != SourceDefault {
		t.Fatalf("expected default provenance, got %+v", db)
	}
	if db.Value == "~/.discredit/discredit.db" {
		t.Fatalf("tilde not expanded: %q", db.Value)
	}

	model := cfg.EffectiveEmbedModel("text-embedding-3-small")
	if model.Value != "text-embedding-3-small" || model.Source != SourceDefault {
		t.Fatalf("expected built-in model default, got %+v", model)
	}
}

func TestUserPathExpansion(t *testing.T) {
	path := writeConfig(t, "db_path: ~/data/discredit.db\n")

	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	home, _ := os.UserHomeDir()
	if cfg.DBPath.Value != filepath.Join(home, "data", "discredit.db") {
		t.Fatalf("tilde not expanded: %q", cfg.DBPath.Value)
	}
}
