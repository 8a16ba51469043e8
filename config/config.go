// Package config loads the sidecar's YAML configuration with defaults and
// light validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"nextedit/engine"
	"nextedit/types"
)

// Config is the full on-disk configuration. Durations are given in
// milliseconds in the file.
type Config struct {
	Provider  Provider  `yaml:"provider"`
	Engine    Engine    `yaml:"engine"`
	Gates     Gates     `yaml:"gates"`
	History   History   `yaml:"history"`
	Retrieval Retrieval `yaml:"retrieval"`
	Log       Log       `yaml:"log"`
}

// Provider selects and configures the suggestion backend.
type Provider struct {
	Type           string  `yaml:"type"` // hosted, inline, fim or zeta
	URL            string  `yaml:"url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"` // generation budget
	TopK           int     `yaml:"top_k"`
	CompletionPath string  `yaml:"completion_path"`
	PromptBudget   int     `yaml:"prompt_budget"` // prompt tokens before window trimming
	APIKey         string  `yaml:"api_key"`
	APIKeyEnv      string  `yaml:"api_key_env"`
}

type Engine struct {
	DebounceMs          int `yaml:"debounce_ms"`
	RequestTimeoutMs    int `yaml:"request_timeout_ms"`
	MaxQueuedCandidates int `yaml:"max_queued_candidates"`
}

type Gates struct {
	ExcludedPaths       []string `yaml:"excluded_paths"`
	MaxFileSizeKB       int      `yaml:"max_file_size_kb"`
	MaxFileLines        int      `yaml:"max_file_lines"`
	MaxAvgLineLength    int      `yaml:"max_avg_line_length"`
	BulkEditChanges     int      `yaml:"bulk_edit_changes"`
	BulkEditChars       int      `yaml:"bulk_edit_chars"`
	BulkEditLines       int      `yaml:"bulk_edit_lines"`
	BulkEditCooldownMs  int      `yaml:"bulk_edit_cooldown_ms"`
	SelectionCooldownMs int      `yaml:"selection_cooldown_ms"`
}

type History struct {
	MaxEntriesPerFile int `yaml:"max_entries_per_file"`
	MaxPatchChars     int `yaml:"max_patch_chars"`
	ContextLines      int `yaml:"context_lines"`
	MaxFiles          int `yaml:"max_files"`
}

type Retrieval struct {
	MaxSnippets     int `yaml:"max_snippets"`
	MaxSnippetLines int `yaml:"max_snippet_lines"`
}

type Log struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Provider: Provider{
			Type:         string(types.ProviderTypeHosted),
			URL:          "https://api.nextedit.dev",
			Temperature:  0.1,
			MaxTokens:    512,
			PromptBudget: 4000,
			APIKeyEnv:    "NEXTEDIT_API_TOKEN",
		},
		Engine: Engine{
			DebounceMs:          150,
			RequestTimeoutMs:    15000,
			MaxQueuedCandidates: 8,
		},
		Gates: Gates{
			ExcludedPaths:       []string{".env", "*.lock", "*.min.js"},
			MaxFileSizeKB:       1024,
			MaxFileLines:        20000,
			MaxAvgLineLength:    1000,
			BulkEditChanges:     8,
			BulkEditChars:       4096,
			BulkEditLines:       50,
			BulkEditCooldownMs:  1500,
			SelectionCooldownMs: 400,
		},
		History: History{
			MaxEntriesPerFile: 10,
			MaxPatchChars:     1200,
			ContextLines:      2,
			MaxFiles:          8,
		},
		Retrieval: Retrieval{
			MaxSnippets:     4,
			MaxSnippetLines: 30,
		},
		Log: Log{
			Path:  defaultLogPath(),
			Level: "info",
		},
	}
}

// Load reads the file at path, or the default location when path is empty.
// A missing file at the default location yields the defaults; an explicit
// path must exist. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if path == "" {
		path = defaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch types.ProviderType(c.Provider.Type) {
	case types.ProviderTypeHosted, types.ProviderTypeInline, types.ProviderTypeFim, types.ProviderTypeZeta:
	default:
		return fmt.Errorf("unknown provider type %q", c.Provider.Type)
	}
	if c.Provider.URL == "" {
		return errors.New("provider url must be set")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range", c.Provider.Temperature)
	}
	if c.Engine.DebounceMs < 0 || c.Engine.RequestTimeoutMs < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// EngineConfig maps the file values onto the engine's configuration.
func (c Config) EngineConfig(workspacePath string) engine.EngineConfig {
	return engine.EngineConfig{
		TextChangeDebounce:  time.Duration(c.Engine.DebounceMs) * time.Millisecond,
		CompletionTimeout:   time.Duration(c.Engine.RequestTimeoutMs) * time.Millisecond,
		MaxQueuedCandidates: c.Engine.MaxQueuedCandidates,
		WorkspacePath:       workspacePath,
		Gates: engine.GateConfig{
			ExcludedPaths:     c.Gates.ExcludedPaths,
			MaxFileSizeBytes:  c.Gates.MaxFileSizeKB * 1024,
			MaxFileLines:      c.Gates.MaxFileLines,
			MaxAvgLineLength:  c.Gates.MaxAvgLineLength,
			BulkEditChanges:   c.Gates.BulkEditChanges,
			BulkEditChars:     c.Gates.BulkEditChars,
			BulkEditLines:     c.Gates.BulkEditLines,
			BulkEditCooldown:  time.Duration(c.Gates.BulkEditCooldownMs) * time.Millisecond,
			SelectionCooldown: time.Duration(c.Gates.SelectionCooldownMs) * time.Millisecond,
		},
		History: engine.HistoryConfig{
			MaxEntriesPerFile: c.History.MaxEntriesPerFile,
			MaxPatchChars:     c.History.MaxPatchChars,
			ContextLines:      c.History.ContextLines,
			MaxFiles:          c.History.MaxFiles,
		},
		Retrieval: engine.RetrievalConfig{
			MaxSnippetLines: c.Retrieval.MaxSnippetLines,
			MaxSnippets:     c.Retrieval.MaxSnippets,
		},
	}
}

// ProviderConfig maps the provider section onto the shared provider
// configuration.
func (c Config) ProviderConfig() *types.ProviderConfig {
	return &types.ProviderConfig{
		MaxTokens:           c.Provider.PromptBudget,
		ProviderURL:         c.Provider.URL,
		ProviderModel:       c.Provider.Model,
		ProviderTemperature: c.Provider.Temperature,
		ProviderMaxTokens:   c.Provider.MaxTokens,
		ProviderTopK:        c.Provider.TopK,
		CompletionPath:      c.Provider.CompletionPath,
		APIKey:              c.Provider.APIKey,
		APIKeyEnv:           c.Provider.APIKeyEnv,
	}
}

func defaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nextedit", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "nextedit", "config.yaml")
}

func defaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nextedit", "nextedit.log")
}
