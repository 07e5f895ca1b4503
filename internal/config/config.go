// Package config provides configuration loading and structs for the ragserve server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Chat      ChatConfig      `yaml:"chat"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the index, catalogs, sessions, and registry.
type StorageConfig struct {
	IndexPath           string `yaml:"index_path"`
	ChunkCatalogPath    string `yaml:"chunk_catalog_path"`
	DocumentCatalogPath string `yaml:"document_catalog_path"`
	SessionsPath        string `yaml:"sessions_path"`
	RegistryPath        string `yaml:"registry_path"`
}

// EmbeddingConfig holds embedding provider settings. BaseURL points at any
// OpenAI-compatible endpoint; APIKeyEnv names the environment variable holding
// the key so the key itself never lives in the config file.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig holds answer generation settings.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// ChatConfig holds retrieval and history settings for the chat flow.
type ChatConfig struct {
	TopK        int   `yaml:"top_k"`
	MemoryLimit int   `yaml:"memory_limit"`
	TopicGate   *bool `yaml:"topic_gate"`
}

// TopicGateEnabled reports whether off-topic questions are refused; defaults
// to true when unset.
func (c *ChatConfig) TopicGateEnabled() bool {
	if c.TopicGate != nil {
		return *c.TopicGate
	}
	return true
}

// IngestConfig holds chunking settings.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// WatchConfig holds corpus directory watch settings.
type WatchConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, applies defaults, and
// expands storage paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.ChunkCatalogPath = expandPath(cfg.Storage.ChunkCatalogPath, configDir)
	cfg.Storage.DocumentCatalogPath = expandPath(cfg.Storage.DocumentCatalogPath, configDir)
	cfg.Storage.SessionsPath = expandPath(cfg.Storage.SessionsPath, configDir)
	cfg.Storage.RegistryPath = expandPath(cfg.Storage.RegistryPath, configDir)
	if cfg.Watch.Directory != "" {
		cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	}

	return &cfg, nil
}

// Default returns a config with all defaults applied and storage paths
// resolved relative to baseDir. Used when no config file is present.
func Default(baseDir string) *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, baseDir)
	cfg.Storage.ChunkCatalogPath = expandPath(cfg.Storage.ChunkCatalogPath, baseDir)
	cfg.Storage.DocumentCatalogPath = expandPath(cfg.Storage.DocumentCatalogPath, baseDir)
	cfg.Storage.SessionsPath = expandPath(cfg.Storage.SessionsPath, baseDir)
	cfg.Storage.RegistryPath = expandPath(cfg.Storage.RegistryPath, baseDir)
	return &cfg
}

// expandPath converts a path to absolute relative to baseDir.
func expandPath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(baseDir, path)
}
