// Package config loads service configuration from an optional YAML file with
// DOCCHAT_* environment variable overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/jcarver/docchat/internal/domain"
)

// Config holds all service settings.
type Config struct {
	Port            int    `koanf:"port" yaml:"port"`
	MediaRoot       string `koanf:"media_root" yaml:"media_root"`
	QdrantHost      string `koanf:"qdrant_host" yaml:"qdrant_host"`
	QdrantPort      int    `koanf:"qdrant_port" yaml:"qdrant_port"`
	OpenAIAPIKey    string `koanf:"openai_api_key" yaml:"openai_api_key,omitempty"`
	ChatModel       string `koanf:"chat_model" yaml:"chat_model"`
	MaxChunkSize    int    `koanf:"max_chunk_size" yaml:"max_chunk_size"`
	ChunkOverlap    int    `koanf:"chunk_overlap" yaml:"chunk_overlap"`
	TopK            int    `koanf:"top_k" yaml:"top_k"`
	AllowAllOrigins bool   `koanf:"allow_all_origins" yaml:"allow_all_origins"`
}

// Default returns the standard configuration.
func Default() *Config {
	return &Config{
		Port:         8080,
		MediaRoot:    "media",
		QdrantHost:   "localhost",
		QdrantPort:   6334,
		ChatModel:    "gpt-4o",
		MaxChunkSize: 1000,
		ChunkOverlap: 200,
		TopK:         4,
	}
}

// Load reads configuration from the given YAML file (if it exists), then
// overlays environment variable overrides (DOCCHAT_PORT, DOCCHAT_QDRANT_HOST,
// and so on).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	// Overlay environment variables: DOCCHAT_QDRANT_HOST -> qdrant_host, etc.
	if err := k.Load(env.Provider("DOCCHAT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "DOCCHAT_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains workable values. Invalid
// chunking parameters are a configuration error: they would make the splitter
// loop without progress.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MediaRoot == "" {
		return fmt.Errorf("media_root is required")
	}
	if c.QdrantHost == "" {
		return fmt.Errorf("qdrant_host is required")
	}
	if c.QdrantPort <= 0 {
		return fmt.Errorf("qdrant_port must be positive")
	}
	if c.MaxChunkSize <= 0 {
		return domain.Errorf(domain.KindConfiguration, "config",
			"max_chunk_size must be positive, got %d", c.MaxChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return domain.Errorf(domain.KindConfiguration, "config",
			"chunk_overlap %d must be in [0, max_chunk_size)", c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	return nil
}
