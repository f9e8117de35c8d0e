// Package config provides the configuration structure for tts-web.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied when the corresponding TOML keys are absent.
const (
	DefaultPort           = 3000
	DefaultTimeoutSeconds = 120
	DefaultMaxChunkSize   = 4000
	DefaultAudioDir       = "generated_audio"
	DefaultStaticDir      = "web"
	DefaultTempDir        = "/tmp"
	DefaultFfmpegPath     = "ffmpeg"
	DefaultFfprobePath    = "ffprobe"
)

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port      int    `toml:"port"`
	AudioDir  string `toml:"audio_dir"`
	StaticDir string `toml:"static_dir"`
}

// ProviderConfig holds the speech provider configuration.
type ProviderConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ChunkerConfig holds the text chunking configuration.
type ChunkerConfig struct {
	MaxChunkSize int `toml:"max_chunk_size"`
}

// CombinerConfig holds the audio assembly configuration.
type CombinerConfig struct {
	TempDir     string `toml:"temp_dir"`
	FfmpegPath  string `toml:"ffmpeg_path"`
	FfprobePath string `toml:"ffprobe_path"`
}

// NATSConfig holds the optional NATS configuration. When URL is empty the
// service runs with local file storage and no completion events.
type NATSConfig struct {
	URL                      string `toml:"url"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`
	Chunker  ChunkerConfig  `toml:"chunker"`
	Combiner CombinerConfig `toml:"combiner"`
	NATS     NATSConfig     `toml:"nats"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration for tts-web and fills in defaults for any
// unset values.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Server.AudioDir == "" {
		c.Server.AudioDir = DefaultAudioDir
	}

	if c.Server.StaticDir == "" {
		c.Server.StaticDir = DefaultStaticDir
	}

	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.Chunker.MaxChunkSize == 0 {
		c.Chunker.MaxChunkSize = DefaultMaxChunkSize
	}

	if c.Combiner.TempDir == "" {
		c.Combiner.TempDir = DefaultTempDir
	}

	if c.Combiner.FfmpegPath == "" {
		c.Combiner.FfmpegPath = DefaultFfmpegPath
	}

	if c.Combiner.FfprobePath == "" {
		c.Combiner.FfprobePath = DefaultFfprobePath
	}
}
