// Package config loads readaloud's settings from environment variables and
// the YAML config file.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	gap "github.com/muesli/go-app-paths"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

// AppName names the config, cache and data directories.
const AppName = "readaloud"

// Gateways lists the supported synthesis services.
var Gateways = []string{"google", "openai"}

// Config contains all readaloud settings.
type Config struct {
	Gateway      string        `yaml:"gateway" env:"READALOUD_GATEWAY" envDefault:"google"`
	Voice        string        `yaml:"voice" env:"READALOUD_VOICE"`
	Rate         float64       `yaml:"rate" env:"READALOUD_RATE" envDefault:"1.0"`
	Pitch        float64       `yaml:"pitch" env:"READALOUD_PITCH" envDefault:"0"`
	MaxBytes     int           `yaml:"max_bytes" env:"READALOUD_MAX_BYTES" envDefault:"4500"`
	Workers      int           `yaml:"workers" env:"READALOUD_WORKERS" envDefault:"3"`
	PollInterval time.Duration `yaml:"poll_interval" env:"READALOUD_POLL_INTERVAL" envDefault:"100ms"`

	Google  GoogleConfig  `yaml:"google"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Audio   AudioConfig   `yaml:"audio"`
	Cache   CacheConfig   `yaml:"cache"`
	Session SessionConfig `yaml:"session"`
}

// GoogleConfig configures the Google Cloud Text-to-Speech gateway.
type GoogleConfig struct {
	APIKey            string        `yaml:"api_key" env:"READALOUD_GOOGLE_API_KEY"`
	BaseURL           string        `yaml:"base_url" env:"READALOUD_GOOGLE_BASE_URL"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"READALOUD_GOOGLE_RPM" envDefault:"300"`
	Timeout           time.Duration `yaml:"timeout" env:"READALOUD_GOOGLE_TIMEOUT"`
}

// OpenAIConfig configures the OpenAI speech gateway.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL string `yaml:"base_url" env:"READALOUD_OPENAI_BASE_URL"`
	Model   string `yaml:"model" env:"READALOUD_OPENAI_MODEL" envDefault:"tts-1"`
}

// AudioConfig configures the output device. Clips are always mono.
type AudioConfig struct {
	SampleRate int           `yaml:"sample_rate" env:"READALOUD_SAMPLE_RATE" envDefault:"24000"`
	BufferSize time.Duration `yaml:"buffer_size" env:"READALOUD_BUFFER_SIZE" envDefault:"100ms"`
	Volume     float64       `yaml:"volume" env:"READALOUD_VOLUME" envDefault:"1.0"`
}

// CacheConfig configures the synthesized audio cache.
type CacheConfig struct {
	Enabled          bool          `yaml:"enabled" env:"READALOUD_CACHE_ENABLED" envDefault:"true"`
	Dir              string        `yaml:"dir" env:"READALOUD_CACHE_DIR"`
	MemoryMB         int           `yaml:"memory_mb" env:"READALOUD_CACHE_MEMORY_MB" envDefault:"64"`
	DiskMB           int           `yaml:"disk_mb" env:"READALOUD_CACHE_DISK_MB" envDefault:"512"`
	CompressionLevel int           `yaml:"compression_level" env:"READALOUD_CACHE_COMPRESSION" envDefault:"3"`
	TTL              time.Duration `yaml:"ttl" env:"READALOUD_CACHE_TTL" envDefault:"720h"`
}

// SessionConfig configures where resume positions are kept.
type SessionConfig struct {
	File   string `yaml:"file" env:"READALOUD_SESSION_FILE"`
	Resume bool   `yaml:"resume" env:"READALOUD_RESUME" envDefault:"true"`
}

// Default returns the defaults, ignoring the environment.
func Default() Config {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return cfg
}

// FromEnv returns the defaults overridden by the environment.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return cfg, nil
}

// Params returns the voice parameters for synthesis.
func (c Config) Params() synth.Params {
	return synth.Params{
		Voice: synth.Voice{Name: c.Voice},
		Rate:  c.Rate,
		Pitch: c.Pitch,
	}
}

// ManagerConfig returns the cache manager settings.
func (c CacheConfig) ManagerConfig() cache.Config {
	cfg := cache.DefaultConfig(c.Dir)
	cfg.MemoryCapacity = int64(c.MemoryMB) << 20
	cfg.DiskCapacity = int64(c.DiskMB) << 20
	cfg.CompressionLevel = c.CompressionLevel
	cfg.TTL = c.TTL
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	c.Gateway = strings.ToLower(strings.TrimSpace(c.Gateway))
	valid := false
	for _, g := range Gateways {
		if c.Gateway == g {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid gateway %q: must be one of %v", c.Gateway, Gateways)
	}

	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Rate == 0 {
		return fmt.Errorf("rate must be between %.2f and %.2f, got 0", synth.MinRate, synth.MaxRate)
	}

	if c.MaxBytes < 1 || c.MaxBytes > 5000 {
		return fmt.Errorf("max_bytes must be between 1 and 5000, got %d", c.MaxBytes)
	}
	if c.Workers < 1 || c.Workers > 16 {
		return fmt.Errorf("workers must be between 1 and 16, got %d", c.Workers)
	}
	if c.PollInterval < time.Millisecond || c.PollInterval > 5*time.Second {
		return fmt.Errorf("poll_interval must be between 1ms and 5s, got %s", c.PollInterval)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	return nil
}

// Validate checks if the audio configuration is valid.
func (c *AudioConfig) Validate() error {
	switch c.SampleRate {
	case 8000, 16000, 22050, 24000, 44100, 48000:
	default:
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer_size must not be negative, got %s", c.BufferSize)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %.2f", c.Volume)
	}
	return nil
}

// Validate checks if the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MemoryMB < 1 || c.MemoryMB > 4096 {
		return fmt.Errorf("memory_mb must be between 1 and 4096, got %d", c.MemoryMB)
	}
	if c.DiskMB < 1 || c.DiskMB > 100000 {
		return fmt.Errorf("disk_mb must be between 1 and 100000, got %d", c.DiskMB)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 22 {
		return fmt.Errorf("compression_level must be between 0 and 22, got %d", c.CompressionLevel)
	}
	return nil
}

// defaultPaths fills in the cache directory and session file from the
// user's platform directories.
func (c *Config) defaultPaths(scope *gap.Scope) error {
	if c.Cache.Dir == "" {
		dir, err := scope.CacheDir()
		if err != nil {
			return fmt.Errorf("unable to find cache directory: %w", err)
		}
		c.Cache.Dir = filepath.Join(dir, "audio")
	}
	if c.Session.File == "" {
		path, err := scope.DataPath("positions.yml")
		if err != nil {
			return fmt.Errorf("unable to find data directory: %w", err)
		}
		c.Session.File = path
	}
	return nil
}
