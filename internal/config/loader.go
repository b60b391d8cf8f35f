package config

import (
	"fmt"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// Load builds the configuration. Defaults come from the struct tags, the
// config file read into v overrides them, and environment variables win
// over the file. Paths are expanded and missing directories default to
// the user's platform cache and data locations.
func Load(v *viper.Viper) (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return cfg, err
	}

	if v != nil {
		applyFile(v, &cfg)
	}

	if err := cfg.resolvePaths(gap.NewScope(gap.User, AppName)); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFile(v *viper.Viper, cfg *Config) {
	setString(v, "gateway", "READALOUD_GATEWAY", &cfg.Gateway)
	setString(v, "voice", "READALOUD_VOICE", &cfg.Voice)
	setFloat(v, "rate", "READALOUD_RATE", &cfg.Rate)
	setFloat(v, "pitch", "READALOUD_PITCH", &cfg.Pitch)
	setInt(v, "max_bytes", "READALOUD_MAX_BYTES", &cfg.MaxBytes)
	setInt(v, "workers", "READALOUD_WORKERS", &cfg.Workers)
	setDuration(v, "poll_interval", "READALOUD_POLL_INTERVAL", &cfg.PollInterval)

	// Google settings
	setString(v, "google.api_key", "READALOUD_GOOGLE_API_KEY", &cfg.Google.APIKey)
	setString(v, "google.base_url", "READALOUD_GOOGLE_BASE_URL", &cfg.Google.BaseURL)
	setInt(v, "google.requests_per_minute", "READALOUD_GOOGLE_RPM", &cfg.Google.RequestsPerMinute)
	setDuration(v, "google.timeout", "READALOUD_GOOGLE_TIMEOUT", &cfg.Google.Timeout)

	// OpenAI settings
	setString(v, "openai.api_key", "OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	setString(v, "openai.base_url", "READALOUD_OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	setString(v, "openai.model", "READALOUD_OPENAI_MODEL", &cfg.OpenAI.Model)

	// Audio settings
	setInt(v, "audio.sample_rate", "READALOUD_SAMPLE_RATE", &cfg.Audio.SampleRate)
	setDuration(v, "audio.buffer_size", "READALOUD_BUFFER_SIZE", &cfg.Audio.BufferSize)
	setFloat(v, "audio.volume", "READALOUD_VOLUME", &cfg.Audio.Volume)

	// Cache settings
	setBool(v, "cache.enabled", "READALOUD_CACHE_ENABLED", &cfg.Cache.Enabled)
	setString(v, "cache.dir", "READALOUD_CACHE_DIR", &cfg.Cache.Dir)
	setInt(v, "cache.memory_mb", "READALOUD_CACHE_MEMORY_MB", &cfg.Cache.MemoryMB)
	setInt(v, "cache.disk_mb", "READALOUD_CACHE_DISK_MB", &cfg.Cache.DiskMB)
	setInt(v, "cache.compression_level", "READALOUD_CACHE_COMPRESSION", &cfg.Cache.CompressionLevel)
	setDuration(v, "cache.ttl", "READALOUD_CACHE_TTL", &cfg.Cache.TTL)

	// Session settings
	setString(v, "session.file", "READALOUD_SESSION_FILE", &cfg.Session.File)
	setBool(v, "session.resume", "READALOUD_RESUME", &cfg.Session.Resume)
}

// fromFile reports whether key should be taken from the file: it is set
// there and the environment does not override it.
func fromFile(v *viper.Viper, key, envName string) bool {
	if _, ok := os.LookupEnv(envName); ok {
		return false
	}
	return v.IsSet(key)
}

func setString(v *viper.Viper, key, envName string, dst *string) {
	if fromFile(v, key, envName) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key, envName string, dst *int) {
	if fromFile(v, key, envName) {
		*dst = v.GetInt(key)
	}
}

func setFloat(v *viper.Viper, key, envName string, dst *float64) {
	if fromFile(v, key, envName) {
		*dst = v.GetFloat64(key)
	}
}

func setBool(v *viper.Viper, key, envName string, dst *bool) {
	if fromFile(v, key, envName) {
		*dst = v.GetBool(key)
	}
}

func setDuration(v *viper.Viper, key, envName string, dst *time.Duration) {
	if fromFile(v, key, envName) {
		*dst = v.GetDuration(key)
	}
}

func (c *Config) resolvePaths(scope *gap.Scope) error {
	var err error
	if c.Cache.Dir, err = expand(c.Cache.Dir); err != nil {
		return err
	}
	if c.Session.File, err = expand(c.Session.File); err != nil {
		return err
	}
	return c.defaultPaths(scope)
}

func expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("unable to expand %q: %w", path, err)
	}
	return os.ExpandEnv(p), nil
}
