package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# Synthesis service: google or openai
gateway: "google"
# Voice name or fuzzy query; empty uses the service default
voice: ""
# Speaking rate (0.25 to 4.0)
rate: 1.0
# Pitch in semitones (-20 to 20, google only)
pitch: 0
# Largest chunk sent in one request, in bytes
max_bytes: 4500
# Chunks synthesized in parallel ahead of playback
workers: 3
# How often playback rechecks a chunk that is not ready yet
poll_interval: "100ms"

google:
  # api_key: "your-api-key-here"
  requests_per_minute: 300
  # Per-request timeout; unset means requests run until cancelled
  # timeout: "30s"

openai:
  # api_key: "sk-..."
  model: "tts-1"

audio:
  sample_rate: 24000
  buffer_size: "100ms"
  volume: 1.0

cache:
  enabled: true
  # dir: "~/.cache/readaloud/audio"
  memory_mb: 64
  disk_mb: 512
  compression_level: 3
  ttl: "720h"

session:
  # file: "~/.local/share/readaloud/positions.yml"
  resume: true
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the readaloud config file",
	Long:    paragraph(fmt.Sprintf("\n%s the readaloud config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("readaloud config\nreadaloud config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("readaloud", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if configFile == "" {
		return errors.New("no configuration directory found")
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		// The file may hold API keys.
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
