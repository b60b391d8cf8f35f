package main

import (
	"fmt"
	"io"
	"path/filepath"

	gap "github.com/muesli/go-app-paths"

	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/logging"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, config.AppName).CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find log directory: %w", err)
	}
	return filepath.Join(dir, config.AppName+".log"), nil
}

// setupLog configures the default logger. With debug set, everything is
// logged to the log file so it does not scribble over the status line.
func setupLog(debug bool) (io.Closer, error) {
	path := ""
	if debug {
		p, err := getLogFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return logging.Setup(debug, path)
}
