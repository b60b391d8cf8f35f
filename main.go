// Package main provides the entry point for the readaloud CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/document"
	"github.com/dgnsrekt/readaloud/internal/engine"
	"github.com/dgnsrekt/readaloud/internal/logging"
	"github.com/dgnsrekt/readaloud/internal/session"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	debug             bool
	fromChar          int
	voiceQuery        string
	rate              float64
	pitch             float64
	gateway           string
	clipboard         bool
	markdown          bool
	noResume          bool
	estimate          bool

	cfg       config.Config
	logCloser io.Closer = nopCloser{}

	rootCmd = &cobra.Command{
		Use:   "readaloud [SOURCE]",
		Short: "Read documents aloud on the CLI",
		Long: paragraph(
			fmt.Sprintf("\nRead a file, URL or standard input %s, one chunk at a time.", keyword("aloud")),
		),
		Example: paragraph("readaloud notes.md\nreadaloud --voice nova --gateway openai https://example.com/post.md\ncat book.txt | readaloud -"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		RunE: execute,
	}
)

// prepare loads the configuration and applies command line overrides.
func prepare(cmd *cobra.Command, _ []string) error {
	c, err := setupLog(debug)
	if err != nil {
		return err
	}
	logCloser = c

	// The config and man commands must work with a broken config file.
	if cmd == configCmd || cmd == manCmd {
		return nil
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	return applyFlags(cmd, &cfg)
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("gateway") {
		c.Gateway = gateway
	}
	if flags.Changed("voice") {
		c.Voice = voiceQuery
	}
	if flags.Changed("rate") {
		c.Rate = rate
	}
	if flags.Changed("pitch") {
		c.Pitch = pitch
	}
	if noResume {
		c.Session.Resume = false
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func loadDocument(cmd *cobra.Command, args []string) (document.Document, error) {
	if clipboard {
		return document.FromClipboard(markdown)
	}

	arg := document.Stdin
	if len(args) == 1 {
		arg = args[0]
	} else if yes, err := stdinIsPipe(); err != nil {
		return document.Document{}, err
	} else if !yes {
		return document.Document{}, errors.New("missing source: pass a file, a URL or - for standard input")
	}
	return document.Open(cmd.Context(), arg, os.Stdin, markdown)
}

func execute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	doc, err := loadDocument(cmd, args)
	if err != nil {
		return err
	}

	if estimate {
		p := synth.Params{Rate: cfg.Rate, Pitch: cfg.Pitch}
		printUsage(cmd.OutOrStdout(), estimateUsage(doc.Text, cfg.Gateway, cfg.Voice, p, cfg.MaxBytes))
		return nil
	}

	store, err := session.Open(cfg.Session.File)
	if err != nil {
		return err
	}

	start := 0
	switch {
	case cmd.Flags().Changed("from"):
		start = fromChar
	case cfg.Session.Resume:
		if pos, ok := store.Get(doc.ID); ok {
			start = pos.Char
			log.Info("Resuming", "title", doc.Title, "char", pos.Char)
		}
	}

	gw, closer, err := newGateway(cfg)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	params, err := resolveParams(ctx, gw, cfg)
	if err != nil {
		return err
	}

	device, err := newDevice(cfg)
	if err != nil {
		return err
	}
	defer device.Close() //nolint:errcheck

	eng := engine.New(doc.Text, gw, device, engine.Options{
		MaxBytes:     cfg.MaxBytes,
		Workers:      cfg.Workers,
		PollInterval: cfg.PollInterval,
		Params:       params,
		Recorder:     logging.NewRecorder(nil),
	})
	return newReader(doc, eng, store, os.Stdout).read(ctx, os.Stdin, start)
}

func main() {
	err := rootCmd.Execute()
	_ = logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()
	rootCmd.PersistentPreRunE = prepare

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write a debug log")
	rootCmd.PersistentFlags().StringVarP(&gateway, "gateway", "g", "", "synthesis service (google or openai)")
	rootCmd.Flags().IntVarP(&fromChar, "from", "f", 0, "start reading at this character offset")
	rootCmd.Flags().StringVarP(&voiceQuery, "voice", "v", "", "voice name or search query")
	rootCmd.Flags().Float64VarP(&rate, "rate", "r", 1.0, "speaking rate (0.25 to 4.0)")
	rootCmd.Flags().Float64Var(&pitch, "pitch", 0, "pitch in semitones (-20 to 20)")
	rootCmd.Flags().BoolVarP(&clipboard, "clipboard", "c", false, "read the clipboard")
	rootCmd.Flags().BoolVarP(&markdown, "markdown", "m", false, "treat the source as markdown")
	rootCmd.Flags().BoolVar(&noResume, "no-resume", false, "start at the beginning instead of the saved position")
	rootCmd.Flags().BoolVar(&estimate, "estimate", false, "print the document's size and synthesis cost, then exit")

	rootCmd.AddCommand(configCmd, manCmd, voicesCmd, cacheCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if len(dirs) > 0 {
		defaultConfigFile = filepath.Join(dirs[0], config.AppName+".yml")
	}
}
