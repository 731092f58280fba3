package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-stoi/logging"
	"github.com/RyanBlaney/sonido-stoi/stoi"
	"github.com/RyanBlaney/sonido-stoi/transcode"
)

var (
	// Global flags
	cfgFile  string
	verbose  bool
	logLevel string

	// Shared by score and batch
	extended bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stoi",
	Short: "Speech intelligibility scoring (STOI / ESTOI)",
	Long: `stoi - Short-Time Objective Intelligibility for audio files.

Scores how intelligible a degraded recording is relative to its clean
reference. Both files must have the same sample rate and length. WAV files
are read directly; other formats are decoded with ffmpeg.

Examples:
  # Score one pair
  stoi score clean.wav enhanced.wav

  # Extended variant with a custom analysis config
  stoi --config stoi.yaml score --extended clean.wav enhanced.wav

  # Score many pairs in parallel
  stoi batch pairs.yaml --workers 8
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "analysis config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)
}

// initLogging routes all log output to stderr so stdout carries only scores
func initLogging() error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	if verbose {
		level = logging.DebugLevel
	}

	logger := logging.NewWriterLogger(os.Stderr, os.Stderr, false)
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	return nil
}

// loadConfig returns the analysis config from --config, or the defaults
func loadConfig() (*stoi.Config, error) {
	cfg := stoi.DefaultConfig()
	if cfgFile != "" {
		loaded, err := stoi.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if extended {
		cfg.Extended = true
	}
	return cfg, nil
}

func newEvaluator() (*stoi.Evaluator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return stoi.NewEvaluator(cfg)
}

func newDecoder() (*transcode.Decoder, error) {
	return transcode.NewDecoder(transcode.DefaultDecoderConfig())
}
