package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-stoi/stoi"
)

// Version is set at link time with -ldflags "-X .../commands.Version=v1.2.3"
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "stoi %s\n", buildVersion())
		if verbose {
			cfg := stoi.DefaultConfig()
			fmt.Fprintf(out, "  go:          %s\n", runtime.Version())
			fmt.Fprintf(out, "  sample rate: %d Hz\n", cfg.SampleRate)
			fmt.Fprintf(out, "  fft backend: %s\n", cfg.FFTBackend)
			fmt.Fprintf(out, "  resampler:   %s\n", cfg.Resampler)
		}
	},
}

func buildVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
