package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-stoi/stoi"
)

var scoreCmd = &cobra.Command{
	Use:   "score CLEAN DEGRADED",
	Short: "Score one pair of audio files",
	Long: `Score the intelligibility of DEGRADED relative to CLEAN.

The two files must share a sample rate and contain the same number of
samples after downmixing to mono. The score is printed on stdout. Silent or
very short references print NaN and exit with an error.

Examples:
  stoi score clean.wav noisy.wav
  stoi score --extended clean.flac enhanced.flac`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		decoder, err := newDecoder()
		if err != nil {
			return err
		}

		pair, err := loadPair(cmd.Context(), decoder, args[0], args[1])
		if err != nil {
			return err
		}

		eval, err := newEvaluator()
		if err != nil {
			return err
		}

		score, err := eval.Score(pair.Clean, pair.Degraded, pair.SampleRate)
		if err != nil && !stoi.IsDegenerate(err) {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", score)
		return err
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&extended, "extended", false, "compute ESTOI instead of STOI")
}
