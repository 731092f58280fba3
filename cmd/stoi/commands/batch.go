package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-stoi/logging"
	"github.com/RyanBlaney/sonido-stoi/stoi"
)

var (
	batchWorkers int
	batchFormat  string
)

// Manifest lists the pairs scored by the batch command.
// Relative paths are resolved against the manifest's directory.
//
// Example manifest (pairs.yaml):
//
//	pairs:
//	  - clean: clean/001.wav
//	    degraded: noisy/001.wav
//	  - clean: clean/002.wav
//	    degraded: noisy/002.wav
type Manifest struct {
	Pairs []ManifestPair `yaml:"pairs" json:"pairs"`
}

// ManifestPair names the two files of one pair.
type ManifestPair struct {
	Clean    string `yaml:"clean" json:"clean"`
	Degraded string `yaml:"degraded" json:"degraded"`
}

// BatchResult is one line of batch output.
type BatchResult struct {
	Clean    string  `yaml:"clean" json:"clean"`
	Degraded string  `yaml:"degraded" json:"degraded"`
	Score    float64 `yaml:"score" json:"score"`
	Error    string  `yaml:"error,omitempty" json:"error,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch MANIFEST",
	Short: "Score every pair listed in a YAML manifest",
	Long: `Score many clean/degraded pairs in parallel.

Pairs may differ in length and sample rate from one another. Results are
printed in manifest order, one per line; a pair that cannot be scored
prints NaN followed by the reason, and does not stop the others.

Example manifest (pairs.yaml):
  pairs:
    - clean: clean/001.wav
      degraded: noisy/001.wav

Examples:
  stoi batch pairs.yaml
  stoi batch pairs.yaml --extended --workers 8 --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch batchFormat {
		case "text", "yaml":
		default:
			return fmt.Errorf("unknown format %q (want text or yaml)", batchFormat)
		}

		manifest, err := loadManifest(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if batchWorkers > 0 {
			cfg.Workers = batchWorkers
		}
		eval, err := stoi.NewEvaluator(cfg)
		if err != nil {
			return err
		}

		ctx := logging.ContextWithFields(cmd.Context(), logging.Fields{"manifest": args[0]})
		decoder, err := newDecoder()
		if err != nil {
			return err
		}

		// decode failures are reported per pair, like scoring failures
		pairs := make([]stoi.Pair, len(manifest.Pairs))
		decodeErrs := make([]error, len(manifest.Pairs))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(decodeLimit(cfg))
		for i, mp := range manifest.Pairs {
			g.Go(func() error {
				pairs[i], decodeErrs[i] = loadPair(gctx, decoder, mp.Clean, mp.Degraded)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		results, err := eval.ScorePairs(ctx, pairs)
		if err != nil {
			return err
		}

		out := make([]BatchResult, len(results))
		for i, r := range results {
			if decodeErrs[i] != nil {
				r = stoi.Result{Score: r.Score, Err: decodeErrs[i]}
			}
			out[i] = BatchResult{
				Clean:    manifest.Pairs[i].Clean,
				Degraded: manifest.Pairs[i].Degraded,
				Score:    r.Score,
			}
			if r.Err != nil {
				out[i].Error = r.Err.Error()
			}
		}

		return writeBatch(cmd.OutOrStdout(), out, batchFormat)
	},
}

func init() {
	batchCmd.Flags().BoolVar(&extended, "extended", false, "compute ESTOI instead of STOI")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "parallel workers (default: number of CPUs)")
	batchCmd.Flags().StringVar(&batchFormat, "format", "text", "output format: text or yaml")
}

// loadManifest reads a manifest and resolves its relative paths
func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Pairs) == 0 {
		return nil, fmt.Errorf("manifest %s lists no pairs", path)
	}

	dir := filepath.Dir(path)
	for i, p := range m.Pairs {
		if p.Clean == "" || p.Degraded == "" {
			return nil, fmt.Errorf("manifest %s: pair %d needs both clean and degraded", path, i)
		}
		m.Pairs[i].Clean = resolvePath(dir, p.Clean)
		m.Pairs[i].Degraded = resolvePath(dir, p.Degraded)
	}

	return &m, nil
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func writeBatch(w io.Writer, results []BatchResult, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"results": results}); err != nil {
			return err
		}
		return enc.Close()
	}

	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", r.Clean, r.Degraded, formatScore(r.Score, r.Error)); err != nil {
			return err
		}
	}
	return nil
}

// decodeLimit bounds concurrent decodes the same way the scorer sizes its
// worker pool
func decodeLimit(cfg *stoi.Config) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.NumCPU()
}
