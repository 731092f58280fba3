package stoi

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-stoi/logging"
)

// ScoreBatch scores the aligned rows of clean and degraded in parallel.
// The batch must be rectangular: both sides have the same number of rows
// and every row has the same length. Shape and rate errors are returned
// before any row is scored.
//
// Results are in input order. A row that fails (non-finite samples, a
// silent reference) records its error in its own slot without affecting
// the others. If ctx is cancelled, rows not yet started get ctx.Err() and
// the call returns ctx.Err() with the partial results.
func (e *Evaluator) ScoreBatch(ctx context.Context, clean, degraded [][]float64, sampleRate int) ([]Result, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}
	if len(clean) != len(degraded) {
		return nil, fmt.Errorf("%w: %d clean rows, %d degraded rows", ErrBatchShape, len(clean), len(degraded))
	}
	if len(clean) == 0 {
		return []Result{}, nil
	}

	width := len(clean[0])
	for i := range clean {
		if len(clean[i]) != width || len(degraded[i]) != width {
			return nil, fmt.Errorf("%w: row %d has %d/%d samples, row 0 has %d",
				ErrBatchShape, i, len(clean[i]), len(degraded[i]), width)
		}
	}
	if width == 0 {
		return nil, fmt.Errorf("%w: rows are empty", ErrEmptySignal)
	}
	if err := e.validateLength(width, sampleRate); err != nil {
		return nil, err
	}

	pairs := make([]Pair, len(clean))
	for i := range clean {
		pairs[i] = Pair{Clean: clean[i], Degraded: degraded[i], SampleRate: sampleRate}
	}

	return e.scoreAll(ctx, pairs)
}

// ScorePairs scores independent pairs in parallel. Unlike ScoreBatch the
// pairs may differ in length and sample rate, so every check is made per
// pair and reported in that pair's slot. The call-level error is only ever
// ctx.Err().
func (e *Evaluator) ScorePairs(ctx context.Context, pairs []Pair) ([]Result, error) {
	if len(pairs) == 0 {
		return []Result{}, nil
	}
	return e.scoreAll(ctx, pairs)
}

// scoreAll fans pairs out to a fixed pool of workers. Each worker owns one
// pipeline for its whole lifetime and writes into results by index.
func (e *Evaluator) scoreAll(ctx context.Context, pairs []Pair) ([]Result, error) {
	results := make([]Result, len(pairs))
	started := make([]bool, len(pairs))

	workers := e.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(pairs))

	logger := e.logger.WithContext(ctx).WithFields(logging.Fields{
		"pairs":   len(pairs),
		"workers": workers,
	})
	logger.Debug("Starting batch")

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)

	for range workers {
		g.Go(func() error {
			p, err := newPipeline(e)
			if err != nil {
				return err
			}
			for i := range jobs {
				results[i] = e.scoreOne(p, pairs[i])
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i := range pairs {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobs <- i:
				started[i] = true
			}
		}
		return nil
	})

	err := g.Wait()

	for i := range results {
		if !started[i] {
			cause := err
			if cause == nil {
				cause = context.Canceled
			}
			results[i] = Result{Score: math.NaN(), Err: cause}
		}
	}

	if err != nil {
		logger.Warn("Batch interrupted", logging.Fields{"error": err.Error()})
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Debug("Batch complete", logging.Fields{"failed": failed})

	return results, nil
}

func (e *Evaluator) scoreOne(p *pipeline, pair Pair) Result {
	if err := e.validatePair(pair.Clean, pair.Degraded, pair.SampleRate); err != nil {
		return Result{Score: math.NaN(), Err: err}
	}
	score, err := p.run(pair.Clean, pair.Degraded, pair.SampleRate)
	return Result{Score: score, Err: err}
}
