package stoi

import "context"

// Metric binds an evaluator to a fixed input sample rate, for callers that
// score many pairs recorded at the same rate
type Metric struct {
	sampleRate int
	eval       *Evaluator
}

// NewMetric creates a metric for inputs at sampleRate Hz with the default
// configuration. extended selects ESTOI.
func NewMetric(sampleRate int, extended bool) (*Metric, error) {
	cfg := DefaultConfig()
	cfg.Extended = extended
	return NewMetricWithConfig(sampleRate, cfg)
}

// NewMetricWithConfig creates a metric for inputs at sampleRate Hz
func NewMetricWithConfig(sampleRate int, cfg *Config) (*Metric, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	eval, err := NewEvaluator(cfg)
	if err != nil {
		return nil, err
	}
	return &Metric{sampleRate: sampleRate, eval: eval}, nil
}

// Call scores one pair
func (m *Metric) Call(clean, degraded []float64) (float64, error) {
	return m.eval.Score(clean, degraded, m.sampleRate)
}

// CallBatch scores a rectangular batch
func (m *Metric) CallBatch(ctx context.Context, clean, degraded [][]float64) ([]Result, error) {
	return m.eval.ScoreBatch(ctx, clean, degraded, m.sampleRate)
}

// SampleRate returns the input sample rate the metric expects
func (m *Metric) SampleRate() int { return m.sampleRate }

// Evaluator returns the underlying evaluator
func (m *Metric) Evaluator() *Evaluator { return m.eval }
