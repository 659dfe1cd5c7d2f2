package aggregate

// TrustConfig holds the sentinel heuristic parameters
type TrustConfig struct {
	// Threshold is the number of sentinel values tolerated per attempt
	Threshold int `yaml:"threshold"`

	// Sentinel is the value a failed upstream counter read floods the
	// response with
	Sentinel float64 `yaml:"sentinel"`
}

// DefaultTrustConfig returns the default heuristic parameters
func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		Threshold: 20,
		Sentinel:  1,
	}
}

// TrustEvaluator counts sentinel values for one pipeline attempt.
// It is not safe for concurrent use; each attempt owns its own evaluator.
type TrustEvaluator struct {
	sentinel  float64
	remaining int
	observed  int
}

// NewTrustEvaluator creates an evaluator initialised to the configured threshold
func NewTrustEvaluator(cfg TrustConfig) *TrustEvaluator {
	return &TrustEvaluator{
		sentinel:  cfg.Sentinel,
		remaining: cfg.Threshold,
	}
}

// Observe feeds one raw sample value. Only exact matches count.
func (t *TrustEvaluator) Observe(v float64) {
	if v == t.sentinel {
		t.remaining--
		t.observed++
	}
}

// Trusted reports whether the counter is still non-negative
func (t *TrustEvaluator) Trusted() bool {
	return t.remaining >= 0
}

// Remaining returns the current counter value
func (t *TrustEvaluator) Remaining() int {
	return t.remaining
}

// Sentinels returns how many sentinel values were observed
func (t *TrustEvaluator) Sentinels() int {
	return t.observed
}
