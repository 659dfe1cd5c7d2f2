package aggregate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// CPUUsageIdentifier is the raw identifier that triggers the derived
// per-core usage field
const CPUUsageIdentifier = "cpu.usage.average"

// coresSuffix is appended to the field name of the derived field
const coresSuffix = "_cores"

var (
	// ErrNoNamespace is returned for identifiers without a namespace delimiter
	ErrNoNamespace = errors.New("identifier has no namespace segment")

	// ErrNonFinite is returned for NaN or infinite sample values
	ErrNonFinite = errors.New("sample value is not finite")
)

// RawSample is one counter reading as reported by the fetch collaborator
type RawSample struct {
	Identifier string  `json:"identifier"`
	Value      float64 `json:"value"`

	// Fractional marks samples the upstream reported as floating-point
	// counters. Integer counters are floored when normalized.
	Fractional bool `json:"fractional"`
}

// Result is the outcome of aggregating one attempt's samples
type Result struct {
	// Groups is nil when the sample set is untrusted
	Groups *Groups

	Trusted   bool
	Sentinels int
	Skipped   int
}

// Aggregator groups raw samples into namespaces and evaluates trust in the
// same pass.
type Aggregator struct {
	logger *zap.Logger
	trust  TrustConfig
}

// NewAggregator creates a new aggregator
func NewAggregator(logger *zap.Logger, trust TrustConfig) *Aggregator {
	return &Aggregator{
		logger: logger,
		trust:  trust,
	}
}

// SplitIdentifier splits a raw identifier on its first dot. The remaining
// segments, embedded dots included, form the field name.
func SplitIdentifier(identifier string) (namespace, field string, err error) {
	namespace, field, found := strings.Cut(identifier, ".")
	if !found || namespace == "" || field == "" {
		return "", "", fmt.Errorf("%q: %w", identifier, ErrNoNamespace)
	}
	return namespace, field, nil
}

var fieldNameReplacer = strings.NewReplacer(" ", "_", "[", "_", "]", "_")

// NormalizeFieldName replaces spaces and square brackets with underscores.
// Dots are left alone.
func NormalizeFieldName(name string) string {
	return fieldNameReplacer.Replace(name)
}

// Aggregate processes the samples of one entity. Invalid samples are
// skipped individually. When the trust counter goes negative the grouped
// output is discarded and Result.Groups is nil.
func (a *Aggregator) Aggregate(samples []RawSample, cpuCount int) Result {
	evaluator := NewTrustEvaluator(a.trust)
	groups := NewGroups()
	skipped := 0

	for _, sample := range samples {
		evaluator.Observe(sample.Value)

		if err := a.add(groups, sample, cpuCount); err != nil {
			skipped++
			a.logger.Debug("Skipping sample",
				zap.String("identifier", sample.Identifier),
				zap.Error(err))
		}
	}

	result := Result{
		Trusted:   evaluator.Trusted(),
		Sentinels: evaluator.Sentinels(),
		Skipped:   skipped,
	}
	if result.Trusted {
		result.Groups = groups
	}
	return result
}

func (a *Aggregator) add(groups *Groups, sample RawSample, cpuCount int) error {
	namespace, field, err := SplitIdentifier(sample.Identifier)
	if err != nil {
		return err
	}
	if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
		return fmt.Errorf("%q: %w", sample.Identifier, ErrNonFinite)
	}

	name := NormalizeFieldName(field)
	group := groups.Group(namespace)
	group.Set(name, Normalize(sample.Value, sample.Fractional))

	if sample.Identifier == CPUUsageIdentifier {
		cores := Round(sample.Value*float64(cpuCount), 3)
		group.Set(name+coresSuffix, Float(cores))
	}
	return nil
}
