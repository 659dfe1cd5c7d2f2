package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/vsflux/internal/aggregate"
	"github.com/aaronlmathis/vsflux/internal/entity"
	"github.com/aaronlmathis/vsflux/internal/lineproto"
	"github.com/aaronlmathis/vsflux/internal/metrics"
)

// Fetcher returns the realtime samples of one entity
type Fetcher interface {
	Samples(ctx context.Context, e entity.MonitoredEntity) ([]aggregate.RawSample, error)
}

// Session is an authenticated management-plane session held for one
// collection run. Close must be called on every exit path.
type Session interface {
	Fetcher
	Entities(ctx context.Context) ([]entity.MonitoredEntity, error)
	Close(ctx context.Context) error
}

// Connector establishes sessions
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// Sink receives the finished record of one entity
type Sink interface {
	Write(ctx context.Context, record lineproto.Record) error
}

// Outcome is the final disposition of one entity in a cycle
type Outcome int

const (
	// Emitted means a trusted record was produced
	Emitted Outcome = iota
	// Skipped means the entity filter rejected the entity
	Skipped
	// Excluded means both attempts were untrusted
	Excluded
	// Failed means fetching samples failed or the run was cancelled
	Failed
)

// String returns the outcome name used in logs and metric labels
func (o Outcome) String() string {
	switch o {
	case Emitted:
		return "emitted"
	case Skipped:
		return "skipped"
	case Excluded:
		return "excluded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what the retry controller reports for one entity
type Result struct {
	Entity   entity.MonitoredEntity
	Outcome  Outcome
	Record   lineproto.Record
	Attempts int

	// Untrusted counts the attempts discarded by the trust check
	Untrusted int

	Err error
}

// Attempt is the two-variant result of one pipeline attempt: either a
// trusted record or an untrusted sample set with nothing to emit.
type Attempt struct {
	Trusted bool
	Record  lineproto.Record
}

// maxAttempts bounds the attempts per entity: the first try plus one retry
const maxAttempts = 2

// Pipeline runs fetch, aggregate, trust check and encode for one entity
type Pipeline struct {
	logger     *zap.Logger
	aggregator *aggregate.Aggregator
}

// NewPipeline creates a new pipeline
func NewPipeline(logger *zap.Logger, trust aggregate.TrustConfig) *Pipeline {
	return &Pipeline{
		logger:     logger,
		aggregator: aggregate.NewAggregator(logger, trust),
	}
}

// Attempt performs a single attempt. All state is local to the call, so an
// untrusted attempt leaves nothing behind.
func (p *Pipeline) Attempt(ctx context.Context, fetcher Fetcher, e entity.MonitoredEntity) (Attempt, error) {
	start := time.Now()
	samples, err := fetcher.Samples(ctx, e)
	metrics.RecordFetch(e.Kind.String(), time.Since(start), err != nil)
	if err != nil {
		return Attempt{}, fmt.Errorf("failed to fetch samples for %s: %w", e.Name, err)
	}

	result := p.aggregator.Aggregate(samples, e.CPUCount())
	if result.Skipped > 0 {
		metrics.RecordSkippedSamples(result.Skipped)
	}
	if !result.Trusted {
		p.logger.Debug("Untrusted sample set",
			zap.String("entity", e.Name),
			zap.Int("samples", len(samples)),
			zap.Int("sentinels", result.Sentinels))
		return Attempt{Trusted: false}, nil
	}

	payload := lineproto.Encode(lineproto.NewIdentity(e), result.Groups)
	return Attempt{
		Trusted: true,
		Record: lineproto.Record{
			Entity:  e.Name,
			Kind:    e.Kind.String(),
			Payload: payload,
			Lines:   lineproto.CountLines(payload),
		},
	}, nil
}

// RetryController wraps the pipeline with the entity filter and a bounded
// retry: one re-attempt when the first sample set is untrusted.
type RetryController struct {
	logger   *zap.Logger
	pipeline *Pipeline
}

// NewRetryController creates a new retry controller
func NewRetryController(logger *zap.Logger, pipeline *Pipeline) *RetryController {
	return &RetryController{
		logger:   logger,
		pipeline: pipeline,
	}
}

// Run processes one entity to its final outcome
func (rc *RetryController) Run(ctx context.Context, fetcher Fetcher, e entity.MonitoredEntity) Result {
	res := rc.run(ctx, fetcher, e)
	metrics.RecordEntity(e.Kind.String(), res.Outcome.String())
	return res
}

func (rc *RetryController) run(ctx context.Context, fetcher Fetcher, e entity.MonitoredEntity) Result {
	if !entity.ShouldCollect(e) {
		rc.logger.Debug("Skipping entity",
			zap.String("entity", e.Name),
			zap.String("powerState", string(e.PowerState)))
		return Result{Entity: e, Outcome: Skipped}
	}

	untrusted := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Entity: e, Outcome: Failed, Attempts: attempt - 1, Untrusted: untrusted, Err: err}
		}

		a, err := rc.pipeline.Attempt(ctx, fetcher, e)
		if err != nil {
			return Result{Entity: e, Outcome: Failed, Attempts: attempt, Untrusted: untrusted, Err: err}
		}
		if a.Trusted {
			return Result{Entity: e, Outcome: Emitted, Record: a.Record, Attempts: attempt, Untrusted: untrusted}
		}

		untrusted++
		metrics.RecordUntrustedAttempt(e.Kind.String())
		rc.logger.Debug("Discarding untrusted attempt",
			zap.String("entity", e.Name),
			zap.Int("attempt", attempt))
	}

	return Result{Entity: e, Outcome: Excluded, Attempts: maxAttempts, Untrusted: untrusted}
}
