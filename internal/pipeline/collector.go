package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aaronlmathis/vsflux/internal/aggregate"
	"github.com/aaronlmathis/vsflux/internal/entity"
	"github.com/aaronlmathis/vsflux/internal/metrics"
)

var (
	// ErrSession marks run-fatal session and inventory failures
	ErrSession = errors.New("session failure")

	// ErrTransport marks run-fatal failures to hand a record to the sink
	ErrTransport = errors.New("transport failure")
)

// sessionCloseTimeout bounds the logout performed when a run ends
const sessionCloseTimeout = 10 * time.Second

// Config holds configuration for the collector
type Config struct {
	// Interval between cycles when running periodically
	Interval time.Duration `yaml:"interval"`

	// Workers is the number of entities in flight between fetch and emit.
	// 1 processes entities strictly one at a time.
	Workers int `yaml:"workers"`

	// FetchRate limits counter fetches per second across workers; 0 disables the limit
	FetchRate  float64 `yaml:"fetch_rate"`
	FetchBurst int     `yaml:"fetch_burst"`

	IncludeHosts  bool `yaml:"include_hosts"`
	IncludeGuests bool `yaml:"include_guests"`

	Trust aggregate.TrustConfig `yaml:"trust"`
}

// DefaultConfig returns the default collector configuration
func DefaultConfig() Config {
	return Config{
		Interval:      60 * time.Second,
		Workers:       1,
		FetchRate:     0,
		FetchBurst:    1,
		IncludeHosts:  true,
		IncludeGuests: true,
		Trust:         aggregate.DefaultTrustConfig(),
	}
}

// CycleSummary describes one collection cycle
type CycleSummary struct {
	ID       string
	Started  time.Time
	Duration time.Duration

	Entities int
	Emitted  int
	Skipped  int
	Excluded int
	Failed   int
	Lines    int

	Err error
}

// Collector runs collection cycles: acquire a session, process every entity
// through the retry controller, hand records to the sink in enumeration
// order, release the session.
type Collector struct {
	logger    *zap.Logger
	connector Connector
	sink      Sink
	retry     *RetryController
	health    *Health
	limiter   *rate.Limiter
	config    Config

	// Shutdown management
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewCollector creates a new collector
func NewCollector(logger *zap.Logger, connector Connector, sink Sink, config Config) *Collector {
	var limiter *rate.Limiter
	if config.FetchRate > 0 {
		burst := config.FetchBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.FetchRate), burst)
	}

	return &Collector{
		logger:    logger,
		connector: connector,
		sink:      sink,
		retry:     NewRetryController(logger, NewPipeline(logger, config.Trust)),
		health:    NewHealth(),
		limiter:   limiter,
		config:    config,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Health returns the collector's health tracker
func (c *Collector) Health() *Health {
	return c.health
}

// Start begins periodic collection. The first cycle runs immediately.
func (c *Collector) Start(ctx context.Context) error {
	if c.config.Interval <= 0 {
		return fmt.Errorf("collection interval must be positive, got %s", c.config.Interval)
	}
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("collector already started")
	}

	c.logger.Info("Starting collector",
		zap.Duration("interval", c.config.Interval),
		zap.Int("workers", c.workers()),
		zap.Float64("fetchRate", c.config.FetchRate),
		zap.Int("trustThreshold", c.config.Trust.Threshold),
	)

	go c.run(ctx)
	return nil
}

// Stop gracefully shuts down the collector and waits for the loop to exit.
// It is safe to call more than once, and before Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	if c.started.Load() {
		<-c.done
	}
}

// run executes the main collection loop
func (c *Collector) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	c.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Collector stopped due to context cancellation")
			return
		case <-c.stopCh:
			c.logger.Info("Collector stopped gracefully")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick performs one collection cycle; failures are logged and the loop continues
func (c *Collector) tick(ctx context.Context) {
	if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
		c.logger.Error("Collection cycle failed", zap.Error(err))
	}
}

// RunOnce performs a single collection cycle
func (c *Collector) RunOnce(ctx context.Context) (CycleSummary, error) {
	summary := CycleSummary{
		ID:      uuid.NewString(),
		Started: time.Now(),
	}
	logger := c.logger.With(zap.String("cycle", summary.ID))

	err := c.cycle(ctx, logger, &summary)

	summary.Duration = time.Since(summary.Started)
	summary.Err = err
	c.health.RecordCycle(summary)
	metrics.RecordCycle(summary.Duration, err != nil)

	logger.Info("Collection cycle finished",
		zap.Int("entities", summary.Entities),
		zap.Int("emitted", summary.Emitted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("excluded", summary.Excluded),
		zap.Int("failed", summary.Failed),
		zap.Int("lines", summary.Lines),
		zap.Duration("duration", summary.Duration),
		zap.Bool("success", err == nil),
	)

	return summary, err
}

func (c *Collector) cycle(ctx context.Context, logger *zap.Logger, summary *CycleSummary) error {
	session, err := c.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to connect: %w", ErrSession, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Failed to release session", zap.Error(err))
		}
	}()

	entities, err := session.Entities(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to list entities: %w", ErrSession, err)
	}
	entities = c.selectKinds(entities)
	summary.Entities = len(entities)

	logger.Debug("Enumerated entities", zap.Int("count", len(entities)))

	var fetcher Fetcher = session
	if c.limiter != nil {
		fetcher = &limitedFetcher{next: session, limiter: c.limiter}
	}

	return c.process(ctx, logger, fetcher, entities, summary)
}

// process fans entities out to workers and consumes results in enumeration
// order. A worker slot is held until its record has been handed to the sink,
// so at most Workers entities are in flight between fetch and emit. A sink
// failure cancels the remaining work.
func (c *Collector) process(ctx context.Context, logger *zap.Logger, fetcher Fetcher, entities []entity.MonitoredEntity, summary *CycleSummary) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan Result, len(entities))
	for i := range results {
		results[i] = make(chan Result, 1)
	}
	slots := make(chan struct{}, c.workers())

	var g errgroup.Group

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, e := range entities {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			i, e := i, e
			g.Go(func() error {
				results[i] <- c.retry.Run(ctx, fetcher, e)
				return nil
			})
		}
	}()

	err := c.consume(ctx, logger, results, slots, summary)

	cancel()
	<-launched
	_ = g.Wait()

	return err
}

func (c *Collector) consume(ctx context.Context, logger *zap.Logger, results []chan Result, slots <-chan struct{}, summary *CycleSummary) error {
	for i := range results {
		var res Result
		select {
		case res = <-results[i]:
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := c.handle(ctx, logger, res, summary); err != nil {
			return err
		}
		<-slots
	}
	return nil
}

// handle records one entity's result and writes its record, if any
func (c *Collector) handle(ctx context.Context, logger *zap.Logger, res Result, summary *CycleSummary) error {
	if res.Outcome != Emitted {
		c.health.RecordResult(res)
	}

	switch res.Outcome {
	case Emitted:
		if err := c.sink.Write(ctx, res.Record); err != nil {
			metrics.RecordTransportError()
			return fmt.Errorf("%w: %s: %w", ErrTransport, res.Entity.Name, err)
		}
		metrics.RecordEmitted(len(res.Record.Payload))
		c.health.RecordResult(res)
		summary.Emitted++
		summary.Lines += res.Record.Lines
		logger.Debug("Emitted record",
			zap.String("entity", res.Entity.Name),
			zap.Int("lines", res.Record.Lines),
			zap.Int("attempts", res.Attempts))
	case Skipped:
		summary.Skipped++
	case Excluded:
		summary.Excluded++
		logger.Debug("Excluding entity after repeated untrusted samples",
			zap.String("entity", res.Entity.Name))
	case Failed:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary.Failed++
		logger.Warn("Failed to collect entity",
			zap.String("entity", res.Entity.Name),
			zap.Error(res.Err))
	}
	return nil
}

func (c *Collector) selectKinds(entities []entity.MonitoredEntity) []entity.MonitoredEntity {
	if c.config.IncludeHosts && c.config.IncludeGuests {
		return entities
	}

	selected := make([]entity.MonitoredEntity, 0, len(entities))
	for _, e := range entities {
		if (e.Kind == entity.Host && c.config.IncludeHosts) || (e.Kind == entity.Guest && c.config.IncludeGuests) {
			selected = append(selected, e)
		}
	}
	return selected
}

func (c *Collector) workers() int {
	if c.config.Workers < 1 {
		return 1
	}
	return c.config.Workers
}

// limitedFetcher throttles counter fetches shared by all workers
type limitedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

func (lf *limitedFetcher) Samples(ctx context.Context, e entity.MonitoredEntity) ([]aggregate.RawSample, error) {
	if err := lf.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return lf.next.Samples(ctx, e)
}
