package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aaronlmathis/vsflux/internal/aggregate"
	"github.com/aaronlmathis/vsflux/internal/entity"
	"github.com/aaronlmathis/vsflux/internal/lineproto"
)

// fakeSession serves queued sample sets per entity name. Each fetch pops the
// next set; the last set is repeated once the queue is drained.
type fakeSession struct {
	mu       sync.Mutex
	entities []entity.MonitoredEntity
	samples  map[string][][]aggregate.RawSample
	fetchErr map[string]error
	delay    map[string]time.Duration
	calls    map[string]int
	listErr  error
	closed   bool

	// failFrom makes fetches of an entity fail from the given call onward
	failFrom map[string]int
}

func newFakeSession(entities ...entity.MonitoredEntity) *fakeSession {
	return &fakeSession{
		entities: entities,
		samples:  make(map[string][][]aggregate.RawSample),
		fetchErr: make(map[string]error),
		delay:    make(map[string]time.Duration),
		calls:    make(map[string]int),
		failFrom: make(map[string]int),
	}
}

func (f *fakeSession) queue(name string, sets ...[]aggregate.RawSample) {
	f.samples[name] = append(f.samples[name], sets...)
}

func (f *fakeSession) Entities(ctx context.Context) ([]entity.MonitoredEntity, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entities, nil
}

func (f *fakeSession) Samples(ctx context.Context, e entity.MonitoredEntity) ([]aggregate.RawSample, error) {
	f.mu.Lock()
	f.calls[e.Name]++
	call := f.calls[e.Name]
	delay := f.delay[e.Name]
	err := f.fetchErr[e.Name]
	if from, ok := f.failFrom[e.Name]; ok && call >= from {
		err = fmt.Errorf("fetch %d of %s failed", call, e.Name)
	}
	sets := f.samples[e.Name]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, nil
	}
	idx := call - 1
	if idx >= len(sets) {
		idx = len(sets) - 1
	}
	return sets[idx], nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeConnector struct {
	session *fakeSession
	err     error
}

func (fc *fakeConnector) Connect(ctx context.Context) (Session, error) {
	if fc.err != nil {
		return nil, fc.err
	}
	return fc.session, nil
}

// recordingSink collects records and optionally fails for a given entity
type recordingSink struct {
	mu      sync.Mutex
	records []lineproto.Record
	failOn  string
}

var errSinkDown = errors.New("sink unavailable")

func (s *recordingSink) Write(ctx context.Context, record lineproto.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Entity == s.failOn {
		return errSinkDown
	}
	s.records = append(s.records, record)
	return nil
}

func (s *recordingSink) entities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.records))
	for _, r := range s.records {
		names = append(names, r.Entity)
	}
	return names
}

// blockingSink holds the first write until release is closed. started is
// closed once that write is in progress.
type blockingSink struct {
	recordingSink
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingSink) Write(ctx context.Context, record lineproto.Record) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.started)
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.recordingSink.Write(ctx, record)
}

func sentinelFlood(n int) []aggregate.RawSample {
	samples := make([]aggregate.RawSample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, aggregate.RawSample{Identifier: fmt.Sprintf("sys.counter%d", i), Value: 1})
	}
	return samples
}

func hostEntity(name string) entity.MonitoredEntity {
	return entity.MonitoredEntity{
		Name:       name,
		Kind:       entity.Host,
		PowerState: entity.PoweredOn,
		Host: entity.HostSizing{
			NumCPU:        8,
			CPUTotalMHz:   20000,
			CPUUsageMHz:   4000,
			MemoryTotalMB: 65536,
			MemoryUsageMB: 16384,
		},
	}
}

func guestEntity(name, host string, state entity.PowerState) entity.MonitoredEntity {
	return entity.MonitoredEntity{
		Name:           name,
		Kind:           entity.Guest,
		PowerState:     state,
		ParentHostName: host,
		Guest: entity.GuestSizing{
			NumCPU:        2,
			MemoryMB:      4096,
			ProvisionedGB: 40,
			UsedGB:        12.5,
		},
	}
}
