package vsphere

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/vim25/types"

	"github.com/aaronlmathis/vsflux/internal/aggregate"
	"github.com/aaronlmathis/vsflux/internal/entity"
)

// percentUnit counters are reported in hundredths of a percent
const percentUnit = "percent"

// Samples queries the latest realtime value of every counter available for
// the entity. Only the aggregate instance is kept.
func (s *Session) Samples(ctx context.Context, e entity.MonitoredEntity) ([]aggregate.RawSample, error) {
	ref, ok := s.lookup(e.Ref)
	if !ok {
		return nil, fmt.Errorf("unknown entity reference %q for %s", e.Ref, e.Name)
	}

	available, err := s.perf.AvailableMetric(ctx, ref, s.intervalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available counters for %s: %w", e.Name, err)
	}

	ids := make([]types.PerfMetricId, 0, len(available))
	for _, id := range available {
		if id.Instance == "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	counters, err := s.perf.CounterInfoByKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load counter catalogue: %w", err)
	}

	query := types.PerfQuerySpec{
		Entity:     ref,
		MetricId:   ids,
		MaxSample:  1,
		IntervalId: s.intervalID,
	}
	result, err := s.perf.Query(ctx, []types.PerfQuerySpec{query})
	if err != nil {
		return nil, fmt.Errorf("failed to query counters for %s: %w", e.Name, err)
	}

	return convertMetrics(counters, result), nil
}

// convertMetrics turns a performance query result into raw samples. Each
// series contributes its latest value; vSphere's -1 "no data" marker is dropped.
func convertMetrics(counters map[int32]*types.PerfCounterInfo, result []types.BasePerfEntityMetricBase) []aggregate.RawSample {
	var samples []aggregate.RawSample

	for _, base := range result {
		em, ok := base.(*types.PerfEntityMetric)
		if !ok {
			continue
		}
		for _, v := range em.Value {
			series, ok := v.(*types.PerfMetricIntSeries)
			if !ok || series.Id.Instance != "" || len(series.Value) == 0 {
				continue
			}
			info, ok := counters[series.Id.CounterId]
			if !ok {
				continue
			}

			raw := series.Value[len(series.Value)-1]
			if raw < 0 {
				continue
			}

			sample := aggregate.RawSample{
				Identifier: counterName(info),
				Value:      float64(raw),
			}
			if unitKey(info) == percentUnit {
				sample.Value = float64(raw) / 100
				sample.Fractional = true
			}
			samples = append(samples, sample)
		}
	}

	return samples
}

// counterName returns the dotted group.name.rollup identifier
func counterName(info *types.PerfCounterInfo) string {
	return fmt.Sprintf("%s.%s.%s",
		descriptionKey(info.GroupInfo),
		descriptionKey(info.NameInfo),
		info.RollupType)
}

func unitKey(info *types.PerfCounterInfo) string {
	return descriptionKey(info.UnitInfo)
}

func descriptionKey(d types.BaseElementDescription) string {
	if d == nil {
		return ""
	}
	return d.GetElementDescription().Key
}
