package aggregate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fieldsOf(t *testing.T, groups *Groups, namespace string) map[string]string {
	t.Helper()
	group, ok := groups.Get(namespace)
	require.True(t, ok, "namespace %s missing", namespace)

	out := make(map[string]string)
	for _, f := range group.Fields() {
		out[f.Name] = f.Value.String()
	}
	return out
}

func TestAggregate_CPUUsageCores(t *testing.T) {
	agg := NewAggregator(zaptest.NewLogger(t), DefaultTrustConfig())

	tests := []struct {
		name          string
		value         float64
		cpuCount      int
		expectedAvg   string
		expectedCores string
	}{
		{name: "four cores", value: 25.0, cpuCount: 4, expectedAvg: "25", expectedCores: "100"},
		{name: "eight cores", value: 12.5, cpuCount: 8, expectedAvg: "12.5", expectedCores: "100"},
		{name: "cores rounded to three places", value: 12.3456, cpuCount: 2, expectedAvg: "12.3456", expectedCores: "24.691"},
		{name: "zero cpu count", value: 50.5, cpuCount: 0, expectedAvg: "50.5", expectedCores: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := agg.Aggregate([]RawSample{
				{Identifier: "cpu.usage.average", Value: tt.value, Fractional: true},
			}, tt.cpuCount)

			require.True(t, result.Trusted)
			fields := fieldsOf(t, result.Groups, "cpu")
			assert.Equal(t, tt.expectedAvg, fields["usage.average"])
			assert.Equal(t, tt.expectedCores, fields["usage.average_cores"])
		})
	}
}

func TestAggregate_CoresUsesRawValue(t *testing.T) {
	agg := NewAggregator(zaptest.NewLogger(t), DefaultTrustConfig())

	// Integer counters are floored for display but the derived field must
	// multiply the raw reading.
	result := agg.Aggregate([]RawSample{
		{Identifier: "cpu.usage.average", Value: 10.75, Fractional: false},
	}, 2)

	fields := fieldsOf(t, result.Groups, "cpu")
	assert.Equal(t, "10", fields["usage.average"])
	assert.Equal(t, "21.5", fields["usage.average_cores"])
}

func TestAggregate_OnlyExactIdentifierDerivesCores(t *testing.T) {
	agg := NewAggregator(zaptest.NewLogger(t), DefaultTrustConfig())

	result := agg.Aggregate([]RawSample{
		{Identifier: "cpu.usage.maximum", Value: 40, Fractional: true},
		{Identifier: "cpu.usagemhz.average", Value: 400},
	}, 4)

	group, ok := result.Groups.Get("cpu")
	require.True(t, ok)
	assert.Equal(t, 2, group.Len())
	_, hasCores := group.Get("usage.maximum_cores")
	assert.False(t, hasCores)
}

func TestAggregate_ValueNormalization(t *testing.T) {
	agg := NewAggregator(zaptest.NewLogger(t), DefaultTrustConfig())

	result := agg.Aggregate([]RawSample{
		{Identifier: "mem.usage.average", Value: 1.234567, Fractional: true},
		{Identifier: "mem.active.average", Value: 2048.9, Fractional: false},
		{Identifier: "mem.granted.average", Value: 4096, Fractional: false},
		{Identifier: "mem.swapped.average", Value: 0.000004, Fractional: true},
	}, 1)

	fields := fieldsOf(t, result.Groups, "mem")
	assert.Equal(t, "1.23457", fields["usage.average"])
	assert.Equal(t, "2048", fields["active.average"])
	assert.Equal(t, "4096", fields["granted.average"])
	assert.Equal(t, "0", fields["swapped.average"])
}

func TestAggregate_SkipsInvalidSamples(t *testing.T) {
	agg := NewAggregator(zaptest.NewLogger(t), DefaultTrustConfig())

	result := agg.Aggregate([]RawSample{
		{Identifier: "uptime", Value: 100},
		{Identifier: ".average", Value: 5},
		{Identifier: "disk.", Value: 5},
		{Identifier: "disk.read.average", Value: 12},
	}, 1)

	require.True(t, result.Trusted)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 1, result.Groups.Len())
	assert.Equal(t, map[string]string{"read.average": "12"}, fieldsOf(t, result.Groups, "disk"))
}

func TestAggregate_FieldNamesAndOrder(t *testing.T) {
	agg := NewAggregator(zaptest.NewLogger(t), DefaultTrustConfig())

	result := agg.Aggregate([]RawSample{
		{Identifier: "net.received.average", Value: 10},
		{Identifier: "disk.read.average", Value: 3},
		{Identifier: "net.bytesRx[vmnic0] total", Value: 20},
		{Identifier: "net.received.average", Value: 11},
	}, 1)

	all := result.Groups.All()
	require.Len(t, all, 2)
	assert.Equal(t, "net", all[0].Namespace)
	assert.Equal(t, "disk", all[1].Namespace)

	assert.Equal(t, []Field{
		{Name: "received.average", Value: Int(11)},
		{Name: "bytesRx_vmnic0__total", Value: Int(20)},
	}, all[0].Fields())
}

func TestAggregate_Trust(t *testing.T) {
	agg := NewAggregator(zaptest.NewLogger(t), DefaultTrustConfig())

	build := func(ones, others int) []RawSample {
		var samples []RawSample
		for i := 0; i < ones; i++ {
			samples = append(samples, RawSample{Identifier: fmt.Sprintf("sys.one%d", i), Value: 1})
		}
		for i := 0; i < others; i++ {
			samples = append(samples, RawSample{Identifier: fmt.Sprintf("sys.other%d", i), Value: float64(i + 2)})
		}
		return samples
	}

	tests := []struct {
		name    string
		ones    int
		others  int
		trusted bool
	}{
		{name: "no sentinels", ones: 0, others: 50, trusted: true},
		{name: "at threshold", ones: 20, others: 5, trusted: true},
		{name: "one over threshold", ones: 21, others: 5, trusted: false},
		{name: "flood", ones: 25, others: 0, trusted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := agg.Aggregate(build(tt.ones, tt.others), 2)
			assert.Equal(t, tt.trusted, result.Trusted)
			assert.Equal(t, tt.ones, result.Sentinels)
			if tt.trusted {
				assert.NotNil(t, result.Groups)
			} else {
				assert.Nil(t, result.Groups)
			}
		})
	}
}

func TestAggregate_InvalidSamplesStillCountTowardTrust(t *testing.T) {
	agg := NewAggregator(zaptest.NewLogger(t), TrustConfig{Threshold: 1, Sentinel: 1})

	result := agg.Aggregate([]RawSample{
		{Identifier: "nodot", Value: 1},
		{Identifier: "also_nodot", Value: 1},
	}, 1)

	assert.False(t, result.Trusted)
	assert.Equal(t, 2, result.Skipped)
}

func TestSplitIdentifier(t *testing.T) {
	ns, field, err := SplitIdentifier("cpu.usage.average")
	require.NoError(t, err)
	assert.Equal(t, "cpu", ns)
	assert.Equal(t, "usage.average", field)

	_, _, err = SplitIdentifier("cpu")
	assert.ErrorIs(t, err, ErrNoNamespace)
}

func TestNormalizeFieldName_Idempotent(t *testing.T) {
	names := []string{
		"usage.average",
		"bytesRx[vmnic0] total",
		"a b[c]d.e",
		"",
	}

	for _, name := range names {
		once := NormalizeFieldName(name)
		assert.Equal(t, once, NormalizeFieldName(once), "name %q", name)
	}
	assert.Equal(t, "a_b_c_d.e", NormalizeFieldName("a b[c]d.e"))
}
