package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordEntity(t *testing.T) {
	counter := entitiesTotal.With(prometheus.Labels{"kind": "guest", "outcome": "excluded"})
	before := testutil.ToFloat64(counter)

	RecordEntity("guest", "excluded")
	RecordEntity("guest", "excluded")

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRecordFetch(t *testing.T) {
	errors := fetchErrorsTotal.With(prometheus.Labels{"kind": "host"})
	before := testutil.ToFloat64(errors)

	RecordFetch("host", 150*time.Millisecond, false)
	assert.Equal(t, before, testutil.ToFloat64(errors))

	RecordFetch("host", 150*time.Millisecond, true)
	assert.Equal(t, before+1, testutil.ToFloat64(errors))
}

func TestUpdateLastCycle(t *testing.T) {
	finished := time.Unix(1700000000, 0)
	UpdateLastCycle(12, finished)

	assert.Equal(t, 12.0, testutil.ToFloat64(lastCycleEmitted))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(lastSuccessTimestamp))
}

func TestWebSocketGauge(t *testing.T) {
	before := testutil.ToFloat64(websocketConnectionsActive)

	RecordWebSocketConnection()
	assert.Equal(t, before+1, testutil.ToFloat64(websocketConnectionsActive))

	RecordWebSocketDisconnection()
	assert.Equal(t, before, testutil.ToFloat64(websocketConnectionsActive))
}
