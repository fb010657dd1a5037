package goToken

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricIssueSuccess)

	assert.Zero(t, m.Value(MetricIssueSuccess))
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricIssueSuccess)
	m.Observe(MetricIssueLatency, time.Millisecond)

	assert.False(t, m.Enabled(), "nil metrics must report disabled")
	assert.False(t, m.LatencyEnabled(), "nil metrics must report disabled")
	assert.Empty(t, m.Snapshot().Counters)
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricValidateSuccess)
	m.Inc(MetricValidateSuccess)
	m.Inc(MetricValidateSuccess)

	assert.Equal(t, uint64(3), m.Value(MetricValidateSuccess))
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricIssueSuccess)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(goroutines*perG), m.Value(MetricIssueSuccess))
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		3 * time.Millisecond,
		8 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		900 * time.Millisecond,
	}
	for _, d := range observations {
		m.Observe(MetricValidateLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricValidateLatency]
	require.Len(t, buckets, 8)
	for i, v := range buckets {
		assert.Equal(t, uint64(1), v, "bucket %d", i)
	}
}

func TestMetricsObserveIgnoresCounterIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Observe(MetricIssueSuccess, time.Millisecond)

	snap := m.Snapshot()
	assert.NotContains(t, snap.Histograms, MetricIssueSuccess, "counter id must not produce a histogram")
	assert.Zero(t, snap.Counters[MetricIssueSuccess])
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricIssueSuccess)
	m.Inc(MetricIssueFailure)
	m.Inc(MetricIssueFailure)
	m.Observe(MetricIssueLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	assert.Equal(t, uint64(1), snap.Counters[MetricIssueSuccess])
	assert.Equal(t, uint64(2), snap.Counters[MetricIssueFailure])
	assert.NotContains(t, snap.Counters, MetricIssueLatency, "histogram ids must not appear among counters")
	require.Len(t, snap.Histograms[MetricIssueLatency], 8)
	assert.Equal(t, uint64(1), snap.Histograms[MetricIssueLatency][0])
}

func TestEngineRecordsOutcomeCounters(t *testing.T) {
	env := newTestEnv(t, acmeConfig(), func(b *Builder) {
		b.WithLatencyHistograms(true)
	})
	ctx := context.Background()

	token := env.issue(t, "", "acme")
	_, err := env.engine.Validate(ctx, token, "", "acme")
	require.NoError(t, err)
	_, _ = env.engine.Validate(ctx, "garbage", "", "acme")
	_, _ = env.engine.Validate(ctx, token, "", "nobody")
	_, _ = env.engine.NewToken("Missing", "acme").Sign(ctx)

	snap := env.engine.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricIssueSuccess:      1,
		MetricIssueFailure:      1,
		MetricValidateSuccess:   1,
		MetricValidateFailure:   2,
		MetricValidateMalformed: 1,
		MetricResolveRejected:   2,
	}
	for id, v := range want {
		assert.Equal(t, v, snap.Counters[id], "metric %d", id)
	}

	var observed uint64
	for _, b := range snap.Histograms[MetricValidateLatency] {
		observed += b
	}
	assert.Equal(t, uint64(3), observed)
}
