package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservability_RecordJob(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := New("postcode-workers-test", reg)
	require.NoError(t, err)
	defer obs.Shutdown(context.Background())

	obs.RecordJob(context.Background(), "postcode-address-lookup", "completed", 42*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	var names []string
	for _, mf := range families {
		byName[mf.GetName()] = mf
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, ",")

	counter, ok := byName["jobs_processed_total"]
	require.True(t, ok, "families: %s", joined)
	require.Len(t, counter.GetMetric(), 1)
	assert.Equal(t, float64(1), counter.GetMetric()[0].GetCounter().GetValue())

	histogram, ok := byName["jobs_duration_milliseconds"]
	require.True(t, ok, "families: %s", joined)
	require.Len(t, histogram.GetMetric(), 1)
	assert.Equal(t, uint64(1), histogram.GetMetric()[0].GetHistogram().GetSampleCount())
	assert.Equal(t, float64(42), histogram.GetMetric()[0].GetHistogram().GetSampleSum())
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability
	obs.RecordJob(context.Background(), "x", "completed", time.Second)
	assert.NoError(t, obs.Shutdown(context.Background()))
}
