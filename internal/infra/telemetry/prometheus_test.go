package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"ragd/internal/domain"
)

func TestPrometheusMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)

	metrics.ObserveQuestion(domain.QuestionOutcomeAnswered, 120*time.Millisecond)
	metrics.ObserveFallback("invoke", domain.CodeToolInvocation)
	metrics.ObserveProviderCall("kb-main", 50*time.Millisecond, nil)
	metrics.ObserveProviderCall("kb-main", 50*time.Millisecond, errors.New("boom"))
	metrics.ObserveDiscovery("kb-main", nil)
	metrics.AddActiveConnections(1)
	metrics.AddActiveConnections(1)
	metrics.AddActiveConnections(-1)

	require.Equal(t, float64(1), testutil.ToFloat64(
		metrics.fallbacks.WithLabelValues("invoke", string(domain.CodeToolInvocation)),
	))
	require.Equal(t, float64(1), testutil.ToFloat64(
		metrics.discoveryRuns.WithLabelValues("kb-main", "success"),
	))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.activeConnections))

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	require.True(t, names["ragd_question_duration_seconds"])
	require.True(t, names["ragd_provider_call_duration_seconds"])
}
