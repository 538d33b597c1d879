package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.MeterProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledNeedsAnOutput(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "driftwar"})
	assert.Error(t, err)
}

func TestNew_ManualReaderSeesCombat(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := New(Config{Enabled: true, ServiceName: "driftwar-test"}, reader)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	m, err := combat.NewMetrics(p.MeterProvider())
	require.NoError(t, err)
	ts := combat.NewTestSim(
		combat.WithSeed(21),
		combat.WithRNGKind(combat.RNGLegacy),
		combat.WithSimMetrics(m),
		combat.WithProbes(50_000_000),
		combat.WithDrifters(2_000_000),
	)
	_, ok := ts.RunBattle(20000)
	require.True(t, ok, "no battle finished")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["driftwar.combat.battles_started"])
	assert.True(t, names["driftwar.combat.battles_ended"])

	v, ok := rm.Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "driftwar-test", v.AsString())
}

func TestNew_StdoutExporterWritesOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Enabled: true, ServiceName: "driftwar", Interval: time.Hour, Writer: &buf})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	m, err := combat.NewMetrics(p.MeterProvider())
	require.NoError(t, err)
	ts := combat.NewTestSim(
		combat.WithSeed(21),
		combat.WithRNGKind(combat.RNGLegacy),
		combat.WithSimMetrics(m),
		combat.WithProbes(50_000_000),
		combat.WithDrifters(2_000_000),
	)
	_, ok := ts.RunBattle(20000)
	require.True(t, ok, "no battle finished")

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "driftwar.combat.battles_started")
}

func TestStart_WritesFileAndInstallsGlobal(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	path := filepath.Join(t.TempDir(), "metrics.json")
	p, err := Start("driftwar", time.Hour, path, nil)
	require.NoError(t, err)

	// A nil provider falls back to the global one Start installed.
	m, err := combat.NewMetrics(nil)
	require.NoError(t, err)
	ts := combat.NewTestSim(
		combat.WithSeed(21),
		combat.WithRNGKind(combat.RNGLegacy),
		combat.WithSimMetrics(m),
		combat.WithProbes(50_000_000),
		combat.WithDrifters(2_000_000),
	)
	_, ok := ts.RunBattle(20000)
	require.True(t, ok, "no battle finished")
	require.NoError(t, p.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "driftwar.combat.battles_ended")
}
