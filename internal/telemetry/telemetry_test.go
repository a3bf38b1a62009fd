package telemetry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"huijin-agent/internal/config"
)

func TestParseHeaders(t *testing.T) {
	require.Empty(t, parseHeaders(""))
	require.Equal(t, map[string]string{"api-key": "abc", "x-team": "huijin"}, parseHeaders("api-key=abc, x-team = huijin,broken"))
}

func TestSetup_Disabled(t *testing.T) {
	tel, err := Setup(context.Background(), config.OTelConfig{ServiceName: "huijin-gateway"})
	require.NoError(t, err)
	require.Nil(t, tel)
	require.NoError(t, tel.Shutdown(context.Background()))
	require.Nil(t, tel.LoggerProvider())
}

func TestSetup_MetricsFile(t *testing.T) {
	prev := otel.GetMeterProvider()
	defer otel.SetMeterProvider(prev)

	path := filepath.Join(t.TempDir(), "metrics.log")
	tel, err := Setup(context.Background(), config.OTelConfig{
		ServiceName:    "huijin-gateway",
		ServiceVersion: "test",
		MetricsFile:    path,
	})
	require.NoError(t, err)
	require.NotNil(t, tel)
	require.NotNil(t, tel.meterProvider)
	require.Nil(t, tel.tracerProvider)
	require.Nil(t, tel.LoggerProvider(), "metrics-only setup must not enable the log bridge")

	counter, err := otel.Meter("test").Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, tel.Shutdown(context.Background()))
	require.FileExists(t, path)
}
