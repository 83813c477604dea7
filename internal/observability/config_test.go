package observability

import (
	"testing"

	"github.com/smallbiznis/invoiceflow/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigNormalizesTelemetry(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:  " 1.2.0 ",
		Environment: "production",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "WARN",
			OTLPEnabled:   true,
			OTLPEndpoint:  "collector:4317",
			OTLPProtocol:  "carrier-pigeon",
			SamplingRatio: 4,
			MetricsPath:   "/metrics",
		},
	})

	assert.Equal(t, "invoiceflow", cfg.ServiceName)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestOtelNeedsEndpoint(t *testing.T) {
	cfg := LoadConfig(config.Config{Telemetry: config.TelemetryConfig{OTLPEnabled: true}})

	assert.False(t, cfg.OtelEnabled)
}

func TestDebugFollowsLevelAndEnvironment(t *testing.T) {
	assert.True(t, Config{LogLevel: "debug", Environment: "production"}.Debug())
	assert.True(t, Config{Environment: "Local"}.Debug())
	assert.False(t, Config{Environment: "staging"}.Debug())
}
