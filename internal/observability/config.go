package observability

import (
	"strings"

	"github.com/smallbiznis/invoiceflow/internal/config"
)

const defaultServiceName = "invoiceflow"

// Config is the slice of application config the logger, tracer and meters read.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	MetricsPath string
}

func LoadConfig(cfg config.Config) Config {
	tel := cfg.Telemetry

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	protocol := strings.ToLower(strings.TrimSpace(tel.OTLPProtocol))
	if protocol != "http" {
		protocol = "grpc"
	}
	ratio := tel.SamplingRatio
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             strings.ToLower(strings.TrimSpace(tel.LogLevel)),
		LogFormat:            strings.ToLower(strings.TrimSpace(tel.LogFormat)),
		OtelEnabled:          tel.OTLPEnabled && strings.TrimSpace(tel.OTLPEndpoint) != "",
		OtelExporterEndpoint: strings.TrimSpace(tel.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
		MetricsPath:          tel.MetricsPath,
	}
}

// Debug turns on console logs and stack traces; it never changes what clients see.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
