package observability

import (
	"strings"

	"github.com/smallbiznis/paramstore/internal/config"
)

// Config is the slice of process configuration the logger, tracer and
// meter providers need.
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
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "paramstore"
	}

	telemetry := cfg.Telemetry
	protocol := telemetry.OTLPProtocol
	if protocol != "http" && protocol != "http/protobuf" {
		protocol = "grpc"
	}
	ratio := telemetry.SamplingRatio
	if ratio < 0 || ratio > 1 {
		ratio = 0.1
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             orDefault(telemetry.LogLevel, "info"),
		LogFormat:            orDefault(telemetry.LogFormat, "json"),
		OtelEnabled:          telemetry.OTLPEnabled && telemetry.OTLPEndpoint != "",
		OtelExporterEndpoint: telemetry.OTLPEndpoint,
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug turns on development logging and SQL statement logging.
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

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
