package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/document-registry/api"
	"github.com/ruteri/document-registry/common"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
		StreamKeepAlive:          15 * time.Second,
		StreamWriteTimeout:       10 * time.Second,
	}
}

func envVars(name string) []string {
	return []string{"DOCREG_" + name}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: envVars("LISTEN_ADDR"),
}

var DatabaseFlag = &cli.StringFlag{
	Name:    "db",
	Value:   "memory://",
	Usage:   "ledger database: memory:// or leveldb:///path/to/dir",
	EnvVars: envVars("DB"),
}

var SnapshotBackendsFlag = &cli.StringSliceFlag{
	Name:    "snapshot-backends",
	Usage:   "storage URIs for snapshot archives (file://, s3://, ipfs://, vault://)",
	EnvVars: envVars("SNAPSHOT_BACKENDS"),
}

var KafkaBrokersFlag = &cli.StringSliceFlag{
	Name:    "kafka-brokers",
	Usage:   "Kafka seed brokers to publish committed events to",
	EnvVars: envVars("KAFKA_BROKERS"),
}

var KafkaTopicFlag = &cli.StringFlag{
	Name:    "kafka-topic",
	Value:   "document-registry-events",
	Usage:   "Kafka topic for committed events",
	EnvVars: envVars("KAFKA_TOPIC"),
}

var RedisURLFlag = &cli.StringFlag{
	Name:    "redis-url",
	Usage:   "Redis URL to publish committed events to, e.g. redis://localhost:6379/0",
	EnvVars: envVars("REDIS_URL"),
}

var RedisChannelFlag = &cli.StringFlag{
	Name:    "redis-channel",
	Value:   "docregistry",
	Usage:   "Redis channel prefix; events go to <prefix>:<kind>",
	EnvVars: envVars("REDIS_CHANNEL"),
}

var ServerURLFlag = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:8080",
	Usage:   "registry API base URL",
	EnvVars: envVars("SERVER"),
}

var KeyFileFlag = &cli.StringFlag{
	Name:    "key-file",
	Usage:   "file holding the hex-encoded secp256k1 private key used to sign requests",
	EnvVars: envVars("KEY_FILE"),
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: envVars("LOG_JSON"),
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: envVars("LOG_DEBUG"),
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:    "drain-seconds",
	Value:   45,
	Usage:   "seconds to stay not-ready before shutting down",
	EnvVars: envVars("DRAIN_SECONDS"),
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: envVars("METRICS_ADDR"),
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var CommonFlags = append([]cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}, LogFlags...)
