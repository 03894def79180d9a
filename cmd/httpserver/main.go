package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/document-registry/cmd/flags"
	"github.com/ruteri/document-registry/common"
	"github.com/ruteri/document-registry/httpserver"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/ruteri/document-registry/ledger"
	"github.com/ruteri/document-registry/metrics"
	"github.com/ruteri/document-registry/notify"
	"github.com/ruteri/document-registry/storage"
	"github.com/urfave/cli/v2"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.DatabaseFlag,
	flags.SnapshotBackendsFlag,
	flags.KafkaBrokersFlag,
	flags.KafkaTopicFlag,
	flags.RedisURLFlag,
	flags.RedisChannelFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "registry-server",
		Usage:  "Serve the document registry API",
		Flags:  serverFlags,
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	db, err := ledger.OpenDatabase(cCtx.String(flags.DatabaseFlag.Name), logger)
	if err != nil {
		logger.Error("Failed to open database", "err", err)
		return err
	}
	defer db.Close()

	metricsSrv, err := metrics.New(common.PackageName, cCtx.String(flags.MetricsAddrFlag.Name))
	if err != nil {
		logger.Error("Failed to create metrics server", "err", err)
		return err
	}
	ledgerMetrics := metrics.NewLedgerMetrics(metricsSrv.Namespace(), metricsSrv.Registerer())

	publisher, closePublishers, err := setupPublishers(cCtx, logger)
	if err != nil {
		logger.Error("Failed to set up event publishers", "err", err)
		return err
	}
	defer closePublishers()

	l, err := ledger.New(db,
		ledger.WithLogger(logger),
		ledger.WithObserver(ledgerMetrics),
		ledger.WithPublisher(publisher),
	)
	if err != nil {
		logger.Error("Failed to open ledger", "err", err)
		return err
	}
	total, err := l.TotalCount()
	if err != nil {
		return err
	}
	ledgerMetrics.ObserveState(l.Height(), total)

	archive, err := setupArchive(cCtx, logger)
	if err != nil {
		logger.Error("Failed to set up snapshot backends", "err", err)
		return err
	}

	cfg := flags.ConfigureServer(cCtx, logger)
	server, err := httpserver.New(cfg, httpserver.NewHandler(l, archive, logger), metricsSrv)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting server", "height", l.Height(), "totalDocuments", total)
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := l.Close(ctx); err != nil {
		logger.Error("Events left unpublished", "err", err)
	}
	logger.Info("Server shutdown complete")
	return nil
}

// setupPublishers builds the configured event publishers. The returned
// publisher is nil when none are configured.
func setupPublishers(cCtx *cli.Context, logger *slog.Logger) (interfaces.EventPublisher, func(), error) {
	var publishers []interfaces.EventPublisher
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if brokers := cCtx.StringSlice(flags.KafkaBrokersFlag.Name); len(brokers) > 0 {
		kafkaPub, err := notify.NewKafkaPublisher(brokers, cCtx.String(flags.KafkaTopicFlag.Name), logger)
		if err != nil {
			return nil, func() {}, err
		}
		closers = append(closers, kafkaPub.Close)

		ctx, cancel := context.WithTimeout(cCtx.Context, 10*time.Second)
		defer cancel()
		if err := kafkaPub.Ping(ctx); err != nil {
			logger.Warn("Kafka brokers not reachable yet", "err", err)
		}
		publishers = append(publishers, kafkaPub)
	}

	if url := cCtx.String(flags.RedisURLFlag.Name); url != "" {
		ctx, cancel := context.WithTimeout(cCtx.Context, 10*time.Second)
		defer cancel()
		client, err := notify.NewRedisClient(ctx, url)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		redisPub := notify.NewRedisPublisher(client, cCtx.String(flags.RedisChannelFlag.Name), logger)
		closers = append(closers, func() { _ = redisPub.Close() })
		publishers = append(publishers, redisPub)
	}

	multi := notify.NewMultiPublisher(publishers...)
	if multi.Len() == 0 {
		return nil, closeAll, nil
	}
	logger.Info("Publishing committed events", "publisher", multi.Name())
	return multi, closeAll, nil
}

// setupArchive builds the snapshot archive from the configured storage
// URIs, or returns nil when none are configured.
func setupArchive(cCtx *cli.Context, logger *slog.Logger) (interfaces.StorageBackend, error) {
	uris := cCtx.StringSlice(flags.SnapshotBackendsFlag.Name)
	if len(uris) == 0 {
		return nil, nil
	}

	locations, err := storage.ParseLocations(uris)
	if err != nil {
		return nil, err
	}
	return storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
}
