// Command cachefs-server serves a sector-chained game asset cache over the
// legacy client update protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openscape/cachefs/pkg/bootstrap"
	"github.com/openscape/cachefs/pkg/cache"
	"github.com/openscape/cachefs/pkg/checksum"
	"github.com/openscape/cachefs/pkg/config"
	"github.com/openscape/cachefs/pkg/filestore"
	"github.com/openscape/cachefs/pkg/metrics"
	"github.com/openscape/cachefs/pkg/updateserver"
)

const metricsLogInterval = 60 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	configPath := flag.String("config", "./cachefs.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("cachefs-server exited")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Bootstrap != nil {
		log.Info().Str("bucket", cfg.Bootstrap.Bucket).Msg("bootstrap: checking for missing cache files")
		if err := bootstrap.Run(ctx, cfg.StoreRoot, *cfg.Bootstrap); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	store, err := filestore.Open(cfg.StoreRoot)
	if err != nil {
		return fmt.Errorf("opening file store at %q: %w", cfg.StoreRoot, err)
	}
	defer store.Close()

	locked := filestore.NewLocked(store)

	counters := metrics.New()
	stopMetrics := make(chan struct{})
	go counters.LogPeriodically(metricsLogInterval, stopMetrics)
	defer close(stopMetrics)

	archiveCache, err := cache.NewWithConfig(locked, counters, 1e7, cfg.CacheCapacity, 64)
	if err != nil {
		return fmt.Errorf("building archive cache: %w", err)
	}
	defer archiveCache.Close()

	typeCount := store.GetTypeCount()
	table, err := checksum.Build(locked, typeCount)
	if err != nil {
		return fmt.Errorf("building checksum table: %w", err)
	}
	log.Info().Int("type_count", typeCount).Msg("checksum table built")

	srv, err := updateserver.New(archiveCache, table, cfg.ClientVersions, counters)
	if err != nil {
		return fmt.Errorf("building update server: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", cfg.ListenAddr, err)
	}
	log.Info().Str("listen_addr", cfg.ListenAddr).Msg("update server listening")

	return srv.Serve(ctx, ln)
}
