package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/cloud"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/ingest"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/logging"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/repository"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/service"
)

// replay runs archived raw messages through the pipeline again, e.g. after
// an extraction fix.
func main() {
	prefix := flag.String("prefix", cloud.ArchivePrefix, "archive key prefix to replay, e.g. raw/2021/01/")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(config.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cc := config.CloudSettings()
	archive, err := cloud.NewS3Archive(ctx, cc.Region, cc.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("s3 init failed")
	}

	st, closeStore, err := repository.OpenStore(ctx, config.StoreSettings(), service.Designs(config.StatsSettings().EnergyUnit)...)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer closeStore()

	pipeline, err := ingest.NewPipeline(st, config.IngestSettings(), nil, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline setup failed")
	}

	keys, err := archive.List(ctx, *prefix)
	if err != nil {
		log.Fatal().Err(err).Msg("list archive failed")
	}

	var failed int
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		raw, err := archive.Download(ctx, key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("download failed")
			failed++
			continue
		}
		uid, err := archive.UIDFromMetadata(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("uid unknown")
		}
		if out := pipeline.Process(ctx, ingest.FetchedMessage{UID: uid, Raw: raw}); !out.Complete() {
			failed++
		}
	}
	log.Info().Int("messages", len(keys)).Int("failed", failed).Msg("replay done")
}
