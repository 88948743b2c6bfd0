package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/cloud"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/ingest"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/logging"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/mailbox"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/notify"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/repository"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/service"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(config.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := repository.OpenStore(ctx, config.StoreSettings(), service.Designs(config.StatsSettings().EnergyUnit)...)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer closeStore()

	var (
		archiver  ingest.Archiver
		notifiers notify.Multi
	)
	if broker := config.MQTTBroker(); broker != "" {
		pub, err := notify.NewMQTTPublisher(config.MQTTSettings())
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt connect")
		}
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}
	if cc := config.CloudSettings(); cc.Enabled {
		archive, err := cloud.NewS3Archive(ctx, cc.Region, cc.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("s3 init failed")
		}
		archiver = archive
		if cc.TopicArn != "" {
			sns, err := cloud.NewSNSNotifier(ctx, cc.Region, cc.TopicArn)
			if err != nil {
				log.Fatal().Err(err).Msg("sns init failed")
			}
			notifiers = append(notifiers, sns)
		}
		log.Info().Str("bucket", cc.Bucket).Msg("cloud services enabled")
	}

	var notifier notify.Notifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}

	ingestCfg := config.IngestSettings()
	pipeline, err := ingest.NewPipeline(st, ingestCfg, archiver, notifier)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline setup failed")
	}

	watcher := mailbox.New(config.MailboxSettings())
	scheduler := ingest.NewScheduler(ctx, watcher, pipeline, ingestCfg)
	watcher.OnReady = scheduler.RequestScan
	watcher.OnNewMail = scheduler.RequestScan

	log.Info().Msg("ingestor running; Ctrl+C to stop")
	watcher.Run(ctx)
}
