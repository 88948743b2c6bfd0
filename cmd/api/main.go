package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	httpHandlers "github.com/ANIKETSHETTY47/solar-mail-ingest/internal/http"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/logging"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/repository"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/service"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(config.Logging())

	stats := config.StatsSettings()
	st, closeStore, err := repository.OpenStore(context.Background(), config.StoreSettings(), service.Designs(stats.EnergyUnit)...)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer closeStore()

	svcs := service.New(st, stats)
	app := fiber.New(fiber.Config{ErrorHandler: httpHandlers.ErrorHandler})

	httpHandlers.Register(app, svcs)

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Msg("api listening")
	log.Fatal().Err(app.Listen(addr)).Msg("server exit")
}
