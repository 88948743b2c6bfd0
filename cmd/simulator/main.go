package main

import (
	"flag"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/logging"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/mailbox"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/sample"
)

func main() {
	days := flag.Int("days", 1, "number of daily exports to send, ending yesterday")
	alarms := flag.Int("alarms", 1, "number of alarm mails to send")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(config.Logging())

	units := config.StatsSettings().Units
	today := time.Now().UTC().Truncate(24 * time.Hour)

	var mails [][]byte
	for d := *days; d > 0; d-- {
		day := today.AddDate(0, 0, -d)
		raw, err := sample.TelemetryMail(day, sample.CSV(day, readings(day, units)))
		if err != nil {
			log.Fatal().Err(err).Msg("build export mail")
		}
		mails = append(mails, raw)
	}
	for i := 0; i < *alarms; i++ {
		raw, err := sample.AlarmMail(time.Now().Add(-time.Duration(i)*time.Hour), "Fehlercode 5: Netzspannung zu hoch")
		if err != nil {
			log.Fatal().Err(err).Msg("build alarm mail")
		}
		mails = append(mails, raw)
	}

	if err := mailbox.Append(config.MailboxSettings(), mails...); err != nil {
		log.Fatal().Err(err).Msg("append failed")
	}
	log.Info().Int("mails", len(mails)).Msg("simulation done")
}

// readings produces a daylight curve every 15 minutes for each unit.
func readings(day time.Time, units []string) []sample.Reading {
	var out []sample.Reading
	for m := 6 * 60; m <= 20*60; m += 15 {
		at := day.Add(time.Duration(m) * time.Minute)
		sun := math.Sin(math.Pi * float64(m-6*60) / float64(14*60))
		for i, u := range units {
			power := math.Round(sun * (4000 + rand.Float64()*500))
			out = append(out, sample.Reading{
				Time:    at,
				Address: i + 1,
				Name:    u,
				Serial:  "90312" + u,
				PowerW:  power,
				Energy:  math.Round(power*0.25) / 1000,
			})
		}
	}
	return out
}
