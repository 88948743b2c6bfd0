// Package service answers the read-side questions over stored documents:
// the latest alerts and energy statistics per inverter.
package service

import (
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/config"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/store"
)

type Services struct {
	Store      *store.Store
	Errors     *ErrorService
	Statistics *StatisticsService
}

func New(st *store.Store, stats config.Stats) *Services {
	return &Services{
		Store:      st,
		Errors:     &ErrorService{store: st},
		Statistics: NewStatisticsService(st, stats.Units),
	}
}
