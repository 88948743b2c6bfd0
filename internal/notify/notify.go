// Package notify fans stored alerts out to external channels.
package notify

import (
	"context"
	"errors"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
)

// Notifier announces a stored alert.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert domain.AlertRecord) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyAlert(ctx context.Context, alert domain.AlertRecord) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
