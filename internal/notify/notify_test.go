package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/domain"
	"github.com/ANIKETSHETTY47/solar-mail-ingest/internal/notify"
)

type countingNotifier struct {
	calls int
	err   error
}

func (n *countingNotifier) NotifyAlert(context.Context, domain.AlertRecord) error {
	n.calls++
	return n.err
}

func TestMulti_SendsToAllAndJoinsErrors(t *testing.T) {
	errA, errB := errors.New("a down"), errors.New("b down")
	a, b, c := &countingNotifier{err: errA}, &countingNotifier{}, &countingNotifier{err: errB}

	err := notify.Multi{a, b, c}.NotifyAlert(context.Background(), domain.AlertRecord{Reason: "x"})
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Errorf("calls = %d %d %d", a.calls, b.calls, c.calls)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("err = %v", err)
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := (notify.Multi{}).NotifyAlert(context.Background(), domain.AlertRecord{}); err != nil {
		t.Errorf("err = %v", err)
	}
}
