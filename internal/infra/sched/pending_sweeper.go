package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/usecase"
	"health-insurance-portal/internal/infra/metrics"
	"health-insurance-portal/internal/infra/worker"
)

// SweepReport counts what one pass did with each stale row.
type SweepReport struct {
	Scanned int `json:"scanned"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
	Errors  int `json:"errors"`
}

// PendingSweeper re-verifies transactions that stayed pending past a cutoff,
// for when a callback never arrived. A row the gateway still reports as
// pending stays pending; the sweeper never fails a row on age alone.
type PendingSweeper struct {
	lister    usecase.PendingLister
	verifier  usecase.Reverifier
	olderThan time.Duration
	batch     int
	workers   int
	log       *zerolog.Logger
}

func NewPendingSweeper(lister usecase.PendingLister, verifier usecase.Reverifier, olderThan time.Duration, batch, workers int, logger *zerolog.Logger) *PendingSweeper {
	if olderThan <= 0 {
		olderThan = time.Hour
	}
	if batch <= 0 {
		batch = 100
	}
	if workers <= 0 {
		workers = 4
	}
	l := logger.With().Str("component", "pending_sweeper").Logger()
	return &PendingSweeper{lister: lister, verifier: verifier, olderThan: olderThan, batch: batch, workers: workers, log: &l}
}

// RunOnce sweeps one batch and returns when every row has been handled.
func (s *PendingSweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	pending, err := s.lister.ListStalePending(ctx, s.olderThan, s.batch)
	if err != nil {
		return rep, err
	}
	rep.Scanned = len(pending)
	if len(pending) == 0 {
		return rep, nil
	}

	var mu sync.Mutex
	record := func(result string) {
		metrics.IncSweepItem(result)
		mu.Lock()
		defer mu.Unlock()
		switch result {
		case "success":
			rep.Success++
		case "failed":
			rep.Failed++
		case "pending":
			rep.Pending++
		default:
			rep.Errors++
		}
	}

	pool := worker.NewPool(s.workers, s.log)
	pool.Start(ctx)
	for _, t := range pending {
		ref := t.Reference
		err := pool.Submit(ctx, func(ctx context.Context) error {
			got, err := s.verifier.Reverify(ctx, ref)
			if err != nil {
				record("error")
				return fmt.Errorf("reverify %s: %w", ref, err)
			}
			switch got.Status {
			case model.TransactionStatusSuccess:
				record("success")
			case model.TransactionStatusFailed:
				record("failed")
			default:
				record("pending")
			}
			return nil
		})
		if err != nil {
			pool.Close()
			return rep, err
		}
	}
	pool.Close()

	s.log.Info().
		Int("scanned", rep.Scanned).
		Int("success", rep.Success).
		Int("failed", rep.Failed).
		Int("pending", rep.Pending).
		Int("errors", rep.Errors).
		Msg("pending sweep finished")
	return rep, ctx.Err()
}

// Start repeats RunOnce every interval until ctx is cancelled.
func (s *PendingSweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("pending sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
