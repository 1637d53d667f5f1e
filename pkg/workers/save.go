package workers

import (
	"context"
	"time"

	"github.com/merkleship/merkleship/pkg/escrow"
	"github.com/merkleship/merkleship/pkg/log"
	"github.com/merkleship/merkleship/pkg/repositories"
	"github.com/merkleship/merkleship/pkg/state"
)

type SaveStateWorker struct {
	repository repositories.Repository
	ledger     *state.Ledger
	escrow     *escrow.Ledger
	interval   time.Duration
}

type NewSaveStateWorkerOptions struct {
	Repository repositories.Repository
	Ledger     *state.Ledger
	Escrow     *escrow.Ledger
	Interval   time.Duration
}

// NewSaveStateWorker creates a new SaveStateWorker.
// The worker periodically flushes modified games and the escrow balances
// to the repository.
func NewSaveStateWorker(opts NewSaveStateWorkerOptions) *SaveStateWorker {
	return &SaveStateWorker{
		repository: opts.Repository,
		ledger:     opts.Ledger,
		escrow:     opts.Escrow,
		interval:   opts.Interval,
	}
}

func (w *SaveStateWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Flush(ctx)
			return
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush writes all modified games and the current balances snapshot.
func (w *SaveStateWorker) Flush(ctx context.Context) {
	for _, game := range w.ledger.FlushDirty() {
		if err := w.repository.SaveGame(ctx, game); err != nil {
			log.Error("Failed to save game %d: %v", game.ID, err)
		}
	}
	if err := w.repository.SaveBalances(ctx, w.escrow.Balances()); err != nil {
		log.Error("Failed to save balances: %v", err)
	}
}
