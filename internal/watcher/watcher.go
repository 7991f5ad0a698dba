package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobtrail/jobtrail-worker/internal/models"
	"github.com/jobtrail/jobtrail-worker/internal/service"
)

// AccountLister provides the set of accounts eligible for syncing.
type AccountLister interface {
	ListActive(ctx context.Context) ([]models.MailAccount, error)
}

// Syncer runs one sync pass for a single account.
type Syncer interface {
	RunSync(ctx context.Context, accountID string) (*service.SyncResult, error)
}

// Watcher polls active accounts and runs a sync pass for each on a fixed
// interval. At most one sync per account runs at a time; a tick that finds an
// account still syncing skips it.
type Watcher struct {
	accounts     AccountLister
	syncer       Syncer
	pollInterval time.Duration
	log          zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

func New(accounts AccountLister, syncer Syncer, pollInterval time.Duration, log zerolog.Logger) *Watcher {
	return &Watcher{
		accounts:     accounts,
		syncer:       syncer,
		pollInterval: pollInterval,
		log:          log,
		inFlight:     make(map[string]struct{}),
	}
}

// Start runs the polling loop until the context is cancelled, then waits for
// in-flight syncs to finish.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info().Dur("poll_interval", w.pollInterval).Msg("starting account watcher")

	// First pass immediately so a restart does not wait a full interval.
	w.poll(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("watcher shutting down")
			w.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	accounts, err := w.accounts.ListActive(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to list active accounts")
		return
	}

	for _, account := range accounts {
		if !w.tryAcquire(account.ID) {
			w.log.Debug().Str("account_id", account.ID).Msg("sync already in flight, skipping")
			continue
		}

		w.wg.Add(1)
		go func(accountID string) {
			defer w.wg.Done()
			defer w.release(accountID)

			result, err := w.syncer.RunSync(ctx, accountID)
			if err != nil {
				w.log.Error().Str("account_id", accountID).Err(err).Msg("sync failed")
				return
			}
			if result.Processed > 0 {
				w.log.Info().
					Str("account_id", accountID).
					Int("processed", result.Processed).
					Int("created", result.Created).
					Msg("sync pass complete")
			}
		}(account.ID)
	}
}

func (w *Watcher) tryAcquire(accountID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inFlight[accountID]; ok {
		return false
	}
	w.inFlight[accountID] = struct{}{}
	return true
}

func (w *Watcher) release(accountID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, accountID)
}
