package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobtrail/jobtrail-worker/internal/models"
	"github.com/jobtrail/jobtrail-worker/internal/service"
)

type mockAccountLister struct {
	accounts []models.MailAccount
	err      error
}

func (m *mockAccountLister) ListActive(ctx context.Context) ([]models.MailAccount, error) {
	return m.accounts, m.err
}

type mockSyncer struct {
	mu      sync.Mutex
	calls   map[string]int
	block   chan struct{}
	syncErr error
}

func newMockSyncer() *mockSyncer {
	return &mockSyncer{calls: make(map[string]int)}
}

func (m *mockSyncer) RunSync(ctx context.Context, accountID string) (*service.SyncResult, error) {
	m.mu.Lock()
	m.calls[accountID]++
	m.mu.Unlock()
	if m.block != nil {
		<-m.block
	}
	return &service.SyncResult{Processed: 1, Created: 1}, m.syncErr
}

func (m *mockSyncer) callCount(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[accountID]
}

func TestWatcher_SyncsActiveAccountsOnStart(t *testing.T) {
	lister := &mockAccountLister{
		accounts: []models.MailAccount{
			{ID: "acc-1", IsActive: true},
			{ID: "acc-2", IsActive: true},
		},
	}
	syncer := newMockSyncer()

	w := New(lister, syncer, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	// First poll happens immediately; give the goroutines a moment.
	deadline := time.After(2 * time.Second)
	for syncer.callCount("acc-1") == 0 || syncer.callCount("acc-2") == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for initial sync pass")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled on shutdown, got %v", err)
	}
}

func TestWatcher_SkipsAccountAlreadySyncing(t *testing.T) {
	lister := &mockAccountLister{
		accounts: []models.MailAccount{{ID: "acc-1", IsActive: true}},
	}
	syncer := newMockSyncer()
	syncer.block = make(chan struct{})

	w := New(lister, syncer, time.Hour, zerolog.Nop())

	ctx := context.Background()
	w.poll(ctx)

	// Wait for the first sync to be in flight.
	deadline := time.After(2 * time.Second)
	for syncer.callCount("acc-1") == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for first sync")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// A second poll while the first sync is blocked must not start another.
	w.poll(ctx)
	time.Sleep(50 * time.Millisecond)

	if got := syncer.callCount("acc-1"); got != 1 {
		t.Errorf("expected 1 in-flight sync, got %d", got)
	}

	close(syncer.block)
	w.wg.Wait()

	// Once released, the account can sync again.
	w.poll(ctx)
	w.wg.Wait()
	if got := syncer.callCount("acc-1"); got != 2 {
		t.Errorf("expected sync to run again after release, got %d", got)
	}
}

func TestWatcher_ListFailureDoesNotCrash(t *testing.T) {
	lister := &mockAccountLister{err: errors.New("db down")}
	syncer := newMockSyncer()

	w := New(lister, syncer, time.Hour, zerolog.Nop())
	w.poll(context.Background())

	if len(syncer.calls) != 0 {
		t.Errorf("expected no syncs when listing fails, got %v", syncer.calls)
	}
}
