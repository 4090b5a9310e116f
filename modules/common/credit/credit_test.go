package credit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promo-studio-server/modules/common/config"
)

type memoryStore struct {
	mu        sync.Mutex
	credits   map[string]int
	getErr    error
	setErr    error
	casMisses int // 처음 N 번의 CAS 를 실패시킴
	casCalls  int
}

func newMemoryStore(userID string, credits int) *memoryStore {
	return &memoryStore{credits: map[string]int{userID: credits}}
}

func (m *memoryStore) GetCredits(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.credits[userID], nil
}

func (m *memoryStore) CompareAndSetCredits(ctx context.Context, userID string, expected, next int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.casCalls++
	if m.casMisses > 0 {
		m.casMisses--
		return false, nil
	}
	if m.credits[userID] != expected {
		return false, nil
	}
	m.credits[userID] = next
	return true, nil
}

func (m *memoryStore) SetCredits(ctx context.Context, userID string, credits int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.credits[userID] = credits
	return nil
}

func (m *memoryStore) balance(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits[userID]
}

func TestReserve_CommitDebitsOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore("u1", 3)
	ledger := NewLedger(config.CreditModeReserve)

	r, err := ledger.Begin(ctx, store, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.balance("u1"), "credit is held as soon as the reservation succeeds")

	assert.Equal(t, 2, r.Commit(ctx))
	assert.Equal(t, 2, store.balance("u1"))

	r.Rollback(ctx)
	assert.Equal(t, 2, store.balance("u1"), "rollback after commit is a no-op")
}

func TestReserve_RollbackRefunds(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore("u1", 1)
	ledger := NewLedger(config.CreditModeReserve)

	r, err := ledger.Begin(ctx, store, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, store.balance("u1"))

	r.Rollback(ctx)
	assert.Equal(t, 1, store.balance("u1"))
}

func TestReserve_InsufficientCredits(t *testing.T) {
	store := newMemoryStore("u1", 0)
	_, err := NewLedger(config.CreditModeReserve).Begin(context.Background(), store, "u1")
	assert.ErrorIs(t, err, ErrInsufficient)
	assert.Equal(t, 0, store.casCalls)
}

func TestReserve_RetriesOnConflict(t *testing.T) {
	store := newMemoryStore("u1", 5)
	store.casMisses = 2

	r, err := NewLedger(config.CreditModeReserve).Begin(context.Background(), store, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, store.casCalls)
	assert.Equal(t, 4, r.Commit(context.Background()))
}

func TestReserve_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemoryStore("u1", 5)
	store.casMisses = maxAttempts

	_, err := NewLedger(config.CreditModeReserve).Begin(context.Background(), store, "u1")
	assert.ErrorIs(t, err, ErrContention)
	assert.Equal(t, 5, store.balance("u1"))
}

func TestReserve_ConcurrentRequestsNeverGoNegative(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore("u1", 3)
	ledger := NewLedger(config.CreditModeReserve)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := ledger.Begin(ctx, store, "u1")
			if err != nil {
				return
			}
			r.Commit(ctx)
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, store.balance("u1"), 0)
	assert.Equal(t, 3-succeeded, store.balance("u1"))
}

func TestBegin_FetchError(t *testing.T) {
	store := newMemoryStore("u1", 3)
	store.getErr = errors.New("db down")

	_, err := NewLedger(config.CreditModeReserve).Begin(context.Background(), store, "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficient)
}

func TestDeferred_DebitsOnCommitOnly(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore("u1", 2)
	ledger := NewLedger(config.CreditModeDeferred)

	r, err := ledger.Begin(ctx, store, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.balance("u1"))

	assert.Equal(t, 1, r.Commit(ctx))
	assert.Equal(t, 1, store.balance("u1"))
}

func TestDeferred_RollbackAndDebitFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore("u1", 2)
	ledger := NewLedger(config.CreditModeDeferred)

	r, err := ledger.Begin(ctx, store, "u1")
	require.NoError(t, err)
	r.Rollback(ctx)
	assert.Equal(t, 2, store.balance("u1"))

	store.setErr = errors.New("update failed")
	r, err = ledger.Begin(ctx, store, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Commit(ctx), "reported balance is still before-1")
	assert.Equal(t, 2, store.balance("u1"))
}

func TestNewLedger_DefaultsToReserve(t *testing.T) {
	assert.Equal(t, config.CreditModeReserve, NewLedger("").Mode())
	assert.Equal(t, config.CreditModeDeferred, NewLedger(config.CreditModeDeferred).Mode())
}
