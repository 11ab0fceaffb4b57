package limitx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPolicies() map[Action]Policy {
	return map[Action]Policy{
		ActionLogin:         {MaxAttempts: 5, Window: 15 * time.Minute},
		ActionPasswordReset: {MaxAttempts: 3, Window: time.Hour},
		ActionRegistration:  {MaxAttempts: 2, Window: 50 * time.Millisecond, FailOpen: true},
	}
}

func TestCheckAndRecordDeniesOverBudget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l := New(NewMemoryStore(), testPolicies())

	for i := range 5 {
		res, err := l.CheckAndRecord(ctx, ActionLogin, "alice@example.com")
		require.NoError(t, err)
		require.True(t, res.Allowed, "attempt %d should be within budget", i+1)
	}

	res, err := l.CheckAndRecord(ctx, ActionLogin, "alice@example.com")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestWindowExpiryStartsFreshBudget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l := New(NewMemoryStore(), testPolicies())

	for range 3 {
		_, err := l.CheckAndRecord(ctx, ActionRegistration, "10.1.2.3")
		require.NoError(t, err)
	}
	res, err := l.CheckAndRecord(ctx, ActionRegistration, "10.1.2.3")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	time.Sleep(60 * time.Millisecond)

	res, err = l.CheckAndRecord(ctx, ActionRegistration, "10.1.2.3")
	require.NoError(t, err)
	require.True(t, res.Allowed, "fresh window after expiry")
}

func TestActionsTrackedIndependently(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l := New(NewMemoryStore(), testPolicies())

	for range 4 {
		_, err := l.CheckAndRecord(ctx, ActionPasswordReset, "alice@example.com")
		require.NoError(t, err)
	}

	// Reset budget exhausted, login budget untouched.
	res, err := l.CheckAndRecord(ctx, ActionPasswordReset, "alice@example.com")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = l.CheckAndRecord(ctx, ActionLogin, "alice@example.com")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestUnblockClearsAllActionsForIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l := New(NewMemoryStore(), testPolicies())

	for range 6 {
		_, err := l.CheckAndRecord(ctx, ActionLogin, "Alice@Example.com")
		require.NoError(t, err)
	}

	removed, err := l.Unblock(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	res, err := l.CheckAndRecord(ctx, ActionLogin, "alice@example.com")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestListBlockedReportsOnlyOverBudgetKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l := New(NewMemoryStore(), testPolicies())

	_, err := l.CheckAndRecord(ctx, ActionLogin, "bob@example.com")
	require.NoError(t, err)

	for range 6 {
		_, err := l.CheckAndRecord(ctx, ActionLogin, "alice@example.com")
		require.NoError(t, err)
	}

	blocked, err := l.ListBlocked(ctx)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	require.Equal(t, "login:alice@example.com", blocked[0].Key)
	require.Equal(t, 6, blocked[0].Count)
	require.Greater(t, blocked[0].Remaining, time.Duration(0))
}

func TestClearAllReturnsCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l := New(NewMemoryStore(), testPolicies())

	_, err := l.CheckAndRecord(ctx, ActionLogin, "alice@example.com")
	require.NoError(t, err)
	_, err = l.CheckAndRecord(ctx, ActionPasswordReset, "bob@example.com")
	require.NoError(t, err)

	count, err := l.ClearAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = l.ClearAll(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestConcurrentAttemptsNeverUndercount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	l := New(store, map[Action]Policy{ActionLogin: {MaxAttempts: 1000, Window: time.Minute}})

	const workers = 50
	const perWorker = 10

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				_, _ = l.CheckAndRecord(ctx, ActionLogin, "alice@example.com")
			}
		}()
	}
	wg.Wait()

	count, _, err := store.Incr(ctx, "login:alice@example.com", time.Minute)
	require.NoError(t, err)
	require.Equal(t, workers*perWorker+1, count)
}

func TestUnknownActionRejected(t *testing.T) {
	t.Parallel()

	l := New(NewMemoryStore(), testPolicies())
	_, err := l.CheckAndRecord(context.Background(), Action("bogus"), "x")
	require.ErrorIs(t, err, ErrUnknownAction)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}
func (failingStore) Entries(context.Context) ([]Entry, error) { return nil, errors.New("down") }
func (failingStore) DeleteIdentity(context.Context, string) (int, error) {
	return 0, errors.New("down")
}
func (failingStore) Clear(context.Context) (int, error) { return 0, errors.New("down") }

func TestStoreFailureRespectsPolicyCriticality(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l := New(failingStore{}, testPolicies())

	// Login is fail-closed.
	_, err := l.CheckAndRecord(ctx, ActionLogin, "alice@example.com")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	// Registration is fail-open.
	res, err := l.CheckAndRecord(ctx, ActionRegistration, "alice@example.com")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestNormalizeIdentity(t *testing.T) {
	t.Parallel()

	require.Equal(t, "alice@example.com", NormalizeIdentity("  Alice@Example.COM "))
	require.Equal(t, "10.0.0.1", NormalizeIdentity("::ffff:10.0.0.1"))
	require.Equal(t, "2001:db8::1", NormalizeIdentity("2001:0DB8:0000:0000:0000:0000:0000:0001"))
}
