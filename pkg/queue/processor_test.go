package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/queue"
)

type dispatchFunc func(ctx context.Context, notificationID, recipientID string, payload delivery.Payload) delivery.DispatchResult

func (f dispatchFunc) Dispatch(ctx context.Context, n, r string, p delivery.Payload) delivery.DispatchResult {
	return f(ctx, n, r, p)
}

func succeeded() delivery.DispatchResult {
	return delivery.DispatchResult{
		Email: delivery.ChannelResult{Attempted: true, Success: true, MessageID: "m1"},
		SMS:   delivery.ChannelResult{Error: delivery.NotAttempted},
		Push:  delivery.ChannelResult{Error: delivery.NotAttempted},
	}
}

func allFailed() delivery.DispatchResult {
	return delivery.DispatchResult{
		Email: delivery.ChannelResult{Attempted: true, Error: "smtp down"},
		SMS:   delivery.ChannelResult{Error: delivery.NotAttempted},
		Push:  delivery.ChannelResult{Attempted: true, Error: "fcm down"},
	}
}

var tickTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func seedEntry(t *testing.T, store *queue.MemoryStorage, attempts, maxAttempts int, scheduledFor time.Time) uuid.UUID {
	t.Helper()
	e := &queue.Entry{
		ID:             uuid.New(),
		NotificationID: "n-" + uuid.NewString()[:8],
		RecipientID:    "u1",
		Payload:        delivery.Payload{Title: "t", Message: "m", Type: "info"},
		Status:         queue.StatusPending,
		Attempts:       attempts,
		MaxAttempts:    maxAttempts,
		ScheduledFor:   scheduledFor,
		CreatedAt:      scheduledFor,
		UpdatedAt:      scheduledFor,
	}
	require.NoError(t, store.CreateEntry(context.Background(), e))
	return e.ID
}

func newProcessor(t *testing.T, store queue.ProcessorRepository, d queue.Dispatcher, opts ...queue.ProcessorOption) *queue.Processor {
	t.Helper()
	opts = append([]queue.ProcessorOption{queue.WithProcessorClock(func() time.Time { return tickTime })}, opts...)
	p, err := queue.NewProcessor(store, d, opts...)
	require.NoError(t, err)
	return p
}

func TestNewProcessor_Validation(t *testing.T) {
	t.Parallel()

	_, err := queue.NewProcessor(nil, dispatchFunc(nil))
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)

	_, err = queue.NewProcessor(queue.NewMemoryStorage(), nil)
	assert.ErrorIs(t, err, queue.ErrDispatcherNil)
}

func TestProcessor_FirstFailureSchedulesRetry(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	id := seedEntry(t, store, 0, 3, tickTime.Add(-time.Minute))
	p := newProcessor(t, store, dispatchFunc(func(context.Context, string, string, delivery.Payload) delivery.DispatchResult {
		return allFailed()
	}))

	stats, err := p.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Claimed)
	assert.Equal(t, 1, stats.Retried)

	e, err := store.GetEntry(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, e.Status)
	assert.Equal(t, 1, e.Attempts)
	assert.Equal(t, tickTime.Add(30*time.Second), e.ScheduledFor)
	assert.True(t, e.ScheduledFor.After(tickTime))
	assert.Nil(t, e.ProcessingStartedAt)
	require.NotNil(t, e.LastError)
	assert.Contains(t, *e.LastError, "email: smtp down")
	assert.Contains(t, *e.LastError, "push: fcm down")
}

func TestProcessor_LastAttemptFails(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	id := seedEntry(t, store, 2, 3, tickTime.Add(-time.Minute))
	p := newProcessor(t, store, dispatchFunc(func(context.Context, string, string, delivery.Payload) delivery.DispatchResult {
		return allFailed()
	}))

	stats, err := p.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	e, err := store.GetEntry(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, e.Status)
	assert.Equal(t, 3, e.Attempts)
	assert.NotNil(t, e.LastError)
	assert.Nil(t, e.ProcessingStartedAt)

	// Terminal entries are never picked up again.
	stats, err = p.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Claimed)
}

func TestProcessor_SuccessCompletes(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	id := seedEntry(t, store, 1, 3, tickTime)
	p := newProcessor(t, store, dispatchFunc(func(context.Context, string, string, delivery.Payload) delivery.DispatchResult {
		return succeeded()
	}))

	stats, err := p.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)

	e, err := store.GetEntry(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCompleted, e.Status)
	require.NotNil(t, e.Result)
	assert.True(t, e.Result.Succeeded())
	assert.Equal(t, 1, e.Attempts)
}

func TestProcessor_PanicIsRetried(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	bad := seedEntry(t, store, 0, 3, tickTime.Add(-2*time.Minute))
	good := seedEntry(t, store, 0, 3, tickTime.Add(-time.Minute))

	p := newProcessor(t, store, dispatchFunc(func(_ context.Context, n, _ string, _ delivery.Payload) delivery.DispatchResult {
		e, _ := store.GetEntry(context.Background(), bad)
		if e.NotificationID == n {
			panic("nil map write")
		}
		return succeeded()
	}))

	stats, err := p.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Claimed)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Retried)

	e, err := store.GetEntry(context.Background(), bad)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, e.Status)
	assert.Equal(t, "panic in dispatch: nil map write", *e.LastError)

	e, err = store.GetEntry(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCompleted, e.Status)
}

func TestProcessor_SelectsOldestDueFirst(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	future := seedEntry(t, store, 0, 3, tickTime.Add(time.Minute))
	var oldest []uuid.UUID
	for i := range 12 {
		oldest = append(oldest, seedEntry(t, store, 0, 3, tickTime.Add(-time.Duration(12-i)*time.Minute)))
	}

	var calls atomic.Int32
	p := newProcessor(t, store, dispatchFunc(func(context.Context, string, string, delivery.Payload) delivery.DispatchResult {
		calls.Add(1)
		return succeeded()
	}), queue.WithBatchSize(10), queue.WithConcurrency(3))

	stats, err := p.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Completed)
	assert.EqualValues(t, 10, calls.Load())

	for i, id := range oldest {
		e, err := store.GetEntry(context.Background(), id)
		require.NoError(t, err)
		if i < 10 {
			assert.Equal(t, queue.StatusCompleted, e.Status, "entry %d", i)
		} else {
			assert.Equal(t, queue.StatusPending, e.Status, "entry %d", i)
		}
	}
	e, err := store.GetEntry(context.Background(), future)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, e.Status)
}

func TestProcessor_AttemptsNeverExceedMax(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	id := seedEntry(t, store, 0, 2, tickTime.Add(-time.Hour))

	now := tickTime
	p, err := queue.NewProcessor(store, dispatchFunc(func(context.Context, string, string, delivery.Payload) delivery.DispatchResult {
		return allFailed()
	}), queue.WithProcessorClock(func() time.Time { return now }))
	require.NoError(t, err)

	for range 5 {
		_, err := p.ProcessDue(context.Background())
		require.NoError(t, err)
		e, err := store.GetEntry(context.Background(), id)
		require.NoError(t, err)
		assert.LessOrEqual(t, e.Attempts, e.MaxAttempts)
		now = now.Add(time.Hour)
	}

	e, err := store.GetEntry(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, e.Status)
	assert.Equal(t, 2, e.Attempts)
}

// MockProcessorRepository is a mock implementation of ProcessorRepository.
type MockProcessorRepository struct {
	mock.Mock
}

func (m *MockProcessorRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]queue.Entry, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]queue.Entry), args.Error(1)
}

func (m *MockProcessorRepository) ClaimEntry(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockProcessorRepository) CompleteEntry(ctx context.Context, id uuid.UUID, result delivery.DispatchResult, now time.Time) error {
	return m.Called(ctx, id, result, now).Error(0)
}

func (m *MockProcessorRepository) RetryEntry(ctx context.Context, id uuid.UUID, retry queue.Retry, now time.Time) error {
	return m.Called(ctx, id, retry, now).Error(0)
}

func (m *MockProcessorRepository) FailEntry(ctx context.Context, id uuid.UUID, retry queue.Retry, now time.Time) error {
	return m.Called(ctx, id, retry, now).Error(0)
}

func (m *MockProcessorRepository) ReleaseStale(ctx context.Context, cutoff, now time.Time) (int, error) {
	args := m.Called(ctx, cutoff, now)
	return args.Int(0), args.Error(1)
}

func TestProcessor_ClaimedElsewhereIsSkipped(t *testing.T) {
	t.Parallel()

	repo := new(MockProcessorRepository)
	defer repo.AssertExpectations(t)

	entry := queue.Entry{ID: uuid.New(), NotificationID: "n1", RecipientID: "u1", Status: queue.StatusPending, MaxAttempts: 3}
	repo.On("ReleaseStale", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	repo.On("ListDue", mock.Anything, tickTime, 10).Return([]queue.Entry{entry}, nil)
	repo.On("ClaimEntry", mock.Anything, entry.ID, tickTime).Return(false, nil)

	p := newProcessor(t, repo, dispatchFunc(func(context.Context, string, string, delivery.Payload) delivery.DispatchResult {
		assert.Fail(t, "dispatch must not run for an unclaimed entry")
		return delivery.DispatchResult{}
	}))

	stats, err := p.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Skipped: 1}, stats)
}

func TestProcessor_ListErrorAbortsTick(t *testing.T) {
	t.Parallel()

	repo := new(MockProcessorRepository)
	defer repo.AssertExpectations(t)
	repo.On("ReleaseStale", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	repo.On("ListDue", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	p := newProcessor(t, repo, dispatchFunc(func(context.Context, string, string, delivery.Payload) delivery.DispatchResult {
		return succeeded()
	}))
	_, err := p.ProcessDue(context.Background())
	assert.ErrorIs(t, err, queue.ErrFailedToListDue)
}

func TestProcessor_ReleasesStaleEntries(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	id := seedEntry(t, store, 0, 3, tickTime.Add(-time.Hour))
	claimed, err := store.ClaimEntry(context.Background(), id, tickTime.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	p := newProcessor(t, store, dispatchFunc(func(context.Context, string, string, delivery.Payload) delivery.DispatchResult {
		return succeeded()
	}), queue.WithStaleAfter(15*time.Minute))

	stats, err := p.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Released)
	assert.Equal(t, 1, stats.Completed)
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func TestProcessor_Lease(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	seedEntry(t, store, 0, 3, tickTime.Add(-time.Minute))
	locker := &fakeLocker{}
	p := newProcessor(t, store, dispatchFunc(func(context.Context, string, string, delivery.Payload) delivery.DispatchResult {
		return succeeded()
	}), queue.WithLocker(locker, "test", time.Minute))

	t.Run("held elsewhere skips the tick", func(t *testing.T) {
		locker.held = true
		stats, err := p.ProcessDue(context.Background())
		require.NoError(t, err)
		assert.Zero(t, stats.Claimed)
		assert.Equal(t, 1, store.Count(queue.StatusPending))
		locker.held = false
	})

	t.Run("acquired and released", func(t *testing.T) {
		stats, err := p.ProcessDue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, locker.released)
		assert.False(t, locker.held)
	})
}
