package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subtracker/pkg/queue"
)

// storage is the full surface shared by MemoryStorage and RedisStorage.
type storage interface {
	queue.EnqueuerRepository
	queue.WorkerRepository
	queue.SchedulerRepository
	queue.LockReaper
	GetTask(ctx context.Context, taskID uuid.UUID) (*queue.Task, error)
	ListDLQ(ctx context.Context) ([]*queue.TasksDlq, error)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.January, 15, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTask(clock *fakeClock, queueName string) *queue.Task {
	return &queue.Task{
		ID:          uuid.New(),
		Queue:       queueName,
		TaskType:    queue.TaskTypeOneTime,
		TaskName:    "test-task",
		Payload:     []byte(`{"subscription_id":1}`),
		Status:      queue.TaskStatusPending,
		MaxRetries:  3,
		Backoff:     []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second},
		Timeout:     time.Minute,
		ScheduledAt: clock.Now(),
		CreatedAt:   clock.Now(),
	}
}

// runStorageContract checks the behaviour every queue storage must share.
func runStorageContract(t *testing.T, newStorage func(t *testing.T, clock *fakeClock) storage) {
	ctx := context.Background()
	queues := []string{"reminders", "reports"}

	t.Run("create and load task", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		task := newTestTask(clock, "reminders")
		require.NoError(t, s.CreateTask(ctx, task))

		loaded, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, loaded.ID)
		assert.Equal(t, task.Backoff, loaded.Backoff)
		assert.Equal(t, task.Timeout, loaded.Timeout)
		assert.JSONEq(t, string(task.Payload), string(loaded.Payload))
		assert.True(t, task.ScheduledAt.Equal(loaded.ScheduledAt))

		_, err = s.GetTask(ctx, uuid.New())
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)
	})

	t.Run("claim returns no task when idle", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		_, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("claim drains queues in order", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		report := newTestTask(clock, "reports")
		report.ScheduledAt = clock.Now().Add(-time.Hour)
		require.NoError(t, s.CreateTask(ctx, report))

		later := newTestTask(clock, "reminders")
		later.ScheduledAt = clock.Now().Add(-time.Minute)
		require.NoError(t, s.CreateTask(ctx, later))

		earlier := newTestTask(clock, "reminders")
		earlier.ScheduledAt = clock.Now().Add(-2 * time.Minute)
		require.NoError(t, s.CreateTask(ctx, earlier))

		other := newTestTask(clock, "emails")
		require.NoError(t, s.CreateTask(ctx, other))

		workerID := uuid.New()
		var order []uuid.UUID
		for range 3 {
			claimed, err := s.ClaimTask(ctx, workerID, queues, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, queue.TaskStatusProcessing, claimed.Status)
			require.NotNil(t, claimed.LockedBy)
			assert.Equal(t, workerID, *claimed.LockedBy)
			order = append(order, claimed.ID)
		}

		assert.Equal(t, []uuid.UUID{earlier.ID, later.ID, report.ID}, order)

		_, err := s.ClaimTask(ctx, workerID, queues, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim, "tasks in other queues are not claimed")
	})

	t.Run("claim respects scheduled time", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		task := newTestTask(clock, "reminders")
		task.ScheduledAt = clock.Now().Add(time.Hour)
		require.NoError(t, s.CreateTask(ctx, task))

		_, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)

		clock.Advance(time.Hour)

		claimed, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, task.ID, claimed.ID)
	})

	t.Run("complete task", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		task := newTestTask(clock, "reminders")
		require.NoError(t, s.CreateTask(ctx, task))

		err := s.CompleteTask(ctx, task.ID)
		assert.ErrorIs(t, err, queue.ErrTaskNotProcessing)

		_, err = s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.CompleteTask(ctx, task.ID))

		loaded, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.TaskStatusCompleted, loaded.Status)
		assert.NotNil(t, loaded.ProcessedAt)
		assert.Nil(t, loaded.LockedBy)

		assert.ErrorIs(t, s.CompleteTask(ctx, uuid.New()), queue.ErrTaskNotFound)
	})

	t.Run("fail task schedules retry with backoff", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		task := newTestTask(clock, "reminders")
		require.NoError(t, s.CreateTask(ctx, task))

		for i, delay := range task.Backoff {
			_, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
			require.NoError(t, err)
			require.NoError(t, s.FailTask(ctx, task.ID, "smtp unavailable"))

			loaded, err := s.GetTask(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, queue.TaskStatusPending, loaded.Status)
			assert.Equal(t, int8(i+1), loaded.RetryCount)
			require.NotNil(t, loaded.Error)
			assert.Equal(t, "smtp unavailable", *loaded.Error)
			assert.True(t, clock.Now().Add(delay).Equal(loaded.ScheduledAt))

			clock.Advance(delay - time.Second)
			_, err = s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
			assert.ErrorIs(t, err, queue.ErrNoTaskToClaim, "retry %d must wait for its backoff", i+1)
			clock.Advance(time.Second)
		}

		// Fourth attempt is the last one allowed by MaxRetries=3.
		_, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.FailTask(ctx, task.ID, "smtp unavailable"))

		loaded, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.TaskStatusFailed, loaded.Status)
		assert.Equal(t, int8(4), loaded.RetryCount)

		_, err = s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("move to DLQ", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		task := newTestTask(clock, "reports")
		task.MaxRetries = 0
		require.NoError(t, s.CreateTask(ctx, task))

		_, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.FailTask(ctx, task.ID, "user not found"))
		require.NoError(t, s.MoveToDLQ(ctx, task.ID))

		_, err = s.GetTask(ctx, task.ID)
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)

		items, err := s.ListDLQ(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, task.ID, items[0].TaskID)
		assert.Equal(t, "reports", items[0].Queue)
		assert.Equal(t, "user not found", items[0].Error)
		assert.Equal(t, int8(1), items[0].RetryCount)

		assert.ErrorIs(t, s.MoveToDLQ(ctx, uuid.New()), queue.ErrTaskNotFound)
	})

	t.Run("expired locks are reaped", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		task := newTestTask(clock, "reminders")
		require.NoError(t, s.CreateTask(ctx, task))

		_, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		require.NoError(t, err)

		n, err := s.ReapExpiredLocks(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		clock.Advance(2 * time.Minute)

		n, err = s.ReapExpiredLocks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		worker2 := uuid.New()
		claimed, err := s.ClaimTask(ctx, worker2, queues, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, task.ID, claimed.ID)
		assert.Equal(t, worker2, *claimed.LockedBy)
		assert.Equal(t, int8(0), claimed.RetryCount, "reaping does not count as a retry")
	})

	t.Run("extended lock survives reaping", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		task := newTestTask(clock, "reminders")
		require.NoError(t, s.CreateTask(ctx, task))

		_, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.ExtendLock(ctx, task.ID, 10*time.Minute))

		clock.Advance(2 * time.Minute)

		n, err := s.ReapExpiredLocks(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("concurrent claims never share a task", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		for range 20 {
			require.NoError(t, s.CreateTask(ctx, newTestTask(clock, "reminders")))
		}

		var (
			mu      sync.Mutex
			claimed = make(map[uuid.UUID]int)
			wg      sync.WaitGroup
		)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				workerID := uuid.New()
				for range 6 {
					task, err := s.ClaimTask(ctx, workerID, queues, time.Minute)
					if err != nil {
						continue
					}
					mu.Lock()
					claimed[task.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, 20)
		for id, n := range claimed {
			assert.Equal(t, 1, n, "task %s claimed more than once", id)
		}
	})

	t.Run("schedule entries", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		entry := &queue.ScheduleEntry{
			ID:         "monthly_report_job",
			TaskName:   "generate_monthly_report",
			Queue:      "reports",
			Spec:       "0 0 1 * *",
			MaxRetries: 3,
			Timeout:    time.Minute,
			NextRunAt:  time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
			CreatedAt:  clock.Now(),
		}

		created, err := s.CreateEntry(ctx, entry)
		require.NoError(t, err)
		assert.True(t, created)

		dup := *entry
		dup.Spec = "@every 1m"
		created, err = s.CreateEntry(ctx, &dup)
		require.NoError(t, err)
		assert.False(t, created, "second registration is a no-op")

		loaded, err := s.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "0 0 1 * *", loaded.Spec)
		assert.Equal(t, "reports", loaded.Queue)

		_, err = s.GetEntry(ctx, "unknown")
		assert.ErrorIs(t, err, queue.ErrEntryNotFound)

		other := &queue.ScheduleEntry{ID: "another_job", TaskName: "x", Queue: "default", Spec: "@daily"}
		_, err = s.CreateEntry(ctx, other)
		require.NoError(t, err)

		entries, err := s.ListEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "another_job", entries[0].ID)
		assert.Equal(t, "monthly_report_job", entries[1].ID)

		require.NoError(t, s.RemoveEntry(ctx, "another_job"))
		assert.ErrorIs(t, s.RemoveEntry(ctx, "another_job"), queue.ErrEntryNotFound)
	})

	t.Run("advance entry is compare and set", func(t *testing.T) {
		clock := newFakeClock()
		s := newStorage(t, clock)

		due := clock.Now().Add(-time.Minute)
		entry := &queue.ScheduleEntry{
			ID:        "subscription_payment_reminder_job",
			TaskName:  "check_upcoming_payments",
			Queue:     "reminders",
			Spec:      "0 8 * * *",
			NextRunAt: due,
		}
		_, err := s.CreateEntry(ctx, entry)
		require.NoError(t, err)

		next := due.Add(24 * time.Hour)
		task := newTestTask(clock, "reminders")
		task.TaskType = queue.TaskTypePeriodic
		task.TaskName = "check_upcoming_payments"
		task.ScheduledAt = due

		advanced, err := s.AdvanceEntry(ctx, entry, next, task)
		require.NoError(t, err)
		assert.True(t, advanced)

		// A second scheduler holding the stale copy loses the race.
		loser := newTestTask(clock, "reminders")
		advanced, err = s.AdvanceEntry(ctx, entry, next, loser)
		require.NoError(t, err)
		assert.False(t, advanced)

		_, err = s.GetTask(ctx, loser.ID)
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)

		loaded, err := s.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, next.Equal(loaded.NextRunAt))
		require.NotNil(t, loaded.LastRunAt)
		assert.True(t, due.Equal(*loaded.LastRunAt))

		claimed, err := s.ClaimTask(ctx, uuid.New(), queues, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, task.ID, claimed.ID)
		assert.Equal(t, queue.TaskTypePeriodic, claimed.TaskType)

		_, err = s.AdvanceEntry(ctx, &queue.ScheduleEntry{ID: "unknown"}, next, newTestTask(clock, "reminders"))
		assert.ErrorIs(t, err, queue.ErrEntryNotFound)
	})
}
