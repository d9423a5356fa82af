package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subtracker/pkg/queue"
	"github.com/dmitrymomot/subtracker/svc/jobs"
	"github.com/dmitrymomot/subtracker/svc/subscriptions"
)

// 2025-01-15 08:00 UTC, a Wednesday.
var testNow = time.Date(2025, time.January, 15, 8, 0, 0, 0, time.UTC)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendReminder(ctx context.Context, to, subscriptionName string, nextChargeDate time.Time) error {
	args := m.Called(ctx, to, subscriptionName, nextChargeDate)
	return args.Error(0)
}

func (m *mockNotifier) SendMonthlySummary(ctx context.Context, to string, summary subscriptions.Summary) error {
	args := m.Called(ctx, to, summary)
	return args.Error(0)
}

func (m *mockNotifier) SendRegistrationEmail(ctx context.Context, to, username string) error {
	args := m.Called(ctx, to, username)
	return args.Error(0)
}

// failingEnqueuer rejects payloads matched by reject and forwards the rest.
type failingEnqueuer struct {
	next   jobs.Enqueuer
	reject func(payload any) bool
}

func (e failingEnqueuer) Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error) {
	if e.reject(payload) {
		return uuid.Nil, errors.New("redis: connection refused")
	}
	return e.next.Enqueue(ctx, payload, opts...)
}

type fixture struct {
	store    *subscriptions.MemoryStore
	storage  *queue.MemoryStorage
	enqueuer *queue.Enqueuer
	notifier *mockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	storage := queue.NewMemoryStorage(queue.WithMemoryClock(func() time.Time { return testNow }))
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	return &fixture{
		store:    subscriptions.NewMemoryStore(subscriptions.WithMemoryStoreClock(func() time.Time { return testNow })),
		storage:  storage,
		enqueuer: enqueuer,
		notifier: new(mockNotifier),
	}
}

func (f *fixture) service(opts ...jobs.Option) *jobs.Service {
	return f.serviceWith(f.enqueuer, opts...)
}

func (f *fixture) serviceWith(enq jobs.Enqueuer, opts ...jobs.Option) *jobs.Service {
	opts = append([]jobs.Option{jobs.WithClock(func() time.Time { return testNow })}, opts...)
	return jobs.New(f.store, f.notifier, enq, opts...)
}

func (f *fixture) tasks(t *testing.T, queueName string) []*queue.Task {
	t.Helper()
	tasks, err := f.storage.ListTasks(context.Background(), queueName)
	require.NoError(t, err)
	return tasks
}

func (f *fixture) addUser(name string) subscriptions.User {
	return f.store.AddUser(subscriptions.User{Username: name, Email: name + "@example.com"})
}

func (f *fixture) addSub(userID int64, name string, charge time.Time, amount, category string) subscriptions.Subscription {
	return f.store.AddSubscription(subscriptions.Subscription{
		UserID:         userID,
		Name:           name,
		Amount:         decimal.RequireFromString(amount),
		BillingCycle:   "monthly",
		NextChargeDate: charge,
		Category:       category,
	})
}

func decodePayload[T any](t *testing.T, task *queue.Task) T {
	t.Helper()
	var p T
	require.NoError(t, json.Unmarshal(task.Payload, &p))
	return p
}

func TestHandlers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	names := make([]string, 0)
	for _, h := range f.service().Handlers() {
		names = append(names, h.Name())
	}

	assert.ElementsMatch(t, []string{
		jobs.TaskCheckUpcomingPayments,
		jobs.TaskGenerateMonthlyReport,
		jobs.TaskSendPaymentReminder,
		jobs.TaskSendMonthlyReport,
		jobs.TaskSendRegistrationEmail,
	}, names)
}

func TestReminderOffsets(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{1, 7}, jobs.ReminderOffsets())
}
