package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subtracker/pkg/email"
	"github.com/dmitrymomot/subtracker/pkg/queue"
	"github.com/dmitrymomot/subtracker/svc/jobs"
	"github.com/dmitrymomot/subtracker/svc/subscriptions"
)

func TestGenerateMonthlyReport(t *testing.T) {
	t.Parallel()

	t.Run("one task per user for the previous month", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		ann := f.addUser("ann")
		bob := f.addUser("bob")

		require.NoError(t, f.service().GenerateMonthlyReport(context.Background()))

		tasks := f.tasks(t, jobs.QueueReports)
		require.Len(t, tasks, 2)

		users := make([]int64, 0, len(tasks))
		for _, task := range tasks {
			p := decodePayload[jobs.ReportPayload](t, task)
			assert.Equal(t, "2024-12", p.Month, "january reports on december of the previous year")
			assert.Equal(t, jobs.TaskSendMonthlyReport, task.TaskName)
			assert.Equal(t, int8(3), task.MaxRetries)
			assert.Equal(t, 60*time.Second, task.Timeout)
			users = append(users, p.UserID)
		}
		assert.ElementsMatch(t, []int64{ann.ID, bob.ID}, users)
	})

	t.Run("enqueue failure does not stop the batch", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		ann := f.addUser("ann")
		bob := f.addUser("bob")

		enq := failingEnqueuer{next: f.enqueuer, reject: func(p any) bool {
			return p.(jobs.ReportPayload).UserID == ann.ID
		}}
		require.NoError(t, f.serviceWith(enq).GenerateMonthlyReport(context.Background()))

		tasks := f.tasks(t, jobs.QueueReports)
		require.Len(t, tasks, 1)
		assert.Equal(t, bob.ID, decodePayload[jobs.ReportPayload](t, tasks[0]).UserID)
	})
}

func TestSendMonthlyReport(t *testing.T) {
	t.Parallel()

	december := func(day int) time.Time { return time.Date(2024, time.December, day, 0, 0, 0, 0, time.UTC) }

	t.Run("sends the summary", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		u := f.addUser("ann")
		f.addSub(u.ID, "Netflix", december(5), "15.49", "entertainment")
		f.addSub(u.ID, "iCloud", december(10), "2.99", "")

		f.notifier.On("SendMonthlySummary", mock.Anything, "ann@example.com", mock.MatchedBy(func(s subscriptions.Summary) bool {
			return s.Month == "2024-12" &&
				s.TotalSpent.StringFixed(2) == "18.48" &&
				s.ByCategory["uncategorized"].StringFixed(2) == "2.99"
		})).Return(nil)

		err := f.service().SendMonthlyReport(context.Background(), jobs.ReportPayload{UserID: u.ID, Month: "2024-12"})
		require.NoError(t, err)
		f.notifier.AssertExpectations(t)
	})

	t.Run("zero spend sends nothing", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		u := f.addUser("ann")
		f.addSub(u.ID, "Netflix", december(5).AddDate(0, 1, 0), "15.49", "")

		err := f.service().SendMonthlyReport(context.Background(), jobs.ReportPayload{UserID: u.ID, Month: "2024-12"})
		require.NoError(t, err)
		f.notifier.AssertNotCalled(t, "SendMonthlySummary", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing user is skipped", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.addSub(777, "Netflix", december(5), "15.49", "")

		err := f.service().SendMonthlyReport(context.Background(), jobs.ReportPayload{UserID: 777, Month: "2024-12"})
		require.NoError(t, err)
		f.notifier.AssertNotCalled(t, "SendMonthlySummary", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("temporary failure is returned", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		u := f.addUser("ann")
		f.addSub(u.ID, "Netflix", december(5), "15.49", "")
		f.notifier.On("SendMonthlySummary", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.Join(email.ErrFailedToSendEmail, email.ErrTemporaryFailure))

		err := f.service().SendMonthlyReport(context.Background(), jobs.ReportPayload{UserID: u.ID, Month: "2024-12"})
		assert.ErrorIs(t, err, email.ErrTemporaryFailure)
	})

	t.Run("permanent failure is swallowed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		u := f.addUser("ann")
		f.addSub(u.ID, "Netflix", december(5), "15.49", "")
		f.notifier.On("SendMonthlySummary", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.Join(email.ErrFailedToSendEmail, email.ErrPermanentFailure))

		err := f.service().SendMonthlyReport(context.Background(), jobs.ReportPayload{UserID: u.ID, Month: "2024-12"})
		assert.NoError(t, err)
	})

	t.Run("invalid month skips retries", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		u := f.addUser("ann")

		err := f.service().SendMonthlyReport(context.Background(), jobs.ReportPayload{UserID: u.ID, Month: "2024-13"})
		assert.ErrorIs(t, err, queue.ErrSkipRetry)
		assert.ErrorIs(t, err, subscriptions.ErrInvalidMonth)
	})
}
