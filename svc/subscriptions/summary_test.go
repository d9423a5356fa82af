package subscriptions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subtracker/svc/subscriptions"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthlySummary(t *testing.T) {
	t.Parallel()

	store := subscriptions.NewMemoryStore()
	user := store.AddUser(subscriptions.User{Username: "ann", Email: "ann@example.com"})
	other := store.AddUser(subscriptions.User{Username: "bob", Email: "bob@example.com"})

	store.AddSubscription(subscriptions.Subscription{
		UserID: user.ID, Name: "Netflix", Amount: decimal.RequireFromString("15.49"),
		NextChargeDate: date(2025, time.October, 5), Category: "entertainment",
	})
	store.AddSubscription(subscriptions.Subscription{
		UserID: user.ID, Name: "Spotify", Amount: decimal.RequireFromString("10.99"),
		NextChargeDate: date(2025, time.October, 5), Category: "entertainment",
	})
	store.AddSubscription(subscriptions.Subscription{
		UserID: user.ID, Name: "iCloud", Amount: decimal.RequireFromString("2.99"),
		NextChargeDate: date(2025, time.October, 10), Category: "storage",
	})
	// next month
	store.AddSubscription(subscriptions.Subscription{
		UserID: user.ID, Name: "Gym", Amount: decimal.RequireFromString("40.00"),
		NextChargeDate: date(2025, time.November, 1), Category: "health",
	})
	// other user
	store.AddSubscription(subscriptions.Subscription{
		UserID: other.ID, Name: "Netflix", Amount: decimal.RequireFromString("15.49"),
		NextChargeDate: date(2025, time.October, 5), Category: "entertainment",
	})

	summary, err := subscriptions.MonthlySummary(context.Background(), store, user.ID, "2025-10")
	require.NoError(t, err)

	assert.Equal(t, "2025-10", summary.Month)
	assert.Equal(t, "29.47", summary.TotalSpent.StringFixed(2))
	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "26.48", summary.ByCategory["entertainment"].StringFixed(2))
	assert.Equal(t, "2.99", summary.ByCategory["storage"].StringFixed(2))
	assert.NotContains(t, summary.ByCategory, "health")
}

func TestMonthlySummary_NoSubscriptions(t *testing.T) {
	t.Parallel()

	store := subscriptions.NewMemoryStore()
	user := store.AddUser(subscriptions.User{Username: "ann", Email: "ann@example.com"})

	summary, err := subscriptions.MonthlySummary(context.Background(), store, user.ID, "2025-10")
	require.NoError(t, err)
	assert.True(t, summary.IsZero())
	assert.Empty(t, summary.ByCategory)
}

func TestMonthlySummary_InvalidMonth(t *testing.T) {
	t.Parallel()

	_, err := subscriptions.MonthlySummary(context.Background(), subscriptions.NewMemoryStore(), 1, "2025-13")
	assert.ErrorIs(t, err, subscriptions.ErrInvalidMonth)
}

type failingStore struct {
	subscriptions.Store
}

func (failingStore) UserSubscriptionsBetween(context.Context, int64, time.Time, time.Time) ([]subscriptions.Subscription, error) {
	return nil, errors.New("connection refused")
}

func TestMonthlySummary_StoreError(t *testing.T) {
	t.Parallel()

	_, err := subscriptions.MonthlySummary(context.Background(), failingStore{}, 1, "2025-10")
	assert.ErrorIs(t, err, subscriptions.ErrStoreFailure)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("empty category is uncategorized", func(t *testing.T) {
		t.Parallel()
		s := subscriptions.Summarize("2025-10", []subscriptions.Subscription{
			{Amount: decimal.RequireFromString("5.00")},
			{Amount: decimal.RequireFromString("1.50"), Category: "news"},
		})
		assert.Equal(t, "5.00", s.ByCategory["uncategorized"].StringFixed(2))
		assert.Equal(t, "1.50", s.ByCategory["news"].StringFixed(2))
		assert.Equal(t, "6.50", s.TotalSpent.StringFixed(2))
	})

	t.Run("rounds half up once at the end", func(t *testing.T) {
		t.Parallel()
		s := subscriptions.Summarize("2025-10", []subscriptions.Subscription{
			{Amount: decimal.RequireFromString("0.0025"), Category: "a"},
			{Amount: decimal.RequireFromString("0.0025"), Category: "a"},
			{Amount: decimal.RequireFromString("1.125"), Category: "b"},
		})
		// 0.005 + 1.125 = 1.13 exactly, rounding per item would give 0.00 + 1.13
		assert.Equal(t, "1.13", s.TotalSpent.StringFixed(2))
		assert.Equal(t, "0.01", s.ByCategory["a"].StringFixed(2))
		assert.Equal(t, "1.13", s.ByCategory["b"].StringFixed(2))
	})

	t.Run("exact sums avoid float drift", func(t *testing.T) {
		t.Parallel()
		subs := make([]subscriptions.Subscription, 10)
		for i := range subs {
			subs[i] = subscriptions.Subscription{Amount: decimal.RequireFromString("0.10")}
		}
		s := subscriptions.Summarize("2025-10", subs)
		assert.True(t, s.TotalSpent.Equal(decimal.NewFromInt(1)))
	})
}
