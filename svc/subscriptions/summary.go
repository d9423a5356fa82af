package subscriptions

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

const uncategorized = "uncategorized"

// Summary is a user's spending for one month. Values are rounded to cents.
type Summary struct {
	Month      string                     `json:"month"`
	TotalSpent decimal.Decimal            `json:"total_spent"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}

// IsZero reports whether nothing was spent.
func (s Summary) IsZero() bool {
	return s.TotalSpent.IsZero()
}

// Summarize totals subs per category. Sums are exact; rounding to two places
// (half away from zero) happens once at the end.
func Summarize(month string, subs []Subscription) Summary {
	total := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)

	for _, s := range subs {
		category := s.Category
		if category == "" {
			category = uncategorized
		}
		total = total.Add(s.Amount)
		byCategory[category] = byCategory[category].Add(s.Amount)
	}

	for k, v := range byCategory {
		byCategory[k] = v.Round(2)
	}

	return Summary{
		Month:      month,
		TotalSpent: total.Round(2),
		ByCategory: byCategory,
	}
}

// MonthlySummary loads the user's subscriptions charged during month and summarizes them.
func MonthlySummary(ctx context.Context, store Store, userID int64, month string) (Summary, error) {
	from, to, err := MonthRange(month)
	if err != nil {
		return Summary{}, err
	}

	subs, err := store.UserSubscriptionsBetween(ctx, userID, from, to)
	if err != nil {
		return Summary{}, errors.Join(ErrStoreFailure, err)
	}

	return Summarize(month, subs), nil
}
