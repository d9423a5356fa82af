package subscriptions

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	now       func() time.Time
	users     map[int64]User
	passwords map[int64]string
	subs      map[int64]Subscription
	logs      []ReminderLog
	nextID    int64
}

type MemoryStoreOption func(*MemoryStore)

// WithMemoryStoreClock sets the clock used to stamp ReminderLog.SentAt.
func WithMemoryStoreClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		now:       time.Now,
		users:     make(map[int64]User),
		passwords: make(map[int64]string),
		subs:      make(map[int64]Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddUser stores u, assigning an ID when u.ID is zero.
func (s *MemoryStore) AddUser(u User) User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == 0 {
		u.ID = s.id()
	}
	s.users[u.ID] = u
	return u
}

// AddSubscription stores sub, assigning an ID when sub.ID is zero.
func (s *MemoryStore) AddSubscription(sub Subscription) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == 0 {
		sub.ID = s.id()
	}
	sub.NextChargeDate = DateOf(sub.NextChargeDate)
	s.subs[sub.ID] = sub
	return sub
}

// DeleteSubscription removes the subscription and its reminder logs.
func (s *MemoryStore) DeleteSubscription(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, id)
	s.logs = slices.DeleteFunc(s.logs, func(l ReminderLog) bool { return l.SubscriptionID == id })
}

// ReminderLogs returns the logs for a subscription in insertion order.
func (s *MemoryStore) ReminderLogs(subscriptionID int64) []ReminderLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ReminderLog
	for _, l := range s.logs {
		if l.SubscriptionID == subscriptionID {
			out = append(out, l)
		}
	}
	return out
}

func (s *MemoryStore) SubscriptionsDueIn(_ context.Context, today time.Time, offsets []int) ([]Subscription, error) {
	dates := DueDates(today, offsets)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if slices.ContainsFunc(dates, sub.NextChargeDate.Equal) {
			out = append(out, sub)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *MemoryStore) SubscriptionByID(_ context.Context, id int64) (Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *MemoryStore) UserSubscriptionsBetween(_ context.Context, userID int64, from, to time.Time) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.UserID != userID {
			continue
		}
		if !sub.NextChargeDate.Before(from) && sub.NextChargeDate.Before(to) {
			out = append(out, sub)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *MemoryStore) AllUsers(context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) UserByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u NewUser) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return User{}, ErrEmailTaken
		}
	}
	user := User{ID: s.id(), Username: u.Username, Email: u.Email}
	s.users[user.ID] = user
	s.passwords[user.ID] = u.PasswordHash
	return user, nil
}

// PasswordHash returns the stored hash for a user created with CreateUser.
func (s *MemoryStore) PasswordHash(userID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.passwords[userID]
	return h, ok
}

func (s *MemoryStore) CreateReminderLog(_ context.Context, log ReminderLog) (ReminderLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[log.SubscriptionID]; !ok {
		return ReminderLog{}, ErrSubscriptionNotFound
	}
	log.ID = s.id()
	log.SentAt = s.now().UTC()
	s.logs = append(s.logs, log)
	return log, nil
}

// id must be called with the write lock held.
func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func sortByID(subs []Subscription) {
	slices.SortFunc(subs, func(a, b Subscription) int { return cmp.Compare(a.ID, b.ID) })
}
