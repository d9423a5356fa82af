// Package subscriptions is the read model the background jobs run against:
// subscriptions, their owners and the reminder audit log.
//
// Store has two implementations. PgStore queries PostgreSQL through pgx and
// MemoryStore keeps everything in process for tests and local runs.
// MonthlySummary aggregates a user's charges for a month with exact decimal
// arithmetic and rounds to cents once, half away from zero.
package subscriptions
