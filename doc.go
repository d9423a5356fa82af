// Package subtracker tracks recurring subscriptions and emails users about
// upcoming payments and their monthly spending.
//
// The background work lives in svc/jobs and runs on the Redis-backed queue in
// pkg/queue. The cmd/subtracker binary starts workers, the scheduler and
// database migrations.
package subtracker
