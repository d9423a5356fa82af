// Package notifier turns domain events into transactional emails: payment
// reminders, monthly spending summaries and registration confirmations.
package notifier

//go:generate templ generate
