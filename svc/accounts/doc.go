// Package accounts creates user accounts: it validates the input, stores a bcrypt
// password hash and then runs the after-register hook, which queues the welcome email.
package accounts
