// Package email sends transactional emails through a provider-agnostic EmailSender.
//
// Two implementations ship with the package: a Postmark client for production and
// DevSender, which writes rendered HTML to a local directory.
//
// Delivery failures are classified so background jobs can decide whether to retry:
//
//	err := sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "user@example.com",
//	    Subject:  "Payment reminder",
//	    BodyHTML: html,
//	    Tag:      "reminder",
//	})
//	if err != nil && !email.IsTemporary(err) {
//	    // permanent: bad recipient, rejected by provider, invalid params
//	}
//
// Templates are templ components rendered with templates.Render.
package email
