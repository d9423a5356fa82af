// Package jobs wires the subscription tracker's background work onto the queue.
//
// Two recurring orchestrators, registered by Registrar under stable ids, run on
// cron schedules: CheckUpcomingPayments (daily) and GenerateMonthlyReport (first
// of the month). Each discovers its work items and enqueues one task per item,
// so a failure for one subscription or user never blocks the others. The item
// jobs (SendPaymentReminder, SendMonthlyReport, SendRegistrationEmail) retry
// temporary email failures through the queue and treat everything else as final.
//
//	svc := jobs.New(store, notifier.New(sender), enqueuer, jobs.WithConfig(cfg))
//	worker.RegisterHandlers(svc.Handlers()...)
//
//	reg := jobs.NewRegistrar(scheduler, cfg, log)
//	if err := reg.RegisterJobs(ctx); err != nil {
//	    return err
//	}
package jobs
