package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/subtracker/pkg/logger"
	"github.com/dmitrymomot/subtracker/pkg/queue"
)

// Scheduler is satisfied by *queue.Scheduler.
type Scheduler interface {
	Exists(ctx context.Context, id string) (bool, error)
	Schedule(ctx context.Context, id, taskName string, schedule queue.Schedule, opts ...queue.SchedulerTaskOption) (bool, error)
	List(ctx context.Context) ([]*queue.ScheduleEntry, error)
}

// Registrar installs the recurring orchestrator entries. Registration is keyed by
// logical id, so it is safe to run on every process start.
type Registrar struct {
	scheduler Scheduler
	cfg       Config
	logger    *slog.Logger
}

func NewRegistrar(scheduler Scheduler, cfg Config, log *slog.Logger) *Registrar {
	if log == nil {
		log = slog.Default()
	}
	return &Registrar{
		scheduler: scheduler,
		cfg:       cfg,
		logger:    log.With(logger.Component("registrar")),
	}
}

// RegisterJobs registers both orchestrators.
func (r *Registrar) RegisterJobs(ctx context.Context) error {
	return errors.Join(
		r.RegisterReminderJob(ctx),
		r.RegisterReportJob(ctx),
	)
}

// RegisterReminderJob schedules the daily payment check on the reminders queue.
func (r *Registrar) RegisterReminderJob(ctx context.Context) error {
	return r.register(ctx, ReminderJobID, TaskCheckUpcomingPayments, QueueReminders, r.cfg.ReminderCron)
}

// RegisterReportJob schedules the monthly report fan-out on the reports queue.
func (r *Registrar) RegisterReportJob(ctx context.Context) error {
	return r.register(ctx, ReportJobID, TaskGenerateMonthlyReport, QueueReports, r.cfg.ReportCron)
}

func (r *Registrar) register(ctx context.Context, id, taskName, queueName, spec string) error {
	log := r.logger.With(logger.JobID(id))

	exists, err := r.scheduler.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check job %q: %w", id, err)
	}
	if exists {
		log.InfoContext(ctx, "job already scheduled")
		return nil
	}

	schedule, err := queue.Cron(spec)
	if err != nil {
		return fmt.Errorf("job %q: %w", id, err)
	}

	created, err := r.scheduler.Schedule(ctx, id, taskName, schedule,
		queue.WithTaskQueue(queueName),
		queue.WithTaskMaxRetries(r.cfg.MaxRetries),
		queue.WithTaskBackoff(r.cfg.Backoff...),
		queue.WithTaskTimeout(r.cfg.OrchestratorTimeout),
	)
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", id, err)
	}
	if created {
		log.InfoContext(ctx, "job scheduled",
			logger.TaskName(taskName),
			logger.Queue(queueName),
			slog.String("cron", spec),
		)
	}
	return nil
}

// ListJobs logs every registered schedule entry and returns them.
func (r *Registrar) ListJobs(ctx context.Context) ([]*queue.ScheduleEntry, error) {
	entries, err := r.scheduler.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	r.logger.InfoContext(ctx, "registered jobs", logger.Count(len(entries)))
	for _, e := range entries {
		r.logger.InfoContext(ctx, "registered job",
			logger.JobID(e.ID),
			logger.TaskName(e.TaskName),
			logger.Queue(e.Queue),
			slog.String("schedule", e.Spec),
			slog.Time("next_run", e.NextRunAt),
			slog.Time("registered_at", e.CreatedAt),
		)
	}
	return entries, nil
}
