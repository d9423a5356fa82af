package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/subtracker"
	"github.com/dmitrymomot/subtracker/pkg/config"
	"github.com/dmitrymomot/subtracker/pkg/email"
	"github.com/dmitrymomot/subtracker/pkg/logger"
	"github.com/dmitrymomot/subtracker/pkg/pg"
	"github.com/dmitrymomot/subtracker/pkg/queue"
	"github.com/dmitrymomot/subtracker/pkg/redis"
	"github.com/dmitrymomot/subtracker/svc/accounts"
	"github.com/dmitrymomot/subtracker/svc/jobs"
	"github.com/dmitrymomot/subtracker/svc/notifier"
	"github.com/dmitrymomot/subtracker/svc/subscriptions"
)

type appConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"subtracker"`
}

const usage = `usage: subtracker <command> [flags]

commands:
  worker      process queued tasks
  scheduler   register recurring jobs and enqueue them when due
  run         worker and scheduler in one process
  migrate     apply database migrations
  register    create an account and queue its welcome email (--email, --username, --password)
  health      ping Postgres and Redis, exit non-zero if either is down
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app appConfig
	config.MustLoad(&app)

	log := logger.New(
		logger.WithEnvironment(app.Env, app.Name),
		logger.WithContextExtractors(queue.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	if err := run(ctx, log, os.Args[1], os.Args[2:]); err != nil {
		log.Error("command failed", slog.String("command", os.Args[1]), logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, cmd string, args []string) error {
	switch cmd {
	case "worker":
		return runWorker(ctx, log, args, false)
	case "scheduler":
		return runScheduler(ctx, log)
	case "run":
		return runWorker(ctx, log, args, true)
	case "migrate":
		return runMigrate(ctx, log)
	case "register":
		return runRegister(ctx, log, args)
	case "health":
		return runHealth(ctx, log)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func runWorker(ctx context.Context, log *slog.Logger, args []string, withScheduler bool) error {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	queuesFlag := fs.String("queues", strings.Join(allQueues(), ","), "comma separated queues to process")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := newDeps(ctx, log)
	if err != nil {
		return err
	}
	defer d.close()

	queues, err := parseQueues(*queuesFlag)
	if err != nil {
		return err
	}

	worker, err := queue.NewWorker(d.storage,
		queue.WithQueues(queues...),
		queue.WithPullInterval(d.queueCfg.PollInterval),
		queue.WithLockTimeout(d.queueCfg.LockTimeout),
		queue.WithMaxConcurrentTasks(d.queueCfg.MaxConcurrentTasks),
		queue.WithShutdownTimeout(d.queueCfg.ShutdownTimeout),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		return err
	}
	if err := worker.RegisterHandlers(d.jobs.Handlers()...); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(gctx))

	if withScheduler {
		scheduler, err := d.scheduler(gctx)
		if err != nil {
			return err
		}
		g.Go(scheduler.Run(gctx))
	}

	log.Info("worker running", slog.Any("queues", queues))
	return g.Wait()
}

func runScheduler(ctx context.Context, log *slog.Logger) error {
	d, err := newDeps(ctx, log)
	if err != nil {
		return err
	}
	defer d.close()

	scheduler, err := d.scheduler(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(scheduler.Run(gctx))
	return g.Wait()
}

func runMigrate(ctx context.Context, log *slog.Logger) error {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return pg.MigrateFS(ctx, pool, subtracker.Migrations, cfg, log)
}

func runRegister(ctx context.Context, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	params := accounts.RegisterParams{}
	fs.StringVar(&params.Email, "email", "", "account email, also the welcome email recipient")
	fs.StringVar(&params.Username, "username", "", "display name")
	fs.StringVar(&params.Password, "password", os.Getenv("REGISTER_PASSWORD"), "account password (default $REGISTER_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := newDeps(ctx, log)
	if err != nil {
		return err
	}
	defer d.close()

	user, err := d.accounts.Register(ctx, params)
	if err != nil {
		return err
	}
	log.Info("account created", logger.UserID(user.ID), slog.String("email", user.Email))
	return nil
}

func runHealth(ctx context.Context, log *slog.Logger) error {
	d, err := newDeps(ctx, log)
	if err != nil {
		return err
	}
	defer d.close()

	var errs []error
	for name, check := range d.health {
		if err := check(ctx); err != nil {
			log.Error("healthcheck failed", slog.String("dependency", name), logger.Error(err))
			errs = append(errs, err)
			continue
		}
		log.Info("healthcheck passed", slog.String("dependency", name))
	}
	return errors.Join(errs...)
}

// deps is everything a command needs to talk to Postgres, Redis and the mail provider.
type deps struct {
	log      *slog.Logger
	queueCfg queue.Config
	jobsCfg  jobs.Config
	storage  *queue.RedisStorage
	jobs     *jobs.Service
	accounts *accounts.Service
	health   map[string]func(context.Context) error
	close    func()
}

func newDeps(ctx context.Context, log *slog.Logger) (*deps, error) {
	var (
		pgCfg    pg.Config
		redisCfg redis.Config
		queueCfg queue.Config
		emailCfg email.Config
		jobsCfg  jobs.Config
	)
	if err := errors.Join(
		config.Load(&pgCfg),
		config.Load(&redisCfg),
		config.Load(&queueCfg),
		config.Load(&emailCfg),
		config.Load(&jobsCfg),
	); err != nil {
		return nil, err
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}

	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	closeAll := func() {
		if err := client.Close(); err != nil {
			log.Warn("closing redis client", logger.Error(err))
		}
		pool.Close()
	}

	storage, err := queue.NewRedisStorage(client,
		queue.WithKeyPrefix(queueCfg.KeyPrefix),
		queue.WithResultTTL(queueCfg.ResultTTL),
	)
	if err != nil {
		closeAll()
		return nil, err
	}

	enqueuer, err := queue.NewEnqueuer(storage, queue.WithDefaultQueue(jobs.QueueEmails))
	if err != nil {
		closeAll()
		return nil, err
	}

	sender, err := email.NewSender(emailCfg)
	if err != nil {
		closeAll()
		return nil, err
	}

	store := subscriptions.NewPgStore(pool)
	svc := jobs.New(
		store,
		notifier.New(sender, notifier.WithLogger(log)),
		enqueuer,
		jobs.WithConfig(jobsCfg),
		jobs.WithLogger(log),
	)

	return &deps{
		log:      log,
		queueCfg: queueCfg,
		jobsCfg:  jobsCfg,
		storage:  storage,
		jobs:     svc,
		accounts: accounts.New(store,
			accounts.WithLogger(log),
			accounts.WithAfterRegister(func(ctx context.Context, u subscriptions.User) error {
				id, err := svc.EnqueueRegistrationEmail(ctx, u.Email, u.Username)
				if err == nil {
					log.InfoContext(ctx, "registration email enqueued", logger.TaskID(id), logger.UserID(u.ID))
				}
				return err
			}),
		),
		health: map[string]func(context.Context) error{
			"postgres": pg.Healthcheck(pool),
			"redis":    redis.Healthcheck(client),
		},
		close: closeAll,
	}, nil
}

// scheduler registers the recurring jobs and returns a scheduler ready to run.
func (d *deps) scheduler(ctx context.Context) (*queue.Scheduler, error) {
	scheduler, err := queue.NewScheduler(d.storage,
		queue.WithCheckInterval(d.queueCfg.SchedulerInterval),
		queue.WithSchedulerLogger(d.log),
	)
	if err != nil {
		return nil, err
	}

	registrar := jobs.NewRegistrar(scheduler, d.jobsCfg, d.log)
	if err := registrar.RegisterJobs(ctx); err != nil {
		return nil, err
	}
	if _, err := registrar.ListJobs(ctx); err != nil {
		return nil, err
	}
	return scheduler, nil
}

func allQueues() []string {
	return []string{jobs.QueueReminders, jobs.QueueReports, jobs.QueueEmails}
}

func parseQueues(s string) ([]string, error) {
	var queues []string
	for q := range strings.SplitSeq(s, ",") {
		if q = strings.TrimSpace(q); q != "" {
			queues = append(queues, q)
		}
	}
	if len(queues) == 0 {
		return nil, errors.New("at least one queue is required")
	}
	return queues, nil
}
