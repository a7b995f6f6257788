package start

import (
	"context"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/meridian-works/meridian/api"
	"github.com/meridian-works/meridian/api/rest/bind"
	"github.com/meridian-works/meridian/internal/capacity"
	"github.com/meridian-works/meridian/internal/deadline"
	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/expense"
	"github.com/meridian-works/meridian/internal/leave"
	"github.com/meridian-works/meridian/internal/metrics"
	"github.com/meridian-works/meridian/internal/planimport"
	"github.com/meridian-works/meridian/internal/progress"
	"github.com/meridian-works/meridian/internal/schedule"
	"github.com/meridian-works/meridian/internal/storage"
	"github.com/meridian-works/meridian/internal/worker"
	"github.com/meridian-works/meridian/pkg/db"
	"github.com/meridian-works/meridian/pkg/env"
	"github.com/meridian-works/meridian/pkg/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	usage   = "start"
	short   = "Start a meridian server"
	long    = "This command migrates the database and serves the meridian API along with its background schedules"
	example = "meridian start"
)

var (
	// Cmd is the start command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"s"},
		SuggestFor: []string{"launch", "boot", "up", "run", "serve"},
		Example:    example,
		RunE:       start,
	}
)

func start(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go dumpOnSignal(ctx)

	vars := env.Variables()
	conn := db.Connection()

	log.Info("migrating database")
	if err := db.Migrate(conn); err != nil {
		return err
	}

	metrics.Register()

	emitter, err := buildEmitter(vars)
	if err != nil {
		return err
	}
	defer func() {
		if err := emitter.Close(); err != nil {
			log.Error("event publisher close failure", "error", err)
		}
	}()

	queue := worker.NewQueue(ctx, worker.NewPool(vars.WorkerPoolSize), worker.WithBacklog(vars.WorkerBacklog))
	defer queue.Wait()

	sweeper := deadline.NewSweeper(conn, buildNotifier(vars, emitter), vars.NotificationDebounce)
	scheduler := deadline.NewScheduler(conn, deadline.Config{
		OffsetsDays: vars.ReminderOffsetsDays,
		Hour:        vars.ReminderHour,
		Debounce:    vars.NotificationDebounce,
	}, sweeper, queue)

	capacitySvc := capacity.NewService(conn, vars.DefaultWeekHours)
	leaveSvc := leave.NewService(conn, leave.WithEmitter(emitter))
	expenseSvc := expense.NewService(conn, expense.WithEmitter(emitter))
	progressSvc := progress.NewService(conn, vars.BurndownCacheSize, vars.BurndownCacheTTL)

	store, err := storage.New(ctx, vars)
	if err != nil {
		return errors.Wrap(err, "report store configuration failure")
	}
	log.Info("report store configured", "store", store.Name())

	authenticator, err := buildAuthenticator(vars)
	if err != nil {
		return err
	}

	triggers, err := buildTriggers(vars, queue, sweeper, capacitySvc, leaveSvc, expenseSvc)
	if err != nil {
		return err
	}
	for _, t := range triggers {
		go t.Listen(ctx)
	}

	deps := bind.Dependencies{
		DB:        conn,
		Engine:    schedule.NewEngine(conn, vars.WorkingHoursPerDay, schedule.WithEmitter(emitter), schedule.WithRescheduler(scheduler)),
		Scheduler: scheduler,
		Capacity:  capacitySvc,
		Leave:     leaveSvc,
		Expense:   expenseSvc,
		Progress:  progressSvc,
		Reporter:  progress.NewReporter(progressSvc, store, emitter),
		Importer:  planimport.NewImporter(conn, scheduler),
		Queue:     queue,
		Emitter:   emitter,
	}

	log.Info("spinning up api")
	err = api.Start(ctx, api.New(deps, api.Options{Authenticator: authenticator}), vars.Port)

	log.Info("shutting down")
	return err
}

func dumpOnSignal(ctx context.Context) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1)
	defer signal.Stop(signals)

	for {
		select {
		case <-signals:
			log.Info("dumping stack traces due to SIGUSR1 signal")
			if profile := pprof.Lookup("goroutine"); profile != nil {
				if err := profile.WriteTo(os.Stdout, 1); err != nil {
					log.Error("write goroutine profile", "error", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func buildEmitter(vars env.Environment) (*event.Emitter, error) {
	var publisher event.Publisher
	if vars.NATSURL != "" {
		nats, err := event.NewNATSPublisher(vars.NATSURL)
		if err != nil {
			return nil, errors.Wrap(err, "nats connection failure")
		}
		log.Info("publishing events to nats", "url", vars.NATSURL)
		publisher = nats
	}
	return event.NewEmitter(event.NewBus(), publisher), nil
}
