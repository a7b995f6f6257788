package start

import (
	"context"

	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/capacity"
	"github.com/meridian-works/meridian/internal/deadline"
	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/expense"
	"github.com/meridian-works/meridian/internal/leave"
	"github.com/meridian-works/meridian/internal/notify"
	"github.com/meridian-works/meridian/internal/trigger"
	"github.com/meridian-works/meridian/internal/trigger/cron"
	"github.com/meridian-works/meridian/internal/worker"
	"github.com/meridian-works/meridian/pkg/env"
	"github.com/meridian-works/meridian/pkg/log"
	"github.com/pkg/errors"
)

func buildNotifier(vars env.Environment, emitter *event.Emitter) notify.Notifier {
	notifiers := []notify.Notifier{notify.LogNotifier{}, notify.NewEventNotifier(emitter)}
	if vars.NotificationWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:       vars.NotificationWebhookURL,
			UserAgent: "meridian",
		}, nil))
	}
	return notify.NewFanout(notifiers...)
}

func buildAuthenticator(vars env.Environment) (*auth.Authenticator, error) {
	if vars.AuthDisabled {
		log.Warn("authentication disabled, every request runs as an administrator")
		return nil, nil
	}

	a, err := auth.New(vars.AuthSecret, vars.AuthIssuer, vars.TokenTTL)
	if err != nil {
		return nil, errors.Wrap(err, "auth configuration failure")
	}
	return a, nil
}

// buildTriggers schedules the periodic deadline sweep, utilization refresh
// and monthly leave accrual.
func buildTriggers(
	vars env.Environment,
	queue *worker.Queue,
	sweeper *deadline.Sweeper,
	capacitySvc *capacity.Service,
	leaveSvc *leave.Service,
	expenseSvc *expense.Service,
) ([]trigger.Trigger, error) {
	jobs := []struct {
		name string
		expr string
		job  worker.Job
	}{
		{"deadline_sweep", vars.DeadlineSweepSchedule, func(ctx context.Context) error {
			res, err := sweeper.Sweep(ctx)
			if err == nil {
				log.Info("deadline sweep finished", "sent", res.Sent, "failed", res.Failed, "escalations", res.Escalations)
			}
			return err
		}},
		{"utilization_refresh", vars.UtilizationRefreshSchedule, func(ctx context.Context) error {
			expired, err := capacitySvc.ExpireContracts(ctx)
			if err != nil {
				return err
			}
			refreshed, err := capacitySvc.RefreshAll(ctx)
			if err == nil {
				log.Info("utilization refreshed", "employees", refreshed, "contracts_expired", expired)
			}
			return err
		}},
		{"leave_accrual", vars.LeaveAccrualSchedule, func(ctx context.Context) error {
			n, err := leaveSvc.AccrueMonthly(ctx)
			if err == nil {
				log.Info("leave accrued", "balances", n)
			}
			return err
		}},
		{"expense_report", vars.ExpenseReportSchedule, func(ctx context.Context) error {
			_, err := expenseSvc.RefreshMonth(ctx)
			return err
		}},
	}

	triggers := make([]trigger.Trigger, 0, len(jobs))
	for _, j := range jobs {
		c, err := cron.New(j.name, j.expr, j.job, cron.WithQueue(queue))
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, c)
	}
	return triggers, nil
}
