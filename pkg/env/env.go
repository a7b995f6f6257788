package env

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/meridian-works/meridian/pkg/log"
	"github.com/pkg/errors"
)

var variables = new(Environment)

// Process the environment variables set for meridian.
func Process() error {
	if err := envconfig.Process("meridian", variables); err != nil {
		return errors.Wrap(err, "failed to process environment variables")
	}

	// set the log level
	if err := log.SetLevel(variables.LogLevel); err != nil {
		return errors.Wrap(err, "failed to set log level")
	}

	if variables.WorkingHoursPerDay < 0 {
		return errors.New("working hours per day must not be negative")
	}

	for _, offset := range variables.ReminderOffsetsDays {
		if offset < 0 {
			return errors.Errorf("reminder offset %d must not be negative", offset)
		}
	}

	if variables.ReminderHour < 0 || variables.ReminderHour > 23 {
		return errors.Errorf("reminder hour %d out of range", variables.ReminderHour)
	}

	return nil
}

// Variables returns the processed environment variables.
func Variables() Environment {
	return *variables
}

// Environment defines the environment variables used
// by meridian.
type Environment struct {
	LogLevel     string `default:"info"`
	Port         int    `default:"8080"`
	DatabaseType string `default:"sqlite"`
	DatabaseDSN  string `default:"file:meridian.db?cache=shared"`

	WorkingHoursPerDay   float64       `default:"8"`
	ReminderOffsetsDays  []int         `default:"2,1"`
	ReminderHour         int           `default:"9"`
	NotificationDebounce time.Duration `default:"10s"`

	DeadlineSweepSchedule      string  `default:"*/5 * * * *"`
	UtilizationRefreshSchedule string  `default:"0 * * * *"`
	LeaveAccrualSchedule       string  `default:"0 0 1 * *"`
	ExpenseReportSchedule      string  `default:"0 2 * * *"`
	DefaultWeekHours           float64 `default:"40"`

	AuthSecret   string        `default:""`
	AuthIssuer   string        `default:"meridian"`
	AuthDisabled bool          `default:"false"`
	TokenTTL     time.Duration `default:"24h"`

	NATSURL                string `default:""`
	NotificationWebhookURL string `default:""`

	ReportStore    string `default:"fs"`
	ReportDir      string `default:"reports"`
	ReportBucket   string `default:""`
	ReportRegion   string `default:"us-east-1"`
	ReportEndpoint string `default:""`

	WorkerPoolSize    int           `default:"4"`
	WorkerBacklog     int           `default:"256"`
	BurndownCacheTTL  time.Duration `default:"5m"`
	BurndownCacheSize int           `default:"256"`
}
