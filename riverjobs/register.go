package riverjobs

import (
	"fmt"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSweepCron runs the nonce sweep every five minutes.
const DefaultSweepCron = "*/5 * * * *"

// RegisterSweepExpiredNoncesWorker registers the sweep worker into a River workers registry.
func RegisterSweepExpiredNoncesWorker(ws *river.Workers, store NonceSweeper, log logrus.FieldLogger) {
	river.AddWorker(ws, NewSweepExpiredNoncesWorker(store, log))
}

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(cronSpec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule '%s': %w", cronSpec, err)
	}
	return schedule, nil
}

// SweepExpiredNoncesPeriodicJob builds the periodic job that enqueues the sweep on a cron schedule.
// An empty cronSpec uses DefaultSweepCron.
func SweepExpiredNoncesPeriodicJob(cronSpec string, args SweepExpiredNoncesArgs, runOnStart bool) (*river.PeriodicJob, error) {
	if cronSpec == "" {
		cronSpec = DefaultSweepCron
	}
	schedule, err := ParseSchedule(cronSpec)
	if err != nil {
		return nil, err
	}
	opts := args.InsertOpts()
	return river.NewPeriodicJob(
		schedule,
		func() (river.JobArgs, *river.InsertOpts) { return args, &opts },
		&river.PeriodicJobOpts{RunOnStart: runOnStart},
	), nil
}
