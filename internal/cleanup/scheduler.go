package cleanup

import (
	"context"
	"matchchat/backend/internal/logger"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type entry struct {
	spec string
	job  Job
}

// Scheduler fires jobs on cron schedules through a Runner.
type Scheduler struct {
	runner  *Runner
	parser  cron.Parser
	entries []entry
	log     *zap.Logger
}

func NewScheduler(runner *Runner, log *zap.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		log:    logger.OrNop(log).Named("scheduler"),
	}
}

// Add registers job under a cron spec such as "*/15 * * * *" or "@every 1h".
func (s *Scheduler) Add(spec string, job Job) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return errors.Wrapf(err, "schedule %s", job.Name())
	}
	s.entries = append(s.entries, entry{spec: spec, job: job})
	return nil
}

// Run starts the schedule and blocks until ctx is done, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLogger(cronLogger{s.log.Sugar()}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.log.Sugar()})),
	)
	for _, e := range s.entries {
		job := e.job
		if _, err := c.AddFunc(e.spec, func() {
			if _, _, err := s.runner.RunGuarded(ctx, job); err != nil {
				s.log.Error("scheduled job failed", zap.String("job", job.Name()), zap.Error(err))
			}
		}); err != nil {
			return errors.Wrapf(err, "schedule %s", job.Name())
		}
		s.log.Info("job scheduled", zap.String("job", job.Name()), zap.String("spec", e.spec))
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
