package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler runs jobs on five-field cron specs. A job still running when
// its next tick fires is skipped for that tick.
type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	ctx     context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	logger := cronLogger{}
	return &CronScheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}
}

// AddJob schedules job. An empty spec leaves the job disabled.
func (c *CronScheduler) AddJob(job Job, spec string) error {
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", job.Name()), zap.String("spec", spec))
	if spec == "" {
		logger.Info("job disabled")
		return nil
	}
	entryID, err := c.cron.AddFunc(spec, func() {
		c.runJob(job, spec)
	})
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	c.entries[job.Name()] = entryID
	logger.Info("job scheduled")
	return nil
}

// Scheduled reports whether a job with this name has a cron entry.
func (c *CronScheduler) Scheduled(name string) bool {
	_, ok := c.entries[name]
	return ok
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) runJob(job Job, spec string) {
	logger := logutil.GetLogger(c.ctx).With(
		zap.String("job", job.Name()),
		zap.String("spec", spec),
	)
	start := time.Now()
	logger.Info("job started")
	err := job.Run(c.ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return
	}
	logger.Info("job finished", zap.Duration("duration", elapsed))
}

// cronLogger routes robfig/cron's own messages through zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logutil.GetLogger(context.Background()).Debug(msg, zap.Any("details", keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logutil.GetLogger(context.Background()).Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
