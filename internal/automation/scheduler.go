package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduler wraps robfig/cron with one entry per started user.
type scheduler struct {
	cron *cron.Cron
	spec string // cron spec, e.g. "@every 30m0s"
}

func newScheduler(interval time.Duration, logger *slog.Logger) *scheduler {
	l := cronLogger{logger: logger}
	return &scheduler{
		cron: cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l))),
		spec: fmt.Sprintf("@every %s", interval),
	}
}

func (s *scheduler) start() { s.cron.Start() }

// stop halts the scheduler; the returned context is done once running jobs finish.
func (s *scheduler) stop() context.Context { return s.cron.Stop() }

func (s *scheduler) add(job func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(s.spec, job)
	if err != nil {
		return 0, fmt.Errorf("cron.AddFunc: %w", err)
	}
	return id, nil
}

func (s *scheduler) remove(id cron.EntryID) { s.cron.Remove(id) }

// next returns the next activation of id, zero when unknown.
func (s *scheduler) next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// cronLogger routes cron's logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
