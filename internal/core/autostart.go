package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron ensures the expression is a valid 5-field cron definition and
// returns the underlying schedule.
func ParseCron(expr string) (cron.Schedule, error) {
	if strings.HasPrefix(strings.TrimSpace(expr), "@") {
		return nil, errors.New("only 5-field cron expressions are supported")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// NextOccurrences returns the next n trigger times from a base time.
func NextOccurrences(schedule cron.Schedule, base time.Time, n int) []time.Time {
	times := make([]time.Time, 0, n)
	next := base
	for i := 0; i < n; i++ {
		next = schedule.Next(next)
		times = append(times, next)
	}
	return times
}

// Starter is the slice of the engine the auto-starter drives.
type Starter interface {
	Start(ctx context.Context) error
}

// AutoStarter begins a cycling run at each trigger of a cron expression. A
// trigger while a run is already active is a no-op, since Engine.Start is.
type AutoStarter struct {
	cron    *cron.Cron
	starter Starter
	logger  *slog.Logger
}

func NewAutoStarter(starter Starter, logger *slog.Logger) *AutoStarter {
	return &AutoStarter{
		cron:    cron.New(cron.WithParser(cronParser)),
		starter: starter,
		logger:  logger,
	}
}

// Arm schedules automatic starts at each trigger of expr and begins the
// underlying cron loop.
func (a *AutoStarter) Arm(expr string) error {
	schedule, err := ParseCron(expr)
	if err != nil {
		return err
	}
	a.cron.Schedule(schedule, cron.FuncJob(func() {
		if err := a.starter.Start(context.Background()); err != nil {
			a.logger.Error("scheduled start failed", "err", err)
			return
		}
		a.logger.Info("scheduled start triggered", "cron", expr)
	}))
	a.cron.Start()
	next := NextOccurrences(schedule, time.Now(), 1)
	if len(next) == 1 {
		a.logger.Info("autostart armed", "cron", expr, "next", next[0])
	}
	return nil
}

// Stop halts the cron loop and returns a context that is done once any
// in-flight trigger dispatch finished.
func (a *AutoStarter) Stop() context.Context {
	return a.cron.Stop()
}
