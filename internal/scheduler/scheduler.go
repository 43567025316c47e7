// Package scheduler runs a recurring task on a fixed interval.
package scheduler

import (
	"time"

	"go.uber.org/zap"
)

// Task is a unit of periodic work. It must not block for long.
type Task func(now time.Time)

// Scheduler defines the lifecycle of a periodic runner.
type Scheduler interface {
	Start()
	Stop()
}

type scheduler struct {
	log    *zap.Logger
	name   string
	task   Task
	ticker *time.Ticker
	quit   chan struct{}
	done   chan struct{}
}

// New builds a scheduler that invokes task every interval.
func New(name string, interval time.Duration, task Task, logger *zap.Logger) Scheduler {
	return &scheduler{
		log:    logger,
		name:   name,
		task:   task,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		ticker: time.NewTicker(interval),
	}
}

// Start runs the tick loop until Stop is called. The task fires once
// immediately so a restart never waits a full interval to catch up.
func (s *scheduler) Start() {
	defer close(s.done)
	s.run()
	for {
		select {
		case <-s.ticker.C:
			s.run()
		case <-s.quit:
			s.ticker.Stop()
			return
		}
	}
}

// Stop shuts the scheduler down and waits for an in-flight run to finish.
// No run starts after Stop returns.
func (s *scheduler) Stop() {
	close(s.quit)
	<-s.done
}

func (s *scheduler) run() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked", zap.String("task", s.name), zap.Any("panic", r))
		}
	}()
	s.task(time.Now())
}
