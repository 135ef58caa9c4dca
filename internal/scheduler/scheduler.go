/*
Copyright 2025 The Kubeflow authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package scheduler runs a function on a cron schedule, one run at a time.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// RunFunc is one scheduled run. now is the time the run was due.
type RunFunc func(ctx context.Context, now time.Time) error

type runIDKey struct{}

// RunID returns the id of the scheduled run ctx was passed to, or "" outside
// of a run.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Recorder receives the outcome of every run.
type Recorder interface {
	RunFinished(name string, err error)
}

// Options configures a Scheduler.
type Options struct {
	// Name identifies the scheduled work in logs and metrics.
	Name string
	// Schedule is a standard cron expression, optionally prefixed with
	// CRON_TZ= or TZ=.
	Schedule string
	// TimeZone applies to a Schedule without a time zone prefix. Empty means
	// the local time zone.
	TimeZone string

	Clock    clock.Clock
	Recorder Recorder
	Logger   *logr.Logger
}

// Status is a snapshot of the scheduler.
type Status struct {
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
	// LastRunID is the lexically sortable id of the last run.
	LastRunID string
	LastErr   error
	Running   bool
	Runs      int
}

// Scheduler calls a RunFunc each time its schedule is due. A run that is
// still in progress when the next one is due makes the scheduler skip it.
type Scheduler struct {
	name     string
	timezone string
	run      RunFunc
	clock    clock.Clock
	recorder Recorder
	logger   logr.Logger

	reset chan struct{}

	mu       sync.Mutex
	spec     string
	schedule cron.Schedule
	status   Status
}

// ParseSchedule parses a standard cron expression. A schedule without a
// CRON_TZ= or TZ= prefix is interpreted in timezone.
func ParseSchedule(schedule, timezone string) (cron.Schedule, error) {
	if timezone == "" {
		timezone = "Local"
	} else if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %v", timezone, err)
	}

	cronSchedule := strings.TrimSpace(schedule)
	if !strings.HasPrefix(cronSchedule, "CRON_TZ=") && !strings.HasPrefix(cronSchedule, "TZ=") {
		cronSchedule = fmt.Sprintf("CRON_TZ=%s %s", timezone, cronSchedule)
	}
	s, err := cron.ParseStandard(cronSchedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %v", schedule, err)
	}
	// Next returns the zero time when no activation exists, e.g. Feb 30.
	if s.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("invalid schedule %q: never due", schedule)
	}
	return s, nil
}

// New returns a scheduler calling run on opts.Schedule.
func New(opts Options, run RunFunc) (*Scheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("run function must not be nil")
	}
	schedule, err := ParseSchedule(opts.Schedule, opts.TimeZone)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		name:     opts.Name,
		timezone: opts.TimeZone,
		run:      run,
		clock:    opts.Clock,
		recorder: opts.Recorder,
		reset:    make(chan struct{}, 1),
		spec:     opts.Schedule,
		schedule: schedule,
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	} else {
		s.logger = log.Log.WithName("scheduler")
	}
	s.status.Schedule = opts.Schedule
	return s, nil
}

// SetSchedule replaces the schedule. The next run is recomputed from now.
func (s *Scheduler) SetSchedule(schedule string) error {
	parsed, err := ParseSchedule(schedule, s.timezone)
	if err != nil {
		return err
	}

	s.mu.Lock()
	changed := s.spec != schedule
	s.spec = schedule
	s.schedule = parsed
	s.status.Schedule = schedule
	s.mu.Unlock()

	if changed {
		s.logger.Info("Schedule changed", "name", s.name, "schedule", schedule)
		select {
		case s.reset <- struct{}{}:
		default:
		}
	}
	return nil
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start runs the schedule until ctx is done. Runs are executed one after the
// other; runs that became due while another one was in progress are
// skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		now := s.clock.Now()
		s.mu.Lock()
		next := s.schedule.Next(now)
		s.status.NextRun = next
		s.mu.Unlock()
		if next.IsZero() {
			s.logger.Info("Schedule is never due, waiting for a new one", "name", s.name)
			select {
			case <-ctx.Done():
				return nil
			case <-s.reset:
				continue
			}
		}
		s.logger.Info("Next run scheduled", "name", s.name, "nextRun", next)

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.reset:
			timer.Stop()
			continue
		case <-timer.C():
		}

		s.runOnce(ctx, next)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, due time.Time) {
	id := ulid.MustNew(ulid.Timestamp(s.clock.Now()), ulid.DefaultEntropy()).String()
	s.mu.Lock()
	s.status.Running = true
	s.status.LastRun = due
	s.status.LastRunID = id
	s.mu.Unlock()

	logger := s.logger.WithValues("name", s.name, "runID", id)
	logger.Info("Next run is due", "due", due)
	err := s.run(context.WithValue(ctx, runIDKey{}, id), due)
	if err != nil {
		logger.Error(err, "Run failed", "due", due)
	} else {
		logger.Info("Run finished", "due", due)
	}
	if s.recorder != nil {
		s.recorder.RunFinished(s.name, err)
	}

	s.mu.Lock()
	s.status.Running = false
	s.status.LastErr = err
	s.status.Runs++
	s.mu.Unlock()
}
