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

// Package runner runs registered jobs in remote sessions: it opens a
// session, waits for it to become ready, submits rendered job code, waits
// for the result and always terminates the session it opened.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/kubeflow/spark-livy-runner/pkg/common"
	"github.com/kubeflow/spark-livy-runner/pkg/jobtemplate"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
)

// Recorder receives job and session events, typically to export metrics.
type Recorder interface {
	JobStarted(job string)
	JobFinished(job string, duration time.Duration, err error)
	SessionCreated()
	SessionReady(latency time.Duration)
	SessionTerminated(err error)
}

type nopRecorder struct{}

func (nopRecorder) JobStarted(string)                        {}
func (nopRecorder) JobFinished(string, time.Duration, error) {}
func (nopRecorder) SessionCreated()                          {}
func (nopRecorder) SessionReady(time.Duration)               {}
func (nopRecorder) SessionTerminated(error)                  {}

// Options configures a Runner.
type Options struct {
	// PollInterval is the wait between two statement result checks.
	PollInterval time.Duration
	// ReadyPollInterval is the wait between two session state checks.
	ReadyPollInterval time.Duration
	// ReadyTimeout bounds the wait for a new session to become idle.
	ReadyTimeout time.Duration
	// ResultTimeout bounds the whole wait after submission, the session
	// settling and the statement result together. Zero means the wait is
	// bounded only by the context.
	ResultTimeout time.Duration
	// TerminateTimeout bounds session termination, which is not cancelled
	// together with the caller's context.
	TerminateTimeout time.Duration

	// Session is the creation request of every session the runner opens.
	Session livy.CreateSessionRequest

	Renderer *jobtemplate.Renderer
	Recorder Recorder
	Clock    clock.PassiveClock
	Logger   *logr.Logger
}

// Runner runs jobs through a gateway client.
type Runner struct {
	client   *livy.Client
	opts     Options
	renderer *jobtemplate.Renderer
	recorder Recorder
	clock    clock.PassiveClock
	logger   logr.Logger
}

// New returns a runner using client. Zero options take their defaults.
func New(client *livy.Client, opts Options) (*Runner, error) {
	if client == nil {
		return nil, errors.New("livy client must not be nil")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = common.DefaultPollInterval
	}
	if opts.ReadyPollInterval <= 0 {
		opts.ReadyPollInterval = common.DefaultReadyPollInterval
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = common.DefaultReadyTimeout
	}
	if opts.TerminateTimeout <= 0 {
		opts.TerminateTimeout = common.DefaultTerminateTimeout
	}

	r := &Runner{
		client:   client,
		opts:     opts,
		renderer: opts.Renderer,
		recorder: opts.Recorder,
		clock:    opts.Clock,
	}
	if r.renderer == nil {
		renderer, err := jobtemplate.NewRenderer("", "")
		if err != nil {
			return nil, err
		}
		r.renderer = renderer
	}
	if r.recorder == nil {
		r.recorder = nopRecorder{}
	}
	if r.clock == nil {
		r.clock = clock.RealClock{}
	}
	if opts.Logger != nil {
		r.logger = *opts.Logger
	} else {
		r.logger = log.Log.WithName("runner")
	}
	return r, nil
}

// Client returns the gateway client of the runner.
func (r *Runner) Client() *livy.Client {
	return r.client
}

// CreateSession opens a session without waiting for it.
func (r *Runner) CreateSession(ctx context.Context) (*livy.Session, error) {
	session, err := r.client.CreateSession(ctx, r.opts.Session)
	if err != nil {
		return nil, err
	}
	r.recorder.SessionCreated()
	return session, nil
}

// WaitReady polls the session until it is idle. A session that ends first
// is reported as a RemoteExecutionError.
func (r *Runner) WaitReady(ctx context.Context, session *livy.Session) error {
	start := r.clock.Now()
	state, err := r.client.WaitForSessionState(ctx, session.Path, livy.ReadyStates, livy.EndedStates, livy.PollOptions{
		Interval: r.opts.ReadyPollInterval,
		Timeout:  r.opts.ReadyTimeout,
	})
	session.State = state
	if err != nil {
		return err
	}
	r.recorder.SessionReady(r.clock.Since(start))
	return nil
}

// StartSession opens a session and waits until it is ready. If it never
// becomes ready it is terminated before the error is returned.
func (r *Runner) StartSession(ctx context.Context) (*livy.Session, error) {
	session, err := r.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.WaitReady(ctx, session); err != nil {
		if endErr := r.EndSession(ctx, session); endErr != nil {
			r.logger.Error(endErr, "Failed to terminate session", "session", session.Path)
		}
		return nil, err
	}
	return session, nil
}

// EndSession terminates the session. It runs even when ctx is already
// cancelled, bounded by the terminate timeout.
func (r *Runner) EndSession(ctx context.Context, session *livy.Session) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.TerminateTimeout)
	defer cancel()

	err := r.client.TerminateSession(ctx, session.Path)
	r.recorder.SessionTerminated(err)
	return err
}

// RunJob renders inv, submits it to session and waits for its printed
// result. The session state is polled until the session settles before the
// statement itself is polled.
func (r *Runner) RunJob(ctx context.Context, session *livy.Session, inv jobtemplate.Invocation) (string, error) {
	code, err := r.renderer.Render(inv)
	if err != nil {
		return "", err
	}

	logger := r.logger.WithValues("job", inv.JobKey, "session", session.Path)
	logger.Info("Submitting job")
	r.recorder.JobStarted(inv.JobKey)
	start := r.clock.Now()

	result, err := r.execute(ctx, session, code)
	r.recorder.JobFinished(inv.JobKey, r.clock.Since(start), err)
	if err != nil {
		logger.Error(err, "Job failed", "reason", livy.Reason(err))
		return "", err
	}
	logger.Info("Job finished", "duration", r.clock.Since(start).Round(time.Millisecond))
	return result, nil
}

func (r *Runner) execute(ctx context.Context, session *livy.Session, code string) (string, error) {
	statement, err := r.client.SubmitStatement(ctx, session.Path, code)
	if err != nil {
		return "", err
	}

	var deadline time.Time
	if r.opts.ResultTimeout > 0 {
		deadline = r.clock.Now().Add(r.opts.ResultTimeout)
	}
	state, err := r.client.WaitForSessionState(ctx, session.Path, livy.SettledStates, nil, livy.PollOptions{
		Interval: r.opts.ReadyPollInterval,
		Timeout:  r.opts.ResultTimeout,
	})
	if err != nil {
		return "", err
	}
	session.State = state

	var left time.Duration
	if !deadline.IsZero() {
		if left = deadline.Sub(r.clock.Now()); left <= 0 {
			return "", &livy.TimeoutError{Op: "await statement result", Path: statement.Path, Waited: r.opts.ResultTimeout}
		}
	}
	return r.client.AwaitResult(ctx, statement.Path, livy.PollOptions{
		Interval: r.opts.PollInterval,
		Timeout:  left,
	})
}

// WithSession opens a ready session, calls fn with it and terminates it
// whatever fn returns, including after ctx is cancelled. The error of fn is
// returned unchanged. A termination failure is returned only when fn
// succeeded; otherwise it is logged.
func (r *Runner) WithSession(ctx context.Context, fn func(ctx context.Context, session *livy.Session) error) (err error) {
	session, err := r.CreateSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		endErr := r.EndSession(ctx, session)
		if endErr == nil {
			return
		}
		if err != nil {
			r.logger.Error(endErr, "Failed to terminate session", "session", session.Path)
			return
		}
		err = fmt.Errorf("failed to terminate session %s: %w", session.Path, endErr)
	}()

	if err := r.WaitReady(ctx, session); err != nil {
		return err
	}
	return fn(ctx, session)
}

// Run runs one job in a session of its own.
func (r *Runner) Run(ctx context.Context, jobKey string, args []string, kwargs []jobtemplate.Kwarg) (string, error) {
	var result string
	err := r.WithSession(ctx, func(ctx context.Context, session *livy.Session) error {
		var err error
		result, err = r.RunJob(ctx, session, jobtemplate.Invocation{JobKey: jobKey, Args: args, Kwargs: kwargs})
		return err
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
