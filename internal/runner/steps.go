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

package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/kubeflow/spark-livy-runner/internal/handle"
	"github.com/kubeflow/spark-livy-runner/pkg/jobtemplate"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
)

// Steps splits a session's life into steps that run as separate processes,
// for example the tasks of an externally scheduled workflow. The session
// handle is passed between steps through a handle store under a key.
type Steps struct {
	runner *Runner
	store  handle.Store
}

func NewSteps(runner *Runner, store handle.Store) *Steps {
	return &Steps{runner: runner, store: store}
}

// Start opens a session and saves its handle under key. It does not wait for
// the session to become ready.
func (s *Steps) Start(ctx context.Context, key string) (handle.Handle, error) {
	if err := handle.ValidateKey(key); err != nil {
		return handle.Handle{}, err
	}
	session, err := s.runner.CreateSession(ctx)
	if err != nil {
		return handle.Handle{}, err
	}

	h := handle.FromSession(session, s.runner.client.Host(), s.runner.clock.Now())
	if err := s.store.Save(ctx, key, h); err != nil {
		if endErr := s.runner.EndSession(ctx, session); endErr != nil {
			s.runner.logger.Error(endErr, "Failed to terminate session", "session", session.Path)
		}
		return handle.Handle{}, err
	}
	s.runner.logger.Info("Saved session handle", "key", key, "session", session.Path)
	return h, nil
}

// Handle returns the handle saved under key.
func (s *Steps) Handle(ctx context.Context, key string) (handle.Handle, error) {
	return s.store.Load(ctx, key)
}

// State returns the current state of the session saved under key.
func (s *Steps) State(ctx context.Context, key string) (livy.SessionState, error) {
	session, err := s.load(ctx, key)
	if err != nil {
		return "", err
	}
	return s.runner.client.GetSessionState(ctx, session.Path)
}

// Wait waits until the session saved under key is ready.
func (s *Steps) Wait(ctx context.Context, key string) error {
	session, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	return s.runner.WaitReady(ctx, session)
}

// Logs returns log lines of the session saved under key.
func (s *Steps) Logs(ctx context.Context, key string, offset, size int) ([]string, error) {
	session, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.runner.client.GetSessionLogs(ctx, session.Path, offset, size)
}

// Run runs inv in the session saved under key.
func (s *Steps) Run(ctx context.Context, key string, inv jobtemplate.Invocation) (string, error) {
	session, err := s.load(ctx, key)
	if err != nil {
		return "", err
	}
	return s.runner.RunJob(ctx, session, inv)
}

// End terminates the session saved under key and removes its handle. The
// handle is removed even if termination fails.
func (s *Steps) End(ctx context.Context, key string) error {
	session, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	endErr := s.runner.EndSession(ctx, session)
	delErr := s.store.Delete(context.WithoutCancel(ctx), key)
	if errors.Is(delErr, handle.ErrNotFound) {
		delErr = nil
	}
	return errors.Join(endErr, delErr)
}

func (s *Steps) load(ctx context.Context, key string) (*livy.Session, error) {
	h, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if h.Host != "" && h.Host != s.runner.client.Host() {
		return nil, fmt.Errorf("session handle %s belongs to gateway %s, not %s", key, h.Host, s.runner.client.Host())
	}
	return h.Session(), nil
}
