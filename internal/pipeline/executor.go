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

package pipeline

import (
	"context"
	"time"

	"github.com/kubeflow/spark-livy-runner/internal/runner"
	"github.com/kubeflow/spark-livy-runner/pkg/jobs"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
)

// JobResult is the outcome of one job of a pipeline run.
type JobResult struct {
	Index  int
	Job    string
	Result string
	Err    error
	// Skipped is set when the condition of the job was false.
	Skipped  bool
	Duration time.Duration
}

// Observer is notified before and after each job.
type Observer interface {
	JobStarting(index int, job string)
	JobDone(result JobResult)
}

// Executor runs pipelines through a runner.
type Executor struct {
	Runner   *runner.Runner
	Registry *jobs.Registry
	Observer Observer
}

// Run opens one session, runs the jobs of p in it and terminates it. It
// stops at the first failed job and returns its error unchanged, together
// with the results so far.
func (e *Executor) Run(ctx context.Context, p Pipeline, params jobs.Params) ([]JobResult, error) {
	var results []JobResult
	err := e.Runner.WithSession(ctx, func(ctx context.Context, session *livy.Session) error {
		var err error
		results, err = e.RunIn(ctx, session, p, params)
		return err
	})
	return results, err
}

// RunIn runs the jobs of p in order in an open session, stopping at the
// first failed job. Jobs whose condition is false are reported as skipped.
func (e *Executor) RunIn(ctx context.Context, session *livy.Session, p Pipeline, params jobs.Params) ([]JobResult, error) {
	results := make([]JobResult, 0, len(p.Jobs))
	for i, job := range p.Jobs {
		run, err := p.shouldRun(job, params)
		if err != nil {
			return results, err
		}
		if !run {
			res := JobResult{Index: i, Job: job, Skipped: true}
			results = append(results, res)
			if e.Observer != nil {
				e.Observer.JobDone(res)
			}
			continue
		}
		if e.Observer != nil {
			e.Observer.JobStarting(i, job)
		}
		start := time.Now()
		result, err := e.Runner.RunJob(ctx, session, e.Registry.Invocation(job, params))
		res := JobResult{Index: i, Job: job, Result: result, Err: err, Duration: time.Since(start)}
		results = append(results, res)
		if e.Observer != nil {
			e.Observer.JobDone(res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
