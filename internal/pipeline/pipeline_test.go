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
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeflow/spark-livy-runner/internal/runner"
	"github.com/kubeflow/spark-livy-runner/pkg/jobs"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/livy/livytest"
)

func TestDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{Cancellation, Reactivation}, c.Names())

	p, err := c.Get("Reactivation")
	require.NoError(t, err)
	assert.Equal(t, []string{"ReactivationPullRecord", "ReactivationUpdateDWH"}, p.Jobs)

	p, err = c.Get(Cancellation)
	require.NoError(t, err)
	assert.Equal(t, []string{"CancellationPullRecord", "CancellationUpdateDWH"}, p.Jobs)

	_, err = c.Get("unknown")
	assert.ErrorContains(t, err, "must be one of cancellation, reactivation")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`pipelines:
- name: reactivation
  jobs:
  - ReactivationPullRecord
- name: training
  description: Train and benchmark
  jobs: [GetTrainingData, BenchmarkModel]
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{Cancellation, Reactivation, "training"}, c.Names())

	p, err := c.Get(Reactivation)
	require.NoError(t, err)
	assert.Equal(t, []string{"ReactivationPullRecord"}, p.Jobs)

	p, err = c.Get("training")
	require.NoError(t, err)
	assert.Equal(t, "Train and benchmark", p.Description)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"unknown-field.yaml": "pipelines:\n- name: a\n  steps: [x]\n",
		"no-jobs.yaml":       "pipelines:\n- name: a\n",
		"no-name.yaml":       "pipelines:\n- jobs: [x]\n",
		"bad-condition.yaml": "pipelines:\n- name: a\n  jobs: [x]\n  when:\n    x: days +\n",
		"not-bool.yaml":      "pipelines:\n- name: a\n  jobs: [x]\n  when:\n    x: days\n",
		"unknown-job.yaml":   "pipelines:\n- name: a\n  jobs: [x]\n  when:\n    y: days > 1\n",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		_, err := Load(path)
		assert.Error(t, err, name)
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

type observer struct {
	started []string
	done    []JobResult
}

func (o *observer) JobStarting(_ int, job string) { o.started = append(o.started, job) }
func (o *observer) JobDone(result JobResult)      { o.done = append(o.done, result) }

func newExecutor(t *testing.T, gateway *livytest.Gateway, obs Observer) *Executor {
	client, err := livy.NewClient(livy.Options{Host: gateway.URL()})
	require.NoError(t, err)
	r, err := runner.New(client, runner.Options{
		PollInterval:      time.Millisecond,
		ReadyPollInterval: time.Millisecond,
		ReadyTimeout:      5 * time.Second,
		ResultTimeout:     5 * time.Second,
	})
	require.NoError(t, err)
	registry := jobs.NewRegistry()
	require.NoError(t, jobs.RegisterBuiltins(registry))
	return &Executor{Runner: r, Registry: registry, Observer: obs}
}

func TestExecutorRunsJobsInOneSession(t *testing.T) {
	gateway := livytest.NewGateway()
	defer gateway.Close()
	gateway.StatementBodies = []string{livytest.Available("ok")}

	obs := &observer{}
	p := Defaults()[0]
	params := jobs.Params{Days: 30, Date: time.Date(2019, 9, 30, 0, 0, 0, 0, time.UTC)}
	results, err := newExecutor(t, gateway, obs).Run(context.Background(), p, params)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "ok", results[1].Result)
	assert.Equal(t, p.Jobs, obs.started)
	assert.Len(t, obs.done, 2)

	codes := gateway.Codes()
	require.Len(t, codes, 2)
	assert.Contains(t, codes[0], "get_registry()['ReactivationPullRecord']")
	assert.Contains(t, codes[0], "job = Job(sc, days=30, date='2019-09-30')")
	assert.Contains(t, codes[1], "get_registry()['ReactivationUpdateDWH']")
	assert.Equal(t, 1, gateway.Requests(http.MethodPost, "/sessions"))
	assert.Equal(t, 1, gateway.Requests(http.MethodDelete, livytest.SessionPath))
}

func TestExecutorStopsAtFirstFailure(t *testing.T) {
	gateway := livytest.NewGateway()
	defer gateway.Close()
	gateway.StatementBodies = []string{livytest.Failed("Traceback", "ValueError: no data\n")}

	results, err := newExecutor(t, gateway, nil).Run(context.Background(), Defaults()[1], jobs.Params{Days: 30})
	var remote *livy.RemoteExecutionError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "Traceback\nValueError: no data", remote.Reason)

	require.Len(t, results, 1)
	assert.Equal(t, "CancellationPullRecord", results[0].Job)
	assert.Len(t, gateway.Codes(), 1)
	assert.Equal(t, 1, gateway.Requests(http.MethodDelete, livytest.SessionPath))
}

func TestExecutorSkipsJobsWhoseConditionIsFalse(t *testing.T) {
	gateway := livytest.NewGateway()
	defer gateway.Close()
	gateway.StatementBodies = []string{livytest.Available("ok")}

	p := Defaults()[0]
	p.When = map[string]string{
		jobs.JobReactivationPullRecord: `weekday == "Sunday"`,
		jobs.JobReactivationUpdateDWH:  `days >= 30 && day == 30`,
	}
	require.NoError(t, p.Validate())

	obs := &observer{}
	params := jobs.Params{Days: 30, Date: time.Date(2019, 9, 30, 0, 0, 0, 0, time.UTC)}
	results, err := newExecutor(t, gateway, obs).Run(context.Background(), p, params)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.True(t, results[0].Skipped)
	assert.False(t, results[1].Skipped)
	assert.Equal(t, "ok", results[1].Result)
	assert.Equal(t, []string{jobs.JobReactivationUpdateDWH}, obs.started)
	require.Len(t, gateway.Codes(), 1)
	assert.Contains(t, gateway.Codes()[0], "get_registry()['ReactivationUpdateDWH']")
}
