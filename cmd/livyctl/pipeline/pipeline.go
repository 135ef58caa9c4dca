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
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/options"
	"github.com/kubeflow/spark-livy-runner/internal/pipeline"
	"github.com/kubeflow/spark-livy-runner/internal/runner"
	"github.com/kubeflow/spark-livy-runner/pkg/common"
	"github.com/kubeflow/spark-livy-runner/pkg/jobs"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/util"
)

var (
	date string
	days int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run pipelines of jobs in one session",
	}
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newListCommand())
	return cmd
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [name]",
		Short: "Run a pipeline, reactivation by default",
		Long: `Run a pipeline, reactivation by default.
All jobs of the pipeline run in one session, which is terminated at the end even when a job fails.
A failed job is reported and ends the pipeline; the command only fails when the session cannot be started or terminated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			catalog, err := pipeline.Load(cfg.PipelinesFile)
			if err != nil {
				return err
			}
			name := pipeline.Reactivation
			if len(args) > 0 {
				name = args[0]
			}
			p, err := catalog.Get(name)
			if err != nil {
				return err
			}
			params, err := parseParams(date, days, time.Now())
			if err != nil {
				return err
			}

			r, err := options.NewRunner(cfg, options.NewRecorder(cfg))
			if err != nil {
				return err
			}
			registry, err := options.NewRegistry()
			if err != nil {
				return err
			}
			h := &harness{out: cmd.OutOrStdout(), runner: r, registry: registry}
			return util.RunInterruptible(cmd.Context(), nil, func(ctx context.Context) error {
				return h.run(ctx, p, params)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Processing date as YYYY-MM-DD. Defaults to today in UTC.")
	cmd.Flags().IntVar(&days, "days", common.DefaultDays, "Number of days to process.")
	return cmd
}

func parseParams(date string, days int, now time.Time) (jobs.Params, error) {
	params := jobs.Params{Days: days, Date: now.UTC().Truncate(24 * time.Hour)}
	if date != "" {
		d, err := time.Parse(common.DateLayout, date)
		if err != nil {
			return jobs.Params{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %v", date, err)
		}
		params.Date = d
	}
	return params, nil
}

// harness runs a pipeline interactively and prints its progress.
type harness struct {
	out      io.Writer
	runner   *runner.Runner
	registry *jobs.Registry
}

var _ pipeline.Observer = &harness{}

func (h *harness) banner(title string) {
	fmt.Fprintf(h.out, "-----------------\n%s\n-----------------\n\n", title)
}

func (h *harness) JobStarting(index int, job string) {
	h.banner(fmt.Sprintf("Job %d\nRunning: %s", index+1, job))
}

func (h *harness) JobDone(result pipeline.JobResult) {
	if result.Err != nil {
		return
	}
	if result.Skipped {
		fmt.Fprintf(h.out, "Job %d skipped: %s\n\n", result.Index+1, result.Job)
		return
	}
	fmt.Fprintf(h.out, "Job %d result: %s\n=================\n\n", result.Index+1, result.Result)
}

// run starts a session, runs p in it and always terminates it. A remote
// job failure is printed and does not fail the run; a failed session start
// or termination does.
func (h *harness) run(ctx context.Context, p pipeline.Pipeline, params jobs.Params) error {
	session, err := h.runner.StartSession(ctx)
	if err != nil {
		if livy.IsTransportError(err) {
			fmt.Fprintf(h.out, ":Error\n:Livy gateway at %s is not reachable\n:Make sure Spark and Livy are running\n", h.runner.Client().Host())
		}
		return fmt.Errorf("failed to start session: %w", err)
	}

	executor := &pipeline.Executor{Runner: h.runner, Registry: h.registry, Observer: h}
	_, jobErr := executor.RunIn(ctx, session, p, params)
	if jobErr != nil {
		h.banner("Error encountered")
		fmt.Fprintf(h.out, "%s\n=================\n\n", strings.TrimSpace(describe(jobErr)))
	}

	h.banner("Killing Session")
	if err := h.runner.EndSession(ctx, session); err != nil {
		return fmt.Errorf("failed to terminate session %s: %w", session.Path, err)
	}
	fmt.Fprintln(h.out, "Spark Session Killed")

	if jobErr != nil && !livy.IsRemoteExecutionError(jobErr) {
		return jobErr
	}
	return nil
}

func describe(err error) string {
	var remote *livy.RemoteExecutionError
	if errors.As(err, &remote) {
		return remote.Reason
	}
	return err.Error()
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the pipelines",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			catalog, err := pipeline.Load(cfg.PipelinesFile)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Name", "Jobs", "Description"})
			for _, name := range catalog.Names() {
				p, _ := catalog.Get(name)
				table.Append([]string{p.Name, strings.Join(p.Jobs, ", "), util.FormatNotAvailable(p.Description)})
			}
			table.Render()
			return nil
		},
	}
}
