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

package job

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/options"
	"github.com/kubeflow/spark-livy-runner/pkg/common"
	"github.com/kubeflow/spark-livy-runner/pkg/jobs"
	"github.com/kubeflow/spark-livy-runner/pkg/jobtemplate"
	"github.com/kubeflow/spark-livy-runner/pkg/util"
)

var (
	key    string
	date   string
	days   int
	args   []string
	kwargs []string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Run registered jobs",
	}
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newListCommand())
	return cmd
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a registered job and print its result",
		Long: `Run a registered job and print its result.
With --key the job runs in the session saved under that key by "session start". Without it the job runs in a session of its own, which is terminated afterwards.
Argument values are inserted into the job code as they are given: quote string values, e.g. --kwarg "table='users'".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			inv, err := invocation(cmdArgs[0])
			if err != nil {
				return err
			}

			var result string
			err = util.RunInterruptible(cmd.Context(), nil, func(ctx context.Context) error {
				if key != "" {
					steps, err := options.NewSteps(ctx, cfg)
					if err != nil {
						return err
					}
					result, err = steps.Run(ctx, key, inv)
					return err
				}
				r, err := options.NewRunner(cfg, options.NewRecorder(cfg))
				if err != nil {
					return err
				}
				result, err = r.Run(ctx, inv.JobKey, inv.Args, inv.Kwargs)
				return err
			})
			if err != nil {
				return fmt.Errorf("job %s failed: %w", inv.JobKey, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Key of a session saved by \"session start\".")
	cmd.Flags().StringVar(&date, "date", "", "Processing date as YYYY-MM-DD. Defaults to today in UTC.")
	cmd.Flags().IntVar(&days, "days", common.DefaultDays, "Number of days to process. Zero omits the argument, e.g. to pass days through --kwarg.")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "Positional job argument, repeatable.")
	cmd.Flags().StringArrayVar(&kwargs, "kwarg", nil, "Keyword job argument as name=value, repeatable. days needs --days 0; date is set with --date.")
	return cmd
}

func invocation(name string) (jobtemplate.Invocation, error) {
	registry, err := options.NewRegistry()
	if err != nil {
		return jobtemplate.Invocation{}, err
	}
	params, err := parseParams(date, days, kwargs, time.Now())
	if err != nil {
		return jobtemplate.Invocation{}, err
	}
	inv := registry.Invocation(name, params)
	inv.Args = append(inv.Args, args...)
	return inv, nil
}

// parseParams builds the job parameters from flag values. An empty date
// selects the UTC date of now.
func parseParams(date string, days int, kwargs []string, now time.Time) (jobs.Params, error) {
	params := jobs.Params{Days: days, Date: now.UTC().Truncate(24 * time.Hour)}
	if date != "" {
		d, err := time.Parse(common.DateLayout, date)
		if err != nil {
			return jobs.Params{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %v", date, err)
		}
		params.Date = d
	}
	extra, err := jobtemplate.ParseKwargs(kwargs)
	if err != nil {
		return jobs.Params{}, err
	}
	for _, kwarg := range extra {
		switch {
		case kwarg.Name == common.ParamDate:
			return jobs.Params{}, fmt.Errorf("keyword argument %s is set with --date", common.ParamDate)
		case kwarg.Name == common.ParamDays && days > 0:
			return jobs.Params{}, fmt.Errorf("keyword argument %s is set with --days, pass --days 0 to give it through --kwarg", common.ParamDays)
		}
	}
	params.Extra = extra
	return params, nil
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered jobs",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			registry, err := options.NewRegistry()
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Name", "Description"})
			for _, name := range registry.Names() {
				table.Append([]string{name, util.FormatNotAvailable(registry.Description(name))})
			}
			table.Render()
			return nil
		},
	}
}
