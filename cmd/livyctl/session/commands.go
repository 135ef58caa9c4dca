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

package session

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/options"
	"github.com/kubeflow/spark-livy-runner/internal/handle"
	"github.com/kubeflow/spark-livy-runner/pkg/common"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/util"
)

var (
	wait   bool
	offset int
	size   int
)

func newStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <key>",
		Short: "Open a session and save its handle under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			steps, err := options.NewSteps(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			key := args[0]
			h, err := steps.Start(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %d started at %s\n", h.ID, h.Path)

			if wait {
				if err := steps.Wait(cmd.Context(), key); err != nil {
					return fmt.Errorf("session %s did not become ready: %w", h.Path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %d is %s\n", h.ID, livy.SessionStateIdle)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the session is ready.")
	return cmd
}

func newStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "state <key>",
		Short: "Print the state of the session saved under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			steps, err := options.NewSteps(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			key := args[0]
			h, err := steps.Handle(cmd.Context(), key)
			if err != nil {
				return err
			}
			state, err := steps.State(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("failed to get session state: %w", err)
			}
			printState(key, h, state)
			return nil
		},
	}
}

func newWaitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wait <key>",
		Short: "Wait until the session saved under key is ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			steps, err := options.NewSteps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return util.RunInterruptible(cmd.Context(), nil, func(ctx context.Context) error {
				return steps.Wait(ctx, args[0])
			})
		},
	}
}

func newLogsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <key>",
		Short: "Print the logs of the session saved under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			steps, err := options.NewSteps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			lines, err := steps.Logs(cmd.Context(), args[0], offset, size)
			if err != nil {
				return fmt.Errorf("failed to get session logs: %w", err)
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", common.DefaultLogOffset, "Index of the first log line.")
	cmd.Flags().IntVar(&size, "size", common.DefaultLogSize, "Maximum number of log lines.")
	return cmd
}

func newEndCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "end <key>",
		Short: "Terminate the session saved under key and remove its handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			steps, err := options.NewSteps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := steps.End(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to end session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session terminated")
			return nil
		},
	}
}

func printState(key string, h handle.Handle, state livy.SessionState) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Session", "Path", "Kind", "State", "Age"})
	table.Append([]string{
		key,
		fmt.Sprintf("%d", h.ID),
		h.Path,
		util.FormatNotAvailable(h.Kind),
		string(state),
		util.GetSinceTime(h.CreatedAt),
	})
	table.Render()
}
