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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/job"
	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/options"
	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/pipeline"
	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/schedule"
	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/session"
	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/version"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "livyctl",
		Short: "livyctl runs registered Spark jobs through an Apache Livy gateway",
		Long: `livyctl runs registered Spark jobs through an Apache Livy gateway.
It opens interactive sessions, submits job code to them, waits for the results and terminates the sessions.
Sessions can be driven step by step from an external workflow, or used by whole pipelines and scheduled runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	options.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(session.NewCommand())
	cmd.AddCommand(job.NewCommand())
	cmd.AddCommand(pipeline.NewCommand())
	cmd.AddCommand(schedule.NewCommand())
	cmd.AddCommand(version.NewCommand())

	return cmd
}

func main() {
	if err := NewCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
