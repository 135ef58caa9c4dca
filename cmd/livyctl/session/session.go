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
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage a session shared by separate workflow steps",
		Long: `Manage a session shared by separate workflow steps.
The session handle is saved under a key, typically the id of the workflow run, so that later steps can find it.`,
	}

	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newStateCommand())
	cmd.AddCommand(newWaitCommand())
	cmd.AddCommand(newLogsCommand())
	cmd.AddCommand(newEndCommand())

	return cmd
}
