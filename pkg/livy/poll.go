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

package livy

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/kubeflow/spark-livy-runner/pkg/common"
)

// PollOptions bounds a poll loop.
type PollOptions struct {
	// Interval is the fixed wait between two checks.
	Interval time.Duration
	// Timeout is the maximum total wait. Zero means the loop is bounded only
	// by the context.
	Timeout time.Duration
}

func (o PollOptions) interval() time.Duration {
	if o.Interval <= 0 {
		return common.DefaultPollInterval
	}
	return o.Interval
}

// poll runs condition immediately and then every interval until it reports
// done or fails. Cancellation of ctx is returned wrapped so that errors.Is
// matches context.Canceled or context.DeadlineExceeded; hitting opts.Timeout
// is a TimeoutError.
func poll(ctx context.Context, op, path string, opts PollOptions, condition wait.ConditionWithContextFunc) error {
	pollCtx, cancel := ctx, context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		pollCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	defer cancel()

	start := time.Now()
	err := wait.PollUntilContextCancel(pollCtx, opts.interval(), true, condition)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", op, path, ctxErr)
	}
	if pollCtx.Err() != nil && wait.Interrupted(err) {
		return &TimeoutError{Op: op, Path: path, Waited: time.Since(start).Round(time.Millisecond)}
	}
	return err
}
