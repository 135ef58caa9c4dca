/*
Copyright 2016 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Original code from Kubernetes (https://github.com/kubernetes/kubernetes)
https://github.com/kubernetes/kubernetes/blob/master/pkg/util/interrupt/interrupt.go
Reworked to cancel a context instead of running notify functions.
*/

package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// terminationSignals are signals that cause the program to exit in the
// supported platforms (linux, darwin, windows).
var terminationSignals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

// RunInterruptible runs fn with a context that is cancelled on the first
// termination signal, so that fn can run its cleanup (e.g. terminate a remote
// session) before returning. A second signal invokes final, or exits with
// status 1 when final is nil.
func RunInterruptible(ctx context.Context, final func(os.Signal), fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, terminationSignals...)
	defer signal.Stop(ch)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-ch:
			if final == nil {
				os.Exit(1)
			}
			final(sig)
		case <-done:
		}
	}()

	return fn(ctx)
}
