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
	"errors"
	"fmt"
	"time"
)

// TransportError reports a connection-level failure reaching the gateway.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GatewayError reports a non-2xx response that carries no recognizable remote failure.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: gateway returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// RemoteExecutionError reports that the code submitted to the session failed.
// Reason is the exception message or the joined traceback.
type RemoteExecutionError struct {
	Reason string
}

func (e *RemoteExecutionError) Error() string {
	return e.Reason
}

// MalformedResponseError reports a 2xx response whose body or headers do not
// match the expected envelope.
type MalformedResponseError struct {
	Op     string
	Reason string
	Body   string
}

func (e *MalformedResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: malformed response: %s: %s", e.Op, e.Reason, e.Body)
}

// TimeoutError reports that a poll loop hit its own maximum wait.
type TimeoutError struct {
	Op     string
	Path   string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: gave up after %s", e.Op, e.Path, e.Waited)
}

// IsTransportError returns whether err, or any error it wraps, is a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsGatewayError returns whether err, or any error it wraps, is a GatewayError.
func IsGatewayError(err error) bool {
	var target *GatewayError
	return errors.As(err, &target)
}

// IsRemoteExecutionError returns whether err, or any error it wraps, is a RemoteExecutionError.
func IsRemoteExecutionError(err error) bool {
	var target *RemoteExecutionError
	return errors.As(err, &target)
}

// IsMalformedResponseError returns whether err, or any error it wraps, is a MalformedResponseError.
func IsMalformedResponseError(err error) bool {
	var target *MalformedResponseError
	return errors.As(err, &target)
}

// IsTimeoutError returns whether err, or any error it wraps, is a TimeoutError.
func IsTimeoutError(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// Failure reasons returned by Reason.
const (
	ReasonTransport = "transport"
	ReasonGateway   = "gateway"
	ReasonRemote    = "remote"
	ReasonMalformed = "malformed"
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
	ReasonUnknown   = "unknown"
)

// Reason returns a short label naming the kind of err, for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case IsRemoteExecutionError(err):
		return ReasonRemote
	case IsTimeoutError(err):
		return ReasonTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case IsTransportError(err):
		return ReasonTransport
	case IsGatewayError(err):
		return ReasonGateway
	case IsMalformedResponseError(err):
		return ReasonMalformed
	default:
		return ReasonUnknown
	}
}
