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

// SessionState is the state of a remote session as reported by the gateway.
type SessionState string

// Session states reported by Livy.
const (
	SessionStateNotStarted   SessionState = "not_started"
	SessionStateStarting     SessionState = "starting"
	SessionStateIdle         SessionState = "idle"
	SessionStateBusy         SessionState = "busy"
	SessionStateShuttingDown SessionState = "shutting_down"
	SessionStateError        SessionState = "error"
	SessionStateDead         SessionState = "dead"
	SessionStateKilled       SessionState = "killed"
	SessionStateSuccess      SessionState = "success"
)

// StatementState is the state of a submitted statement.
type StatementState string

const (
	StatementStateWaiting    StatementState = "waiting"
	StatementStateRunning    StatementState = "running"
	StatementStateAvailable  StatementState = "available"
	StatementStateError      StatementState = "error"
	StatementStateCancelling StatementState = "cancelling"
	StatementStateCancelled  StatementState = "cancelled"
)

// Pending returns whether the statement result is not available yet.
func (s StatementState) Pending() bool {
	return s == StatementStateWaiting || s == StatementStateRunning
}

// StateSet is a closed set of session states a poll loop waits for.
type StateSet map[SessionState]struct{}

// NewStateSet returns a StateSet holding the given states.
func NewStateSet(states ...SessionState) StateSet {
	set := make(StateSet, len(states))
	for _, state := range states {
		set[state] = struct{}{}
	}
	return set
}

// Has returns whether state is in the set.
func (s StateSet) Has(state SessionState) bool {
	_, ok := s[state]
	return ok
}

var (
	// ReadyStates holds the states in which a session accepts a new statement.
	ReadyStates = NewStateSet(SessionStateIdle)

	// EndedStates holds the states after which a session never runs code again.
	EndedStates = NewStateSet(
		SessionStateShuttingDown,
		SessionStateError,
		SessionStateDead,
		SessionStateKilled,
		SessionStateSuccess,
	)

	// SettledStates holds the states in which a session is no longer executing
	// the last submitted statement: back to idle, or ended.
	SettledStates = NewStateSet(
		SessionStateIdle,
		SessionStateShuttingDown,
		SessionStateError,
		SessionStateDead,
		SessionStateKilled,
		SessionStateSuccess,
	)
)

// Session is a remote compute session. Path is the gateway-relative resource
// path returned on creation and is the only way to address the session.
type Session struct {
	ID    int          `json:"id"`
	Path  string       `json:"path"`
	Kind  string       `json:"kind,omitempty"`
	State SessionState `json:"state,omitempty"`
}

// CreateSessionRequest is the body of a session creation request.
type CreateSessionRequest struct {
	Kind           string            `json:"kind"`
	Name           string            `json:"name,omitempty"`
	ProxyUser      string            `json:"proxyUser,omitempty"`
	DriverMemory   string            `json:"driverMemory,omitempty"`
	DriverCores    int               `json:"driverCores,omitempty"`
	ExecutorMemory string            `json:"executorMemory,omitempty"`
	ExecutorCores  int               `json:"executorCores,omitempty"`
	NumExecutors   int               `json:"numExecutors,omitempty"`
	Conf           map[string]string `json:"conf,omitempty"`
}

type sessionResponse struct {
	ID    *int         `json:"id"`
	Kind  string       `json:"kind"`
	State SessionState `json:"state"`
}

type sessionStateResponse struct {
	ID    int          `json:"id"`
	State SessionState `json:"state"`
}

type sessionLogResponse struct {
	ID    int       `json:"id"`
	From  int       `json:"from"`
	Total int       `json:"total"`
	Log   *[]string `json:"log"`
}

type statementRequest struct {
	Code string `json:"code"`
	Kind string `json:"kind,omitempty"`
}

// Statement is one code fragment submitted to a session.
type Statement struct {
	ID     int
	Path   string
	State  StatementState
	Output *StatementOutput
}

// StatementOutput is the result envelope of an available statement.
type StatementOutput struct {
	Status         string         `json:"status"`
	ExecutionCount int            `json:"execution_count"`
	Data           map[string]any `json:"data,omitempty"`
	EName          string         `json:"ename,omitempty"`
	EValue         string         `json:"evalue,omitempty"`
	Traceback      []string       `json:"traceback,omitempty"`
}

// Output statuses.
const (
	OutputStatusOK    = "ok"
	OutputStatusError = "error"
)

// MIME type of the plain-text result representation.
const PlainTextMIMEType = "text/plain"
