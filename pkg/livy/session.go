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
	"net/http"
	"net/url"
	"strconv"
)

// CreateSession opens a new session. The returned session's Path comes from
// the Location header of the response.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	const op = "create session"
	if req.Kind == "" {
		req.Kind = c.sessionKind
	}

	var body sessionResponse
	resp, err := c.doJSON(ctx, op, http.MethodPost, "/sessions", nil, req, &body)
	if err != nil {
		return nil, err
	}
	if body.ID == nil {
		return nil, &MalformedResponseError{Op: op, Reason: "missing session id", Body: string(resp.body)}
	}
	path, err := location(op, resp)
	if err != nil {
		return nil, err
	}

	kind := body.Kind
	if kind == "" {
		kind = req.Kind
	}
	session := &Session{ID: *body.ID, Path: path, Kind: kind, State: body.State}
	c.logger.Info("Created session", "id", session.ID, "path", session.Path, "kind", session.Kind)
	return session, nil
}

// GetSessionState fetches the current state of the session at path.
func (c *Client) GetSessionState(ctx context.Context, path string) (SessionState, error) {
	const op = "get session state"
	var body sessionStateResponse
	resp, err := c.doJSON(ctx, op, http.MethodGet, path+"/state", nil, nil, &body)
	if err != nil {
		return "", err
	}
	if body.State == "" {
		return "", &MalformedResponseError{Op: op, Reason: "missing state", Body: string(resp.body)}
	}
	return body.State, nil
}

// GetSessionLogs returns up to size log lines of the session starting at offset.
func (c *Client) GetSessionLogs(ctx context.Context, path string, offset, size int) ([]string, error) {
	const op = "get session logs"
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("size", strconv.Itoa(size))

	var body sessionLogResponse
	resp, err := c.doJSON(ctx, op, http.MethodGet, path+"/log", query, nil, &body)
	if err != nil {
		return nil, err
	}
	if body.Log == nil {
		return nil, &MalformedResponseError{Op: op, Reason: "missing log", Body: string(resp.body)}
	}
	return *body.Log, nil
}

// TerminateSession deletes the session at path. Deleting a session that no
// longer exists is reported as a GatewayError.
func (c *Client) TerminateSession(ctx context.Context, path string) error {
	if _, err := c.doJSON(ctx, "terminate session", http.MethodDelete, path, nil, nil, nil); err != nil {
		return err
	}
	c.logger.Info("Terminated session", "path", path)
	return nil
}

// WaitForSessionState polls the session state until it is in states. When
// failOn is not nil and the session enters one of its states first, a
// RemoteExecutionError is returned.
func (c *Client) WaitForSessionState(ctx context.Context, path string, states, failOn StateSet, opts PollOptions) (SessionState, error) {
	var last SessionState
	err := poll(ctx, "wait for session state", path, opts, func(ctx context.Context) (bool, error) {
		state, err := c.GetSessionState(ctx, path)
		if err != nil {
			return false, err
		}
		if state != last {
			c.logger.Info("Session state", "path", path, "state", state)
		}
		last = state
		if states.Has(state) {
			return true, nil
		}
		if failOn.Has(state) {
			return false, &RemoteExecutionError{Reason: fmt.Sprintf("session %s is %s", path, state)}
		}
		return false, nil
	})
	return last, err
}
