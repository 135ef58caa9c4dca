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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type statementResponse struct {
	ID     *int            `json:"id"`
	State  StatementState  `json:"state"`
	Output json.RawMessage `json:"output"`
}

// SubmitStatement posts code to the statement collection of the session at
// sessionPath. A rejected submission whose error body names an exception is
// a RemoteExecutionError carrying the text after the first colon.
func (c *Client) SubmitStatement(ctx context.Context, sessionPath, code string) (*Statement, error) {
	const op = "submit statement"
	resp, err := c.do(ctx, op, http.MethodPost, sessionPath+"/statements", nil, statementRequest{Code: code})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, submissionFailure(op, resp)
	}

	statement, err := decodeStatement(op, resp.body)
	if err != nil {
		return nil, err
	}
	path, err := location(op, resp)
	if err != nil {
		return nil, err
	}
	statement.Path = path
	c.logger.Info("Submitted statement", "session", sessionPath, "statement", statement.Path)
	return statement, nil
}

// GetStatement fetches the statement at path once. A statement whose result
// is not available yet is returned without error.
func (c *Client) GetStatement(ctx context.Context, path string) (*Statement, error) {
	const op = "get statement"
	resp, err := c.doJSON(ctx, op, http.MethodGet, path, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	statement, err := decodeStatement(op, resp.body)
	if err != nil {
		return nil, err
	}
	statement.Path = path
	return statement, nil
}

// AwaitResult polls the statement at path until its result is available and
// returns the plain-text output.
func (c *Client) AwaitResult(ctx context.Context, path string, opts PollOptions) (string, error) {
	var statement *Statement
	err := poll(ctx, "await statement result", path, opts, func(ctx context.Context) (bool, error) {
		var err error
		statement, err = c.GetStatement(ctx, path)
		if err != nil {
			return false, err
		}
		if statement.State.Pending() {
			c.logger.V(1).Info("Statement pending", "statement", path, "state", statement.State)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return statement.Result()
}

// Result classifies a finished statement: the plain-text payload on success,
// a RemoteExecutionError when the code failed, a MalformedResponseError when
// the envelope is not what the gateway promises.
func (s *Statement) Result() (string, error) {
	const op = "read statement result"
	switch s.State {
	case StatementStateCancelling, StatementStateCancelled:
		return "", &RemoteExecutionError{Reason: fmt.Sprintf("statement %s was cancelled", s.Path)}
	case StatementStateWaiting, StatementStateRunning:
		return "", &MalformedResponseError{Op: op, Reason: fmt.Sprintf("statement %s is still %s", s.Path, s.State)}
	}
	if s.Output == nil {
		return "", &MalformedResponseError{Op: op, Reason: fmt.Sprintf("statement %s has no output", s.Path)}
	}
	return s.Output.Text()
}

// Text returns the plain-text payload of a successful output, or the failure
// the output describes.
func (o *StatementOutput) Text() (string, error) {
	const op = "read statement output"
	switch o.Status {
	case OutputStatusError:
		if o.Traceback == nil {
			if o.EName == "" && o.EValue == "" {
				return "", &MalformedResponseError{Op: op, Reason: "error output without traceback"}
			}
			return "", &RemoteExecutionError{Reason: fmt.Sprintf("%s: %s", o.EName, o.EValue)}
		}
		trace := strings.TrimRight(strings.Join(o.Traceback, "\n"), "\n")
		return "", &RemoteExecutionError{Reason: trace}
	case OutputStatusOK:
		if o.Data == nil {
			return "", &MalformedResponseError{Op: op, Reason: "missing data"}
		}
		raw, ok := o.Data[PlainTextMIMEType]
		if !ok {
			return "", &MalformedResponseError{Op: op, Reason: fmt.Sprintf("missing %s data", PlainTextMIMEType)}
		}
		text, ok := raw.(string)
		if !ok {
			return "", &MalformedResponseError{Op: op, Reason: fmt.Sprintf("%s data is %T, not a string", PlainTextMIMEType, raw)}
		}
		return text, nil
	case "":
		return "", &MalformedResponseError{Op: op, Reason: "missing status"}
	default:
		return "", &MalformedResponseError{Op: op, Reason: fmt.Sprintf("unknown status %q", o.Status)}
	}
}

func decodeStatement(op string, body []byte) (*Statement, error) {
	var resp statementResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{Op: op, Reason: err.Error(), Body: string(body)}
	}
	if resp.ID == nil {
		return nil, &MalformedResponseError{Op: op, Reason: "missing statement id", Body: string(body)}
	}
	if resp.State == "" {
		return nil, &MalformedResponseError{Op: op, Reason: "missing statement state", Body: string(body)}
	}

	statement := &Statement{ID: *resp.ID, State: resp.State}
	if len(resp.Output) > 0 && string(resp.Output) != "null" {
		var output StatementOutput
		if err := json.Unmarshal(resp.Output, &output); err != nil {
			return nil, &MalformedResponseError{Op: op, Reason: fmt.Sprintf("invalid output: %v", err), Body: string(body)}
		}
		statement.Output = &output
	}
	return statement, nil
}

// submissionFailure classifies a non-2xx submission response.
func submissionFailure(op string, resp *response) error {
	reason := errorReason(resp.body)
	if strings.Contains(strings.ToLower(reason), "exception") {
		_, message, _ := strings.Cut(reason, ":")
		return &RemoteExecutionError{Reason: message}
	}
	return &GatewayError{Op: op, StatusCode: resp.statusCode, Body: string(resp.body)}
}

// errorReason extracts the message of a gateway error body: a JSON string, an
// object with a msg field, or the raw body.
func errorReason(body []byte) string {
	var text string
	if err := json.Unmarshal(body, &text); err == nil {
		return text
	}
	var object struct {
		Msg *string `json:"msg"`
	}
	if err := json.Unmarshal(body, &object); err == nil && object.Msg != nil {
		return *object.Msg
	}
	return string(body)
}
