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

// Package livytest provides a scripted in-memory Livy gateway for tests.
package livytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

const (
	// SessionPath is the path of the single session the gateway hands out.
	SessionPath = "/sessions/0"
	// StatementPath is the path of the first statement of that session.
	StatementPath = SessionPath + "/statements/0"
)

// Gateway is a scripted Livy gateway. Session states and statement bodies
// are served in order; the last one repeats.
type Gateway struct {
	Server *httptest.Server

	mu sync.Mutex

	// SessionStates are returned by successive session state requests.
	SessionStates []string
	// StatementBodies are returned by successive statement requests.
	StatementBodies []string
	// SubmitStatus and SubmitBody override the statement submission response.
	SubmitStatus int
	SubmitBody   string
	// StatementStatus overrides the statement status response, e.g. 404 for
	// a statement of a session that died.
	StatementStatus int
	// CreateStatus overrides the session creation status.
	CreateStatus int
	// OmitLocation drops the Location header from creation and submission responses.
	OmitLocation bool
	// LogLines are served by the log endpoint.
	LogLines []string

	stateCalls     int
	statementCalls int
	deleted        bool
	codes          []string
	requests       map[string]int
	log            []string
	headers        []http.Header
}

// NewGateway starts a gateway. Close it with Close.
func NewGateway() *Gateway {
	g := &Gateway{
		SessionStates: []string{"idle"},
		requests:      make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", g.createSession)
	mux.HandleFunc("GET "+SessionPath+"/state", g.sessionState)
	mux.HandleFunc("GET "+SessionPath+"/log", g.sessionLog)
	mux.HandleFunc("DELETE "+SessionPath, g.deleteSession)
	mux.HandleFunc("POST "+SessionPath+"/statements", g.submitStatement)
	mux.HandleFunc("GET "+StatementPath, g.statement)

	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.requests[r.Method+" "+r.URL.Path]++
		g.log = append(g.log, r.Method+" "+r.URL.Path)
		g.headers = append(g.headers, r.Header.Clone())
		g.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	return g
}

// URL returns the gateway base URL.
func (g *Gateway) URL() string {
	return g.Server.URL
}

// Close shuts the gateway down.
func (g *Gateway) Close() {
	g.Server.Close()
}

// Requests returns how many requests were received for method and path.
func (g *Gateway) Requests(method, path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[method+" "+path]
}

// RequestLog returns "<method> <path>" of every received request, in order.
func (g *Gateway) RequestLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.log...)
}

// Codes returns the submitted code fragments.
func (g *Gateway) Codes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.codes...)
}

// Headers returns the headers of every received request.
func (g *Gateway) Headers() []http.Header {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]http.Header(nil), g.headers...)
}

func (g *Gateway) createSession(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
		return
	}

	g.mu.Lock()
	status := g.CreateStatus
	omitLocation := g.OmitLocation
	g.mu.Unlock()
	if status == 0 {
		status = http.StatusCreated
	}
	if !omitLocation {
		w.Header().Set("Location", SessionPath)
	}
	writeJSON(w, status, map[string]any{"id": 0, "kind": req["kind"], "state": "starting"})
}

func (g *Gateway) sessionState(w http.ResponseWriter, _ *http.Request) {
	g.mu.Lock()
	state := next(g.SessionStates, g.stateCalls)
	g.stateCalls++
	deleted := g.deleted
	g.mu.Unlock()

	if deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Session '0' not found."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": 0, "state": state})
}

func (g *Gateway) sessionLog(w http.ResponseWriter, _ *http.Request) {
	g.mu.Lock()
	lines := append([]string{}, g.LogLines...)
	g.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": 0, "from": 0, "total": len(lines), "log": lines})
}

func (g *Gateway) deleteSession(w http.ResponseWriter, _ *http.Request) {
	g.mu.Lock()
	deleted := g.deleted
	g.deleted = true
	g.mu.Unlock()

	if deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Session '0' not found."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "deleted"})
}

func (g *Gateway) submitStatement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
		return
	}

	g.mu.Lock()
	g.codes = append(g.codes, req.Code)
	status, body, omitLocation := g.SubmitStatus, g.SubmitBody, g.OmitLocation
	g.mu.Unlock()

	if status != 0 && (status < 200 || status > 299) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
		return
	}
	if !omitLocation {
		w.Header().Set("Location", StatementPath)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": 0, "code": req.Code, "state": "waiting", "output": nil})
}

func (g *Gateway) statement(w http.ResponseWriter, _ *http.Request) {
	g.mu.Lock()
	body := next(g.StatementBodies, g.statementCalls)
	g.statementCalls++
	status := g.StatementStatus
	g.mu.Unlock()

	if status != 0 && (status < 200 || status > 299) {
		writeJSON(w, status, map[string]string{"msg": "Statement not found."})
		return
	}

	if body == "" {
		body = `{"id": 0, "state": "waiting", "output": null}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// Waiting is the body of a statement whose result is not available yet.
func Waiting() string {
	return `{"id": 0, "state": "waiting", "output": null}`
}

// Available is the body of a statement that printed text.
func Available(text string) string {
	data, _ := json.Marshal(text)
	return fmt.Sprintf(`{"id": 0, "state": "available", "output": {"status": "ok", "execution_count": 0, "data": {"text/plain": %s}}}`, data)
}

// Failed is the body of a statement whose code raised.
func Failed(traceback ...string) string {
	data, _ := json.Marshal(traceback)
	return fmt.Sprintf(`{"id": 0, "state": "available", "output": {"status": "error", "execution_count": 0, "ename": "Exception", "evalue": "failed", "traceback": %s}}`, data)
}

func next(values []string, i int) string {
	if len(values) == 0 {
		return ""
	}
	if i >= len(values) {
		return values[len(values)-1]
	}
	return values[i]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
