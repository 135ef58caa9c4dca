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

package livy_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/livy/livytest"
)

var _ = Describe("Session lifecycle", func() {
	var (
		gateway *livytest.Gateway
		client  *livy.Client
		ctx     context.Context
	)

	BeforeEach(func() {
		gateway = livytest.NewGateway()
		var err error
		client, err = livy.NewClient(livy.Options{
			Host:    gateway.URL(),
			Headers: map[string]string{"X-Requested-By": "livyctl"},
		})
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		gateway.Close()
	})

	Context("Creating a session", func() {
		It("Should return the id and the path from the Location header", func() {
			session, err := client.CreateSession(ctx, livy.CreateSessionRequest{})
			Expect(err).NotTo(HaveOccurred())
			Expect(session.ID).To(Equal(0))
			Expect(session.Path).To(Equal(livytest.SessionPath))
			Expect(session.Kind).To(Equal("pyspark"))
		})

		It("Should send JSON with a request id and the configured headers", func() {
			_, err := client.CreateSession(ctx, livy.CreateSessionRequest{})
			Expect(err).NotTo(HaveOccurred())
			headers := gateway.Headers()
			Expect(headers).To(HaveLen(1))
			Expect(headers[0].Get("Content-Type")).To(Equal("application/json"))
			Expect(headers[0].Get("X-Request-Id")).NotTo(BeEmpty())
			Expect(headers[0].Get("X-Requested-By")).To(Equal("livyctl"))
		})

		It("Should fail fast when the Location header is missing", func() {
			gateway.OmitLocation = true
			_, err := client.CreateSession(ctx, livy.CreateSessionRequest{})
			Expect(livy.IsMalformedResponseError(err)).To(BeTrue())
		})

		It("Should report a non-2xx response as a gateway error", func() {
			gateway.CreateStatus = http.StatusInternalServerError
			_, err := client.CreateSession(ctx, livy.CreateSessionRequest{})
			Expect(livy.IsGatewayError(err)).To(BeTrue())
		})
	})

	Context("Reading the session", func() {
		It("Should return the current state", func() {
			gateway.SessionStates = []string{"starting", "idle"}
			state, err := client.GetSessionState(ctx, livytest.SessionPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(livy.SessionStateStarting))
			state, err = client.GetSessionState(ctx, livytest.SessionPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(livy.SessionStateIdle))
		})

		It("Should return the log lines", func() {
			gateway.LogLines = []string{"stdout: ", "stderr: boom"}
			lines, err := client.GetSessionLogs(ctx, livytest.SessionPath, 0, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(Equal([]string{"stdout: ", "stderr: boom"}))
			Expect(gateway.Requests(http.MethodGet, livytest.SessionPath+"/log")).To(Equal(1))
		})
	})

	Context("Terminating a session", func() {
		It("Should delete the session once and fail the second time", func() {
			Expect(client.TerminateSession(ctx, livytest.SessionPath)).To(Succeed())
			err := client.TerminateSession(ctx, livytest.SessionPath)
			Expect(livy.IsGatewayError(err)).To(BeTrue())
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(2))
		})
	})

	Context("Waiting for a session state", func() {
		It("Should poll until the session is ready", func() {
			gateway.SessionStates = []string{"starting", "starting", "idle"}
			state, err := client.WaitForSessionState(ctx, livytest.SessionPath, livy.ReadyStates, livy.EndedStates,
				livy.PollOptions{Interval: time.Millisecond})
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(livy.SessionStateIdle))
			Expect(gateway.Requests(http.MethodGet, livytest.SessionPath+"/state")).To(Equal(3))
		})

		It("Should fail when the session ends before it is ready", func() {
			gateway.SessionStates = []string{"starting", "dead"}
			state, err := client.WaitForSessionState(ctx, livytest.SessionPath, livy.ReadyStates, livy.EndedStates,
				livy.PollOptions{Interval: time.Millisecond})
			Expect(livy.IsRemoteExecutionError(err)).To(BeTrue())
			Expect(state).To(Equal(livy.SessionStateDead))
		})

		It("Should give up with a timeout error", func() {
			gateway.SessionStates = []string{"starting"}
			_, err := client.WaitForSessionState(ctx, livytest.SessionPath, livy.ReadyStates, nil,
				livy.PollOptions{Interval: time.Millisecond, Timeout: 20 * time.Millisecond})
			Expect(livy.IsTimeoutError(err)).To(BeTrue())
		})

		It("Should report cancellation distinctly", func() {
			gateway.SessionStates = []string{"starting"}
			cancelCtx, cancel := context.WithCancel(ctx)
			time.AfterFunc(20*time.Millisecond, cancel)
			_, err := client.WaitForSessionState(cancelCtx, livytest.SessionPath, livy.ReadyStates, nil,
				livy.PollOptions{Interval: time.Millisecond})
			Expect(err).To(MatchError(context.Canceled))
			Expect(livy.IsTimeoutError(err)).To(BeFalse())
		})
	})
})

var _ = Describe("Transport", func() {
	It("Should report a connection failure as a transport error", func() {
		server := httptest.NewServer(http.NotFoundHandler())
		host := server.URL
		server.Close()

		client, err := livy.NewClient(livy.Options{Host: host})
		Expect(err).NotTo(HaveOccurred())
		_, err = client.CreateSession(context.Background(), livy.CreateSessionRequest{})
		Expect(livy.IsTransportError(err)).To(BeTrue())
	})

	It("Should reject an invalid host", func() {
		_, err := livy.NewClient(livy.Options{Host: "localhost:8998"})
		Expect(err).To(HaveOccurred())
		_, err = livy.NewClient(livy.Options{})
		Expect(err).To(HaveOccurred())
	})
})
