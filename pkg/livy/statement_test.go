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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/livy/livytest"
)

var _ = Describe("Statements", func() {
	var (
		gateway *livytest.Gateway
		client  *livy.Client
		ctx     context.Context
		opts    livy.PollOptions
	)

	BeforeEach(func() {
		gateway = livytest.NewGateway()
		var err error
		client, err = livy.NewClient(livy.Options{Host: gateway.URL()})
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		opts = livy.PollOptions{Interval: time.Millisecond}
	})

	AfterEach(func() {
		gateway.Close()
	})

	Context("Submitting code", func() {
		It("Should return the statement path from the Location header", func() {
			statement, err := client.SubmitStatement(ctx, livytest.SessionPath, "print(1)")
			Expect(err).NotTo(HaveOccurred())
			Expect(statement.Path).To(Equal(livytest.StatementPath))
			Expect(statement.State).To(Equal(livy.StatementStateWaiting))
			Expect(gateway.Codes()).To(Equal([]string{"print(1)"}))
		})

		It("Should extract the exception message of a rejected submission", func() {
			gateway.SubmitStatus = http.StatusBadRequest
			gateway.SubmitBody = "Exception: boom"
			_, err := client.SubmitStatement(ctx, livytest.SessionPath, "print(1)")
			Expect(livy.IsRemoteExecutionError(err)).To(BeTrue())
			Expect(err.Error()).To(Equal(" boom"))
		})

		It("Should extract the exception message of a JSON error body", func() {
			gateway.SubmitStatus = http.StatusBadRequest
			gateway.SubmitBody = `{"msg": "java.lang.IllegalStateException: Session is in state dead"}`
			_, err := client.SubmitStatement(ctx, livytest.SessionPath, "print(1)")
			Expect(livy.IsRemoteExecutionError(err)).To(BeTrue())
			Expect(err.Error()).To(Equal(" Session is in state dead"))
		})

		It("Should report other rejections as gateway errors with the raw body", func() {
			gateway.SubmitStatus = http.StatusServiceUnavailable
			gateway.SubmitBody = "try again later"
			_, err := client.SubmitStatement(ctx, livytest.SessionPath, "print(1)")
			var gatewayErr *livy.GatewayError
			Expect(err).To(BeAssignableToTypeOf(gatewayErr))
			gatewayErr = err.(*livy.GatewayError)
			Expect(gatewayErr.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(gatewayErr.Body).To(Equal("try again later"))
		})
	})

	Context("Reading a statement", func() {
		It("Should return a waiting statement without error", func() {
			_, err := client.SubmitStatement(ctx, livytest.SessionPath, "print(1)")
			Expect(err).NotTo(HaveOccurred())

			statement, err := client.GetStatement(ctx, livytest.StatementPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(statement.State).To(Equal(livy.StatementStateWaiting))
			Expect(statement.Output).To(BeNil())
		})
	})

	Context("Awaiting a result", func() {
		It("Should poll until the result is available", func() {
			gateway.StatementBodies = []string{livytest.Waiting(), livytest.Waiting(), livytest.Available("42")}
			result, err := client.AwaitResult(ctx, livytest.StatementPath, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("42"))
			Expect(gateway.Requests(http.MethodGet, livytest.StatementPath)).To(Equal(3))
		})

		It("Should keep polling a running statement", func() {
			gateway.StatementBodies = []string{`{"id": 0, "state": "running", "output": null}`, livytest.Available("done")}
			result, err := client.AwaitResult(ctx, livytest.StatementPath, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("done"))
		})

		It("Should join the traceback of a failed statement", func() {
			gateway.StatementBodies = []string{livytest.Failed("a", "b", "")}
			_, err := client.AwaitResult(ctx, livytest.StatementPath, opts)
			Expect(livy.IsRemoteExecutionError(err)).To(BeTrue())
			Expect(err.Error()).To(Equal("a\nb"))
		})

		It("Should report a missing output as malformed", func() {
			gateway.StatementBodies = []string{`{"id": 0, "state": "available"}`}
			_, err := client.AwaitResult(ctx, livytest.StatementPath, opts)
			Expect(livy.IsMalformedResponseError(err)).To(BeTrue())
		})

		It("Should give up with a timeout error", func() {
			gateway.StatementBodies = []string{livytest.Waiting()}
			_, err := client.AwaitResult(ctx, livytest.StatementPath,
				livy.PollOptions{Interval: time.Millisecond, Timeout: 20 * time.Millisecond})
			Expect(livy.IsTimeoutError(err)).To(BeTrue())
		})

		It("Should report a cancelled statement as a remote failure", func() {
			gateway.StatementBodies = []string{`{"id": 0, "state": "cancelled", "output": null}`}
			_, err := client.AwaitResult(ctx, livytest.StatementPath, opts)
			Expect(livy.IsRemoteExecutionError(err)).To(BeTrue())
		})
	})
})

var _ = Describe("StatementOutput", func() {
	DescribeTable("Classifying an output",
		func(output livy.StatementOutput, expected string, check func(error) bool) {
			text, err := output.Text()
			if check == nil {
				Expect(err).NotTo(HaveOccurred())
				Expect(text).To(Equal(expected))
				return
			}
			Expect(check(err)).To(BeTrue())
		},
		Entry("plain text", livy.StatementOutput{Status: "ok", Data: map[string]any{"text/plain": "42"}}, "42", nil),
		Entry("traceback", livy.StatementOutput{Status: "error", Traceback: []string{"a", "b", ""}}, "", livy.IsRemoteExecutionError),
		Entry("error without traceback", livy.StatementOutput{Status: "error", EName: "ValueError", EValue: "bad"}, "", livy.IsRemoteExecutionError),
		Entry("error without any detail", livy.StatementOutput{Status: "error"}, "", livy.IsMalformedResponseError),
		Entry("missing status", livy.StatementOutput{Data: map[string]any{"text/plain": "42"}}, "", livy.IsMalformedResponseError),
		Entry("unknown status", livy.StatementOutput{Status: "maybe"}, "", livy.IsMalformedResponseError),
		Entry("missing data", livy.StatementOutput{Status: "ok"}, "", livy.IsMalformedResponseError),
		Entry("missing plain text", livy.StatementOutput{Status: "ok", Data: map[string]any{"text/html": "<b>"}}, "", livy.IsMalformedResponseError),
		Entry("plain text of the wrong type", livy.StatementOutput{Status: "ok", Data: map[string]any{"text/plain": 42.0}}, "", livy.IsMalformedResponseError),
	)
})
