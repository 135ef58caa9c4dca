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

package runner_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubeflow/spark-livy-runner/internal/handle"
	"github.com/kubeflow/spark-livy-runner/internal/runner"
	"github.com/kubeflow/spark-livy-runner/pkg/jobtemplate"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/livy/livytest"
)

var _ = Describe("Steps", func() {
	const key = "run-20200101"

	var (
		gateway *livytest.Gateway
		store   *handle.FileStore
		steps   *runner.Steps
		ctx     context.Context
	)

	BeforeEach(func() {
		gateway = livytest.NewGateway()
		store = handle.NewFileStore(GinkgoT().TempDir())
		steps = runner.NewSteps(newRunner(gateway, nil), store)
		ctx = context.Background()
	})

	AfterEach(func() {
		gateway.Close()
	})

	It("Should share one session between separate steps", func() {
		gateway.SessionStates = []string{"starting", "idle"}
		gateway.StatementBodies = []string{livytest.Waiting(), livytest.Available("7 rows")}

		h, err := steps.Start(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Path).To(Equal(livytest.SessionPath))
		Expect(h.Host).To(Equal(gateway.URL()))

		state, err := steps.State(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(Equal(livy.SessionStateStarting))

		Expect(steps.Wait(ctx, key)).To(Succeed())

		result, err := steps.Run(ctx, key, jobtemplate.Invocation{
			JobKey: "ReactivationPullRecord",
			Kwargs: []jobtemplate.Kwarg{{Name: "days", Value: "30"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal("7 rows"))

		Expect(steps.End(ctx, key)).To(Succeed())
		Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
		_, err = store.Load(ctx, key)
		Expect(err).To(MatchError(handle.ErrNotFound))
	})

	It("Should return session logs", func() {
		gateway.LogLines = []string{"stdout: ", "starting"}
		_, err := steps.Start(ctx, key)
		Expect(err).NotTo(HaveOccurred())

		lines, err := steps.Logs(ctx, key, 0, 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(Equal([]string{"stdout: ", "starting"}))
	})

	It("Should fail without a saved handle", func() {
		_, err := steps.Run(ctx, key, jobtemplate.Invocation{JobKey: "Demo"})
		Expect(err).To(MatchError(handle.ErrNotFound))
		Expect(gateway.Codes()).To(BeEmpty())
	})

	It("Should reject a handle of another gateway", func() {
		Expect(store.Save(ctx, key, handle.Handle{ID: 1, Path: "/sessions/1", Host: "http://elsewhere:8998", CreatedAt: time.Now()})).To(Succeed())
		_, err := steps.State(ctx, key)
		Expect(err).To(MatchError(ContainSubstring("belongs to gateway")))
	})

	It("Should remove the handle even when the session is already gone", func() {
		_, err := steps.Start(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(steps.End(ctx, key)).To(Succeed())

		_, err = steps.Start(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		err = steps.End(ctx, key)
		Expect(livy.IsGatewayError(err)).To(BeTrue())
		_, err = store.Load(ctx, key)
		Expect(err).To(MatchError(handle.ErrNotFound))
	})

	It("Should reject an invalid key without opening a session", func() {
		_, err := steps.Start(ctx, "Not/A/Key")
		Expect(err).To(HaveOccurred())
		Expect(gateway.Requests(http.MethodPost, "/sessions")).To(Equal(0))
	})
})
