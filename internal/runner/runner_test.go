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
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubeflow/spark-livy-runner/internal/runner"
	"github.com/kubeflow/spark-livy-runner/pkg/jobtemplate"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/livy/livytest"
)

type recorder struct {
	mu         sync.Mutex
	started    []string
	failed     []string
	succeeded  []string
	created    int
	ready      int
	terminated []error
}

func (r *recorder) JobStarted(job string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, job)
}

func (r *recorder) JobFinished(job string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed = append(r.failed, job)
		return
	}
	r.succeeded = append(r.succeeded, job)
}

func (r *recorder) SessionCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *recorder) SessionReady(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready++
}

func (r *recorder) SessionTerminated(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminated = append(r.terminated, err)
}

func newRunner(gateway *livytest.Gateway, rec runner.Recorder) *runner.Runner {
	client, err := livy.NewClient(livy.Options{Host: gateway.URL()})
	Expect(err).NotTo(HaveOccurred())
	r, err := runner.New(client, runner.Options{
		PollInterval:      10 * time.Millisecond,
		ReadyPollInterval: 10 * time.Millisecond,
		ReadyTimeout:      5 * time.Second,
		ResultTimeout:     5 * time.Second,
		TerminateTimeout:  5 * time.Second,
		Recorder:          rec,
	})
	Expect(err).NotTo(HaveOccurred())
	return r
}

var demoKwargs = []jobtemplate.Kwarg{{Name: "days", Value: "30"}, {Name: "date", Value: "'2020-01-01'"}}

var _ = Describe("Runner", func() {
	var (
		gateway *livytest.Gateway
		rec     *recorder
		r       *runner.Runner
		ctx     context.Context
	)

	BeforeEach(func() {
		gateway = livytest.NewGateway()
		rec = &recorder{}
		r = newRunner(gateway, rec)
		ctx = context.Background()
	})

	AfterEach(func() {
		gateway.Close()
	})

	Context("Running a job end to end", func() {
		It("Should return the printed result and terminate the session once", func() {
			gateway.SessionStates = []string{"starting", "starting", "idle"}
			gateway.StatementBodies = []string{livytest.Waiting(), livytest.Waiting(), livytest.Available("42")}

			result, err := r.Run(ctx, "Demo", nil, demoKwargs)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("42"))

			codes := gateway.Codes()
			Expect(codes).To(HaveLen(1))
			Expect(codes[0]).To(ContainSubstring("get_registry()['Demo']"))
			Expect(codes[0]).To(ContainSubstring("job = Job(sc, days=30, date='2020-01-01')"))
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))

			Expect(rec.created).To(Equal(1))
			Expect(rec.ready).To(Equal(1))
			Expect(rec.succeeded).To(Equal([]string{"Demo"}))
			Expect(rec.terminated).To(Equal([]error{nil}))
		})

		It("Should return the remote failure reason and still terminate the session once", func() {
			gateway.SubmitStatus = http.StatusBadRequest
			gateway.SubmitBody = `"Exception: boom"`

			_, err := r.Run(ctx, "Demo", nil, demoKwargs)
			Expect(livy.IsRemoteExecutionError(err)).To(BeTrue())
			var remote *livy.RemoteExecutionError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.Reason).To(Equal(" boom"))
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
			Expect(rec.failed).To(Equal([]string{"Demo"}))
		})

		It("Should return the traceback of a failed statement", func() {
			gateway.StatementBodies = []string{livytest.Failed("a", "b", "")}

			_, err := r.Run(ctx, "Demo", nil, nil)
			var remote *livy.RemoteExecutionError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.Reason).To(Equal("a\nb"))
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
		})

		It("Should not submit anything when the session dies before it is ready", func() {
			gateway.SessionStates = []string{"starting", "dead"}

			_, err := r.Run(ctx, "Demo", nil, nil)
			Expect(livy.IsRemoteExecutionError(err)).To(BeTrue())
			Expect(gateway.Codes()).To(BeEmpty())
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
		})

		It("Should reject an invalid job key before submitting", func() {
			_, err := r.Run(ctx, "not a key", nil, nil)
			Expect(err).To(HaveOccurred())
			Expect(gateway.Codes()).To(BeEmpty())
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
		})

		It("Should terminate the session when the caller cancels", func() {
			gateway.StatementBodies = []string{livytest.Waiting()}
			ctx, cancel := context.WithCancel(ctx)
			go func() {
				defer GinkgoRecover()
				Eventually(func() int {
					return gateway.Requests(http.MethodGet, livytest.StatementPath)
				}).Should(BeNumerically(">=", 2))
				cancel()
			}()

			_, err := r.Run(ctx, "Demo", nil, nil)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(livy.IsRemoteExecutionError(err)).To(BeFalse())
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
		})
	})

	Context("Using a session", func() {
		It("Should return the error of the callback unchanged", func() {
			boom := errors.New("boom")
			err := r.WithSession(ctx, func(context.Context, *livy.Session) error {
				return boom
			})
			Expect(err).To(BeIdenticalTo(boom))
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
		})

		It("Should report a failed termination when the callback succeeded", func() {
			err := r.WithSession(ctx, func(ctx context.Context, session *livy.Session) error {
				return r.Client().TerminateSession(ctx, session.Path)
			})
			Expect(livy.IsGatewayError(err)).To(BeTrue())
			Expect(strings.Contains(err.Error(), "failed to terminate session")).To(BeTrue())
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(2))
		})

		It("Should run several jobs in one session", func() {
			gateway.StatementBodies = []string{livytest.Available("done")}
			err := r.WithSession(ctx, func(ctx context.Context, session *livy.Session) error {
				for _, job := range []string{"ReactivationPullRecord", "ReactivationUpdateDWH"} {
					result, err := r.RunJob(ctx, session, jobtemplate.Invocation{JobKey: job})
					if err != nil {
						return err
					}
					Expect(result).To(Equal("done"))
				}
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.Codes()).To(HaveLen(2))
			Expect(gateway.Requests(http.MethodPost, "/sessions")).To(Equal(1))
		})
	})

	Context("Waiting for the session to settle after submission", func() {
		stateRequest := http.MethodGet + " " + livytest.SessionPath + "/state"
		statementRequest := http.MethodGet + " " + livytest.StatementPath

		It("Should poll the session state until idle before reading the result", func() {
			gateway.SessionStates = []string{"idle", "busy", "busy", "idle"}
			gateway.StatementBodies = []string{livytest.Waiting(), livytest.Available("7")}

			var session *livy.Session
			err := r.WithSession(ctx, func(ctx context.Context, s *livy.Session) error {
				session = s
				result, err := r.RunJob(ctx, s, jobtemplate.Invocation{JobKey: "Demo"})
				if err != nil {
					return err
				}
				Expect(result).To(Equal("7"))
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(session.State).To(Equal(livy.SessionStateIdle))
			Expect(gateway.Requests(http.MethodGet, livytest.SessionPath+"/state")).To(Equal(4))

			log := gateway.RequestLog()
			lastState, firstStatement := -1, -1
			for i, request := range log {
				if request == stateRequest {
					lastState = i
				}
				if request == statementRequest && firstStatement < 0 {
					firstStatement = i
				}
			}
			Expect(firstStatement).To(BeNumerically(">", lastState))
			Expect(gateway.Requests(http.MethodGet, livytest.StatementPath)).To(Equal(2))
		})

		It("Should stop waiting when the session dies and report the missing statement", func() {
			gateway.SessionStates = []string{"idle", "busy", "dead"}
			gateway.StatementStatus = http.StatusNotFound

			var session *livy.Session
			err := r.WithSession(ctx, func(ctx context.Context, s *livy.Session) error {
				session = s
				_, err := r.RunJob(ctx, s, jobtemplate.Invocation{JobKey: "Demo"})
				return err
			})
			Expect(livy.IsGatewayError(err)).To(BeTrue())
			var gatewayErr *livy.GatewayError
			Expect(errors.As(err, &gatewayErr)).To(BeTrue())
			Expect(gatewayErr.StatusCode).To(Equal(http.StatusNotFound))
			Expect(livy.IsRemoteExecutionError(err)).To(BeFalse())
			Expect(session.State).To(Equal(livy.SessionStateDead))
			Expect(gateway.Requests(http.MethodGet, livytest.StatementPath)).To(Equal(1))
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
		})

		It("Should bound settling and the result wait by one result timeout", func() {
			client, err := livy.NewClient(livy.Options{Host: gateway.URL()})
			Expect(err).NotTo(HaveOccurred())
			r, err = runner.New(client, runner.Options{
				PollInterval:      10 * time.Millisecond,
				ReadyPollInterval: 10 * time.Millisecond,
				ReadyTimeout:      5 * time.Second,
				ResultTimeout:     400 * time.Millisecond,
				TerminateTimeout:  5 * time.Second,
			})
			Expect(err).NotTo(HaveOccurred())

			// Settling takes at least 300ms, the statement never finishes.
			states := []string{"idle"}
			for range 30 {
				states = append(states, "busy")
			}
			gateway.SessionStates = append(states, "idle")
			gateway.StatementBodies = []string{livytest.Waiting()}

			err = r.WithSession(ctx, func(ctx context.Context, s *livy.Session) error {
				start := time.Now()
				_, err := r.RunJob(ctx, s, jobtemplate.Invocation{JobKey: "Demo"})
				Expect(time.Since(start)).To(BeNumerically("<", 650*time.Millisecond))
				return err
			})
			Expect(livy.IsTimeoutError(err)).To(BeTrue())
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
		})
	})

	Context("Starting a session", func() {
		It("Should terminate a session that fails to become ready", func() {
			gateway.SessionStates = []string{"error"}
			_, err := r.StartSession(ctx)
			Expect(livy.IsRemoteExecutionError(err)).To(BeTrue())
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(1))
		})

		It("Should return an idle session", func() {
			gateway.SessionStates = []string{"not_started", "starting", "idle"}
			session, err := r.StartSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.State).To(Equal(livy.SessionStateIdle))
			Expect(gateway.Requests(http.MethodDelete, livytest.SessionPath)).To(Equal(0))
		})
	})
})
