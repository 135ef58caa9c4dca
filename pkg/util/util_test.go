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

package util_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubeflow/spark-livy-runner/pkg/util"
)

var _ = Describe("CreateValidMetricNameLabel", func() {
	It("Should replace invalid characters", func() {
		Expect(util.CreateValidMetricNameLabel("my-prefix_", "team.name")).To(Equal("my_prefix_team_name"))
	})

	It("Should keep valid names unchanged", func() {
		Expect(util.CreateValidMetricNameLabel("", "livy_job_count")).To(Equal("livy_job_count"))
	})
})

var _ = Describe("HistogramBuckets", func() {
	It("Should parse comma separated boundaries", func() {
		var buckets util.HistogramBuckets
		Expect(buckets.Set("1, 2.5,10")).To(Succeed())
		Expect([]float64(buckets)).To(Equal([]float64{1, 2.5, 10}))
	})

	It("Should reject invalid boundaries", func() {
		var buckets util.HistogramBuckets
		Expect(buckets.Set("1,a")).NotTo(Succeed())
	})
})

var _ = Describe("FormatNotAvailable", func() {
	It("Should return N.A. for empty info", func() {
		Expect(util.FormatNotAvailable("")).To(Equal("N.A."))
		Expect(util.FormatNotAvailable("idle")).To(Equal("idle"))
	})
})

var _ = Describe("GetSinceTime", func() {
	It("Should return N.A. for a zero time", func() {
		Expect(util.GetSinceTime(time.Time{})).To(Equal("N.A."))
	})

	It("Should return a short age", func() {
		Expect(util.GetSinceTime(time.Now().Add(-2 * time.Minute))).To(Equal("2m"))
	})
})

var _ = Describe("RunInterruptible", func() {
	It("Should return the error of fn", func() {
		boom := errors.New("boom")
		err := util.RunInterruptible(context.Background(), nil, func(ctx context.Context) error {
			return boom
		})
		Expect(err).To(MatchError(boom))
	})

	It("Should pass a context cancelled with the parent", func() {
		parent, cancel := context.WithCancel(context.Background())
		cancel()
		err := util.RunInterruptible(parent, nil, func(ctx context.Context) error {
			return ctx.Err()
		})
		Expect(err).To(MatchError(context.Canceled))
	})
})
