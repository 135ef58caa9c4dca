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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/kubeflow/spark-livy-runner/pkg/common"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/util"
)

var (
	logger = log.Log.WithName("metrics")
)

// JobMetrics records job runs and the sessions they use.
type JobMetrics struct {
	registerer prometheus.Registerer

	jobCount                    *prometheus.CounterVec
	jobSuccessCount             *prometheus.CounterVec
	jobFailureCount             *prometheus.CounterVec
	jobRunningCount             *prometheus.GaugeVec
	successExecutionTimeSeconds *prometheus.SummaryVec
	failureExecutionTimeSeconds *prometheus.SummaryVec

	sessionCreatedCount            prometheus.Counter
	sessionTerminatedCount         prometheus.Counter
	sessionTerminationFailureCount prometheus.Counter
	sessionReadyLatencySeconds     prometheus.Histogram
}

// NewJobMetrics builds the job metrics. Every metric name is prefixed with
// prefix and carries constLabels. A nil registerer selects the
// controller-runtime registry.
func NewJobMetrics(registerer prometheus.Registerer, prefix string, constLabels map[string]string, readyLatencyBuckets []float64) *JobMetrics {
	if registerer == nil {
		registerer = metrics.Registry
	}
	if len(readyLatencyBuckets) == 0 {
		readyLatencyBuckets = util.DefaultSessionReadyLatencyBuckets
	}
	labels := prometheus.Labels{}
	for key, value := range constLabels {
		labels[util.CreateValidMetricNameLabel("", key)] = value
	}
	jobLabels := []string{common.MetricLabelJob}
	failureLabels := []string{common.MetricLabelJob, common.MetricLabelReason}

	return &JobMetrics{
		registerer: registerer,

		jobCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricJobCount),
				Help:        "Total number of submitted jobs",
				ConstLabels: labels,
			},
			jobLabels,
		),
		jobSuccessCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricJobSuccessCount),
				Help:        "Total number of successful jobs",
				ConstLabels: labels,
			},
			jobLabels,
		),
		jobFailureCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricJobFailureCount),
				Help:        "Total number of failed jobs",
				ConstLabels: labels,
			},
			failureLabels,
		),
		jobRunningCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricJobRunningCount),
				Help:        "Number of running jobs",
				ConstLabels: labels,
			},
			jobLabels,
		),
		successExecutionTimeSeconds: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricJobSuccessExecutionTimeSeconds),
				Help:        "Execution time of successful jobs",
				ConstLabels: labels,
			},
			jobLabels,
		),
		failureExecutionTimeSeconds: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricJobFailureExecutionTimeSeconds),
				Help:        "Execution time of failed jobs",
				ConstLabels: labels,
			},
			jobLabels,
		),
		sessionCreatedCount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricSessionCreatedCount),
				Help:        "Total number of created sessions",
				ConstLabels: labels,
			},
		),
		sessionTerminatedCount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricSessionTerminatedCount),
				Help:        "Total number of terminated sessions",
				ConstLabels: labels,
			},
		),
		sessionTerminationFailureCount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricSessionTerminationFailureCount),
				Help:        "Total number of failed session terminations",
				ConstLabels: labels,
			},
		),
		sessionReadyLatencySeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        util.CreateValidMetricNameLabel(prefix, common.MetricSessionReadyLatencySeconds),
				Help:        "Time from session creation until the session accepts statements",
				Buckets:     readyLatencyBuckets,
				ConstLabels: labels,
			},
		),
	}
}

// Register registers every metric, logging the ones that fail.
func (m *JobMetrics) Register() {
	collectors := map[string]prometheus.Collector{
		common.MetricJobCount:                       m.jobCount,
		common.MetricJobSuccessCount:                m.jobSuccessCount,
		common.MetricJobFailureCount:                m.jobFailureCount,
		common.MetricJobRunningCount:                m.jobRunningCount,
		common.MetricJobSuccessExecutionTimeSeconds: m.successExecutionTimeSeconds,
		common.MetricJobFailureExecutionTimeSeconds: m.failureExecutionTimeSeconds,
		common.MetricSessionCreatedCount:            m.sessionCreatedCount,
		common.MetricSessionTerminatedCount:         m.sessionTerminatedCount,
		common.MetricSessionTerminationFailureCount: m.sessionTerminationFailureCount,
		common.MetricSessionReadyLatencySeconds:     m.sessionReadyLatencySeconds,
	}
	for name, collector := range collectors {
		if err := m.registerer.Register(collector); err != nil {
			logger.Error(err, "Failed to register job metric", "name", name)
		}
	}
}

// JobStarted records the submission of job.
func (m *JobMetrics) JobStarted(job string) {
	m.jobCount.WithLabelValues(job).Inc()
	m.jobRunningCount.WithLabelValues(job).Inc()
	logger.V(1).Info("Increased job count", "job", job, "metric", common.MetricJobCount)
}

// JobFinished records the outcome of job.
func (m *JobMetrics) JobFinished(job string, duration time.Duration, err error) {
	m.jobRunningCount.WithLabelValues(job).Dec()
	if err == nil {
		m.jobSuccessCount.WithLabelValues(job).Inc()
		m.successExecutionTimeSeconds.WithLabelValues(job).Observe(duration.Seconds())
		logger.V(1).Info("Observed job success", "job", job, "metric", common.MetricJobSuccessCount, "value", duration.Seconds())
		return
	}
	reason := livy.Reason(err)
	m.jobFailureCount.WithLabelValues(job, reason).Inc()
	m.failureExecutionTimeSeconds.WithLabelValues(job).Observe(duration.Seconds())
	logger.V(1).Info("Observed job failure", "job", job, "reason", reason, "metric", common.MetricJobFailureCount, "value", duration.Seconds())
}

// SessionCreated records a session creation.
func (m *JobMetrics) SessionCreated() {
	m.sessionCreatedCount.Inc()
}

// SessionReady records how long a session took to accept statements.
func (m *JobMetrics) SessionReady(latency time.Duration) {
	m.sessionReadyLatencySeconds.Observe(latency.Seconds())
}

// SessionTerminated records a termination attempt.
func (m *JobMetrics) SessionTerminated(err error) {
	if err != nil {
		m.sessionTerminationFailureCount.Inc()
		return
	}
	m.sessionTerminatedCount.Inc()
}
