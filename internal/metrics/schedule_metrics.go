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
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/kubeflow/spark-livy-runner/pkg/common"
	"github.com/kubeflow/spark-livy-runner/pkg/util"
)

// ScheduleMetrics records scheduled pipeline runs.
type ScheduleMetrics struct {
	registerer prometheus.Registerer

	runCount        *prometheus.CounterVec
	runFailureCount *prometheus.CounterVec
}

func NewScheduleMetrics(registerer prometheus.Registerer, prefix string) *ScheduleMetrics {
	if registerer == nil {
		registerer = metrics.Registry
	}
	return &ScheduleMetrics{
		registerer: registerer,
		runCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: util.CreateValidMetricNameLabel(prefix, common.MetricScheduledRunCount),
				Help: "Total number of scheduled pipeline runs",
			},
			[]string{common.MetricLabelPipeline},
		),
		runFailureCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: util.CreateValidMetricNameLabel(prefix, common.MetricScheduledRunFailureCount),
				Help: "Total number of failed scheduled pipeline runs",
			},
			[]string{common.MetricLabelPipeline},
		),
	}
}

func (m *ScheduleMetrics) Register() {
	if err := m.registerer.Register(m.runCount); err != nil {
		logger.Error(err, "Failed to register schedule metric", "name", common.MetricScheduledRunCount)
	}
	if err := m.registerer.Register(m.runFailureCount); err != nil {
		logger.Error(err, "Failed to register schedule metric", "name", common.MetricScheduledRunFailureCount)
	}
}

// RunFinished records one scheduled run of pipeline.
func (m *ScheduleMetrics) RunFinished(pipeline string, err error) {
	m.runCount.WithLabelValues(pipeline).Inc()
	if err != nil {
		m.runFailureCount.WithLabelValues(pipeline).Inc()
	}
}
