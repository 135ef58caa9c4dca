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

package common

// Job metric names.
const (
	MetricJobCount = "livy_job_count"

	MetricJobSuccessCount = "livy_job_success_count"

	MetricJobFailureCount = "livy_job_failure_count"

	MetricJobRunningCount = "livy_job_running_count"

	MetricJobSuccessExecutionTimeSeconds = "livy_job_success_execution_time_seconds"

	MetricJobFailureExecutionTimeSeconds = "livy_job_failure_execution_time_seconds"
)

// Session metric names.
const (
	MetricSessionCreatedCount = "livy_session_created_count"

	MetricSessionTerminatedCount = "livy_session_terminated_count"

	MetricSessionTerminationFailureCount = "livy_session_termination_failure_count"

	MetricSessionReadyLatencySeconds = "livy_session_ready_latency_seconds"
)

// Scheduled pipeline metric names.
const (
	MetricScheduledRunCount = "livy_scheduled_run_count"

	MetricScheduledRunFailureCount = "livy_scheduled_run_failure_count"
)

// Metric labels.
const (
	MetricLabelJob = "job"

	MetricLabelReason = "reason"

	MetricLabelPipeline = "pipeline"
)
