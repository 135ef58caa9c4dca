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

import "time"

// Environment variables.
const (
	// EnvLivyHost is the gateway base URL, kept for compatibility with existing deployments.
	EnvLivyHost = "LIVY_HOST"

	// EnvPrefix prefixes every other configuration key read from the environment.
	EnvPrefix = "LIVYCTL"
)

// Gateway defaults.
const (
	DefaultLivyHost = "http://localhost:8998"

	// DefaultSessionKind is the kind of session the jobs run in.
	DefaultSessionKind = "pyspark"

	// DefaultPollInterval is the wait between two statement result checks.
	DefaultPollInterval = 10 * time.Second

	// DefaultReadyPollInterval is the wait between two session state checks.
	DefaultReadyPollInterval = 5 * time.Second

	DefaultReadyTimeout = 10 * time.Minute

	DefaultRequestTimeout = 30 * time.Second

	// DefaultTerminateTimeout bounds session termination, which runs even
	// after the caller's context is cancelled.
	DefaultTerminateTimeout = 30 * time.Second

	DefaultQPS = 5

	DefaultBurst = 10

	DefaultLogOffset = 0

	DefaultLogSize = 1000
)

// HTTP headers.
const (
	HeaderContentType = "Content-Type"

	HeaderLocation = "Location"

	// HeaderRequestID carries a per request id that shows up in gateway logs.
	HeaderRequestID = "X-Request-Id"

	ContentTypeJSON = "application/json"
)

// Remote execution environment.
const (
	// ExecutionContextArg is the name under which the remote environment
	// exposes the SparkContext. It is always the first job argument.
	ExecutionContextArg = "sc"

	// DefaultRegistryModule is the module holding the remote job registry.
	DefaultRegistryModule = "jobs.core.base"

	// DefaultRegistryHolder is the class exposing get_registry() in that module.
	DefaultRegistryHolder = "JobHolder"
)

// Job parameters passed by pipelines.
const (
	ParamDays = "days"

	ParamDate = "date"

	DefaultDays = 30

	DateLayout = "2006-01-02"
)
