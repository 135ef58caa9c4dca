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

package config

// Configuration keys.
const (
	KeyConfigFile = "config"

	KeyHost              = "host"
	KeySessionKind       = "session-kind"
	KeyPollInterval      = "poll-interval"
	KeyReadyPollInterval = "ready-poll-interval"
	KeyReadyTimeout      = "ready-timeout"
	KeyResultTimeout     = "result-timeout"
	KeyRequestTimeout    = "request-timeout"
	KeyTerminateTimeout  = "terminate-timeout"
	KeyQPS               = "qps"
	KeyBurst             = "burst"
	KeyUsername          = "username"
	KeyPassword          = "password"
	KeyHeaders           = "headers"

	KeySessionName           = "session.name"
	KeySessionProxyUser      = "session.proxy-user"
	KeySessionDriverMemory   = "session.driver-memory"
	KeySessionExecutorMemory = "session.executor-memory"
	KeySessionNumExecutors   = "session.num-executors"
	KeySessionConf           = "session.conf"

	KeyTemplateText           = "template.text"
	KeyTemplateRegistryModule = "template.registry-module"

	KeyHandleStoreType      = "handle-store.type"
	KeyHandleStoreDir       = "handle-store.dir"
	KeyHandleStoreNamespace = "handle-store.namespace"
	KeyHandleStorePrefix    = "handle-store.prefix"
	KeyHandleStoreEndpoints = "handle-store.endpoints"
	KeyHandleStoreBucket    = "handle-store.bucket"
	KeyHandleStoreRegion    = "handle-store.region"
	KeyHandleStoreDSN       = "handle-store.dsn"
	KeyHandleStoreTable     = "handle-store.table"

	KeyMetricsEnable      = "metrics.enable"
	KeyMetricsBindAddress = "metrics.bind-address"
	KeyMetricsEndpoint    = "metrics.endpoint"
	KeyMetricsPrefix      = "metrics.prefix"
	KeyMetricsLabels      = "metrics.labels"

	KeyPipelinesFile = "pipelines"

	KeyScheduleCron     = "schedule.cron"
	KeyScheduleTimeZone = "schedule.timezone"
	KeySchedulePipeline = "schedule.pipeline"

	KeyDevelopment = "development"
)

// Handle store types.
const (
	HandleStoreFile      = "file"
	HandleStoreConfigMap = "configmap"
	HandleStoreEtcd      = "etcd"
	HandleStoreS3        = "s3"
	HandleStorePostgres  = "postgres"
)

const (
	DefaultHandleStoreDir    = ".livyctl"
	DefaultHandleStorePrefix = "livyctl-session"
	DefaultHandleStoreTable  = "livyctl_handles"
	DefaultMetricsAddress    = ":8080"
	DefaultMetricsEndpoint   = "/metrics"
)
