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

// Package options holds the global flags of livyctl and builds the clients
// the commands share from the resulting configuration.
package options

import (
	"context"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	logzap "sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/kubeflow/spark-livy-runner/internal/handle"
	"github.com/kubeflow/spark-livy-runner/internal/metrics"
	"github.com/kubeflow/spark-livy-runner/internal/runner"
	"github.com/kubeflow/spark-livy-runner/pkg/common"
	"github.com/kubeflow/spark-livy-runner/pkg/config"
	"github.com/kubeflow/spark-livy-runner/pkg/jobs"
	"github.com/kubeflow/spark-livy-runner/pkg/jobtemplate"
	"github.com/kubeflow/spark-livy-runner/pkg/livy"
	"github.com/kubeflow/spark-livy-runner/pkg/util"
)

var (
	v = config.New()

	zapOptions = logzap.Options{}

	sessionReadyLatencyBuckets = util.HistogramBuckets(util.DefaultSessionReadyLatencyBuckets)
)

// Viper returns the configuration shared by all commands.
func Viper() *viper.Viper {
	return v
}

// AddFlags registers the global flags on fs and binds them to the
// configuration.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(config.KeyConfigFile, "", "Path to a YAML configuration file.")
	fs.String(config.KeyHost, common.DefaultLivyHost, "Livy gateway URL. Also read from $LIVY_HOST.")
	fs.String(config.KeySessionKind, common.DefaultSessionKind, "Kind of the sessions to create.")
	fs.Duration(config.KeyPollInterval, common.DefaultPollInterval, "Wait between two statement result checks.")
	fs.Duration(config.KeyReadyPollInterval, common.DefaultReadyPollInterval, "Wait between two session state checks.")
	fs.Duration(config.KeyReadyTimeout, common.DefaultReadyTimeout, "Maximum wait for a session to become idle.")
	fs.Duration(config.KeyResultTimeout, 0, "Maximum wait for a job result. Zero waits until interrupted.")
	fs.Duration(config.KeyRequestTimeout, common.DefaultRequestTimeout, "Timeout of a single request to the gateway.")
	fs.Duration(config.KeyTerminateTimeout, common.DefaultTerminateTimeout, "Timeout of session termination.")
	fs.Float64(config.KeyQPS, common.DefaultQPS, "Maximum requests per second to the gateway.")
	fs.Int(config.KeyBurst, common.DefaultBurst, "Maximum burst of requests to the gateway.")
	fs.String(config.KeyUsername, "", "Basic auth user of the gateway.")
	fs.StringToString(config.KeyHeaders, nil, "Extra request headers, e.g. X-Requested-By=livyctl.")
	fs.String("handle-store", config.HandleStoreFile, "Where session handles are kept between steps: file, configmap, etcd, s3 or postgres.")
	fs.String("handle-dir", config.DefaultHandleStoreDir, "Directory of the file handle store.")
	fs.String("handle-namespace", "default", "Namespace of the configmap handle store.")
	fs.StringSlice("handle-endpoints", nil, "Endpoints of the etcd handle store, or the S3-compatible endpoint of the s3 handle store.")
	fs.String("handle-bucket", "", "Bucket of the s3 handle store.")
	fs.String("handle-region", "", "Region of the s3 handle store.")
	fs.String("handle-dsn", "", "Connection string of the postgres handle store.")
	fs.String(config.KeyPipelinesFile, "", "YAML file with pipeline definitions.")
	fs.Bool(config.KeyDevelopment, false, "Enable development mode logging.")
	fs.Var(&sessionReadyLatencyBuckets, "metrics-session-ready-latency-buckets", "Buckets of the session ready latency histogram, in seconds.")

	bindings := map[string]string{
		config.KeyConfigFile:           config.KeyConfigFile,
		config.KeyHost:                 config.KeyHost,
		config.KeySessionKind:          config.KeySessionKind,
		config.KeyPollInterval:         config.KeyPollInterval,
		config.KeyReadyPollInterval:    config.KeyReadyPollInterval,
		config.KeyReadyTimeout:         config.KeyReadyTimeout,
		config.KeyResultTimeout:        config.KeyResultTimeout,
		config.KeyRequestTimeout:       config.KeyRequestTimeout,
		config.KeyTerminateTimeout:     config.KeyTerminateTimeout,
		config.KeyQPS:                  config.KeyQPS,
		config.KeyBurst:                config.KeyBurst,
		config.KeyUsername:             config.KeyUsername,
		config.KeyHeaders:              config.KeyHeaders,
		config.KeyHandleStoreType:      "handle-store",
		config.KeyHandleStoreDir:       "handle-dir",
		config.KeyHandleStoreNamespace: "handle-namespace",
		config.KeyHandleStoreEndpoints: "handle-endpoints",
		config.KeyHandleStoreBucket:    "handle-bucket",
		config.KeyHandleStoreRegion:    "handle-region",
		config.KeyHandleStoreDSN:       "handle-dsn",
		config.KeyPipelinesFile:        config.KeyPipelinesFile,
		config.KeyDevelopment:          config.KeyDevelopment,
	}
	for key, name := range bindings {
		_ = v.BindPFlag(key, fs.Lookup(name))
	}
}

// Load returns the validated configuration and installs the logger.
func Load() (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	setupLog(cfg.Development)
	return cfg, nil
}

// setupLog Configures the logging system
func setupLog(development bool) {
	ctrl.SetLogger(logzap.New(
		logzap.UseFlagOptions(&zapOptions),
		func(o *logzap.Options) {
			o.Development = development
		}, func(o *logzap.Options) {
			o.ZapOpts = append(o.ZapOpts, zap.AddCaller())
		}, func(o *logzap.Options) {
			var config zapcore.EncoderConfig
			if !development {
				config = zap.NewProductionEncoderConfig()
			} else {
				config = zap.NewDevelopmentEncoderConfig()
				config.EncodeLevel = zapcore.CapitalColorLevelEncoder
			}
			config.EncodeTime = zapcore.ISO8601TimeEncoder
			config.EncodeCaller = zapcore.ShortCallerEncoder
			if !development {
				o.Encoder = zapcore.NewJSONEncoder(config)
			} else {
				o.Encoder = zapcore.NewConsoleEncoder(config)
			}
		}),
	)
}

// NewClient returns a gateway client for cfg.
func NewClient(cfg *config.Config) (*livy.Client, error) {
	return livy.NewClient(livy.Options{
		Host:           cfg.Host,
		SessionKind:    cfg.SessionKind,
		RequestTimeout: cfg.RequestTimeout,
		QPS:            cfg.QPS,
		Burst:          cfg.Burst,
		Username:       cfg.Username,
		Password:       cfg.Password,
		Headers:        cfg.Headers,
	})
}

// NewRecorder returns the job metrics when metrics are enabled, and nil
// otherwise.
func NewRecorder(cfg *config.Config) runner.Recorder {
	if !cfg.Metrics.Enable {
		return nil
	}
	m := metrics.NewJobMetrics(nil, cfg.Metrics.Prefix, cfg.Metrics.Labels, sessionReadyLatencyBuckets)
	m.Register()
	return m
}

// NewRunner returns a runner for cfg reporting to recorder.
func NewRunner(cfg *config.Config, recorder runner.Recorder) (*runner.Runner, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	renderer, err := jobtemplate.NewRenderer(cfg.Template.Text, cfg.Template.RegistryModule)
	if err != nil {
		return nil, err
	}
	return runner.New(client, runner.Options{
		PollInterval:      cfg.PollInterval,
		ReadyPollInterval: cfg.ReadyPollInterval,
		ReadyTimeout:      cfg.ReadyTimeout,
		ResultTimeout:     cfg.ResultTimeout,
		TerminateTimeout:  cfg.TerminateTimeout,
		Session: livy.CreateSessionRequest{
			Kind:           cfg.SessionKind,
			Name:           cfg.Session.Name,
			ProxyUser:      cfg.Session.ProxyUser,
			DriverMemory:   cfg.Session.DriverMemory,
			ExecutorMemory: cfg.Session.ExecutorMemory,
			NumExecutors:   cfg.Session.NumExecutors,
			Conf:           cfg.Session.Conf,
		},
		Renderer: renderer,
		Recorder: recorder,
	})
}

// NewSteps returns the orchestration steps for cfg.
func NewSteps(ctx context.Context, cfg *config.Config) (*runner.Steps, error) {
	r, err := NewRunner(cfg, NewRecorder(cfg))
	if err != nil {
		return nil, err
	}
	store, err := handle.New(ctx, cfg.HandleStore)
	if err != nil {
		return nil, err
	}
	return runner.NewSteps(r, store), nil
}

// NewRegistry returns the registry of built-in jobs.
func NewRegistry() (*jobs.Registry, error) {
	registry := jobs.NewRegistry()
	if err := jobs.RegisterBuiltins(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
