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

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kubeflow/spark-livy-runner/pkg/common"
)

var tableRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config is the livyctl configuration.
type Config struct {
	Host              string
	SessionKind       string
	PollInterval      time.Duration
	ReadyPollInterval time.Duration
	ReadyTimeout      time.Duration
	ResultTimeout     time.Duration
	RequestTimeout    time.Duration
	TerminateTimeout  time.Duration
	QPS               float64
	Burst             int
	Username          string
	Password          string
	Headers           map[string]string

	Session     SessionConfig
	Template    TemplateConfig
	HandleStore HandleStoreConfig
	Metrics     MetricsConfig

	PipelinesFile string
	Schedule      ScheduleConfig
	Development   bool
}

// SessionConfig holds the optional fields of a session creation request.
type SessionConfig struct {
	Name           string
	ProxyUser      string
	DriverMemory   string
	ExecutorMemory string
	NumExecutors   int
	Conf           map[string]string
}

// TemplateConfig overrides the job wrapper template.
type TemplateConfig struct {
	Text           string
	RegistryModule string
}

// HandleStoreConfig selects where session handles are persisted between steps.
type HandleStoreConfig struct {
	Type      string
	Dir       string
	Namespace string
	Prefix    string
	// Endpoints lists the etcd endpoints for the etcd store, or the optional
	// S3-compatible endpoint as its first element for the s3 store.
	Endpoints []string
	Bucket    string
	Region    string
	DSN       string
	Table     string
}

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	Enable      bool
	BindAddress string
	Endpoint    string
	Prefix      string
	Labels      map[string]string
}

// ScheduleConfig configures scheduled pipeline runs.
type ScheduleConfig struct {
	Cron     string
	TimeZone string
	Pipeline string
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyHost, common.DefaultLivyHost)
	v.SetDefault(KeySessionKind, common.DefaultSessionKind)
	v.SetDefault(KeyPollInterval, common.DefaultPollInterval)
	v.SetDefault(KeyReadyPollInterval, common.DefaultReadyPollInterval)
	v.SetDefault(KeyReadyTimeout, common.DefaultReadyTimeout)
	v.SetDefault(KeyResultTimeout, time.Duration(0))
	v.SetDefault(KeyRequestTimeout, common.DefaultRequestTimeout)
	v.SetDefault(KeyTerminateTimeout, common.DefaultTerminateTimeout)
	v.SetDefault(KeyQPS, common.DefaultQPS)
	v.SetDefault(KeyBurst, common.DefaultBurst)
	v.SetDefault(KeyHandleStoreType, HandleStoreFile)
	v.SetDefault(KeyHandleStoreDir, DefaultHandleStoreDir)
	v.SetDefault(KeyHandleStoreNamespace, "default")
	v.SetDefault(KeyHandleStorePrefix, DefaultHandleStorePrefix)
	v.SetDefault(KeyHandleStoreTable, DefaultHandleStoreTable)
	v.SetDefault(KeyMetricsBindAddress, DefaultMetricsAddress)
	v.SetDefault(KeyMetricsEndpoint, DefaultMetricsEndpoint)
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(common.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyHost, common.EnvPrefix+"_HOST", common.EnvLivyHost)
	return v
}

// Load reads the configuration file named by the config key, if any, and
// returns the validated configuration.
func Load(v *viper.Viper) (*Config, error) {
	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %v", file, err)
		}
	}

	cfg := &Config{
		Host:              v.GetString(KeyHost),
		SessionKind:       v.GetString(KeySessionKind),
		PollInterval:      v.GetDuration(KeyPollInterval),
		ReadyPollInterval: v.GetDuration(KeyReadyPollInterval),
		ReadyTimeout:      v.GetDuration(KeyReadyTimeout),
		ResultTimeout:     v.GetDuration(KeyResultTimeout),
		RequestTimeout:    v.GetDuration(KeyRequestTimeout),
		TerminateTimeout:  v.GetDuration(KeyTerminateTimeout),
		QPS:               v.GetFloat64(KeyQPS),
		Burst:             v.GetInt(KeyBurst),
		Username:          v.GetString(KeyUsername),
		Password:          v.GetString(KeyPassword),
		Headers:           v.GetStringMapString(KeyHeaders),
		Session: SessionConfig{
			Name:           v.GetString(KeySessionName),
			ProxyUser:      v.GetString(KeySessionProxyUser),
			DriverMemory:   v.GetString(KeySessionDriverMemory),
			ExecutorMemory: v.GetString(KeySessionExecutorMemory),
			NumExecutors:   v.GetInt(KeySessionNumExecutors),
			Conf:           v.GetStringMapString(KeySessionConf),
		},
		Template: TemplateConfig{
			Text:           v.GetString(KeyTemplateText),
			RegistryModule: v.GetString(KeyTemplateRegistryModule),
		},
		HandleStore: HandleStoreConfig{
			Type:      v.GetString(KeyHandleStoreType),
			Dir:       v.GetString(KeyHandleStoreDir),
			Namespace: v.GetString(KeyHandleStoreNamespace),
			Prefix:    v.GetString(KeyHandleStorePrefix),
			Endpoints: v.GetStringSlice(KeyHandleStoreEndpoints),
			Bucket:    v.GetString(KeyHandleStoreBucket),
			Region:    v.GetString(KeyHandleStoreRegion),
			DSN:       v.GetString(KeyHandleStoreDSN),
			Table:     v.GetString(KeyHandleStoreTable),
		},
		Metrics: MetricsConfig{
			Enable:      v.GetBool(KeyMetricsEnable),
			BindAddress: v.GetString(KeyMetricsBindAddress),
			Endpoint:    v.GetString(KeyMetricsEndpoint),
			Prefix:      v.GetString(KeyMetricsPrefix),
			Labels:      v.GetStringMapString(KeyMetricsLabels),
		},
		PipelinesFile: v.GetString(KeyPipelinesFile),
		Schedule: ScheduleConfig{
			Cron:     v.GetString(KeyScheduleCron),
			TimeZone: v.GetString(KeyScheduleTimeZone),
			Pipeline: v.GetString(KeySchedulePipeline),
		},
		Development: v.GetBool(KeyDevelopment),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.Host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s must be an http(s) URL, got %q", KeyHost, c.Host))
	}
	if c.SessionKind == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeySessionKind))
	}
	for key, value := range map[string]time.Duration{
		KeyPollInterval:      c.PollInterval,
		KeyReadyPollInterval: c.ReadyPollInterval,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, value))
		}
	}
	for key, value := range map[string]time.Duration{
		KeyReadyTimeout:     c.ReadyTimeout,
		KeyResultTimeout:    c.ResultTimeout,
		KeyRequestTimeout:   c.RequestTimeout,
		KeyTerminateTimeout: c.TerminateTimeout,
	} {
		if value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", key, value))
		}
	}
	if c.QPS < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %v", KeyQPS, c.QPS))
	}
	if c.QPS > 0 && c.Burst <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive when %s is set, got %d", KeyBurst, KeyQPS, c.Burst))
	}
	switch c.HandleStore.Type {
	case HandleStoreFile:
		if c.HandleStore.Dir == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", KeyHandleStoreDir))
		}
	case HandleStoreConfigMap:
		if c.HandleStore.Namespace == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", KeyHandleStoreNamespace))
		}
	case HandleStoreEtcd:
		if len(c.HandleStore.Endpoints) == 0 {
			errs = append(errs, fmt.Errorf("%s must not be empty", KeyHandleStoreEndpoints))
		}
	case HandleStoreS3:
		if c.HandleStore.Bucket == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", KeyHandleStoreBucket))
		}
	case HandleStorePostgres:
		if c.HandleStore.DSN == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", KeyHandleStoreDSN))
		}
		if !tableRegexp.MatchString(c.HandleStore.Table) {
			errs = append(errs, fmt.Errorf("%s must be a plain SQL identifier, got %q", KeyHandleStoreTable, c.HandleStore.Table))
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", KeyHandleStoreType,
			strings.Join([]string{HandleStoreFile, HandleStoreConfigMap, HandleStoreEtcd, HandleStoreS3, HandleStorePostgres}, ", "),
			c.HandleStore.Type))
	}
	return errors.Join(errs...)
}
