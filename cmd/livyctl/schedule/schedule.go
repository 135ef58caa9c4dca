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

package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	ctrl "sigs.k8s.io/controller-runtime"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/kubeflow/spark-livy-runner/cmd/livyctl/options"
	"github.com/kubeflow/spark-livy-runner/internal/metrics"
	"github.com/kubeflow/spark-livy-runner/internal/pipeline"
	"github.com/kubeflow/spark-livy-runner/internal/scheduler"
	"github.com/kubeflow/spark-livy-runner/pkg/common"
	"github.com/kubeflow/spark-livy-runner/pkg/config"
	"github.com/kubeflow/spark-livy-runner/pkg/jobs"
	"github.com/kubeflow/spark-livy-runner/pkg/util"
)

var (
	logger = ctrl.Log.WithName("schedule")
)

var days int

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run a pipeline on a cron schedule",
		Long: `Run a pipeline on a cron schedule until interrupted.
Each run uses a session of its own and processes the date the run was due. A run that is due while the previous one is still in progress is skipped.
Job and run metrics are served in the Prometheus format. The schedule is reloaded when the configuration file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := options.Load()
			if err != nil {
				return err
			}
			return util.RunInterruptible(cmd.Context(), nil, func(ctx context.Context) error {
				return run(ctx, cfg)
			})
		},
	}

	cmd.Flags().String("cron", "", "Cron schedule of the runs, e.g. \"0 2 * * *\" or \"CRON_TZ=UTC 0 2 * * *\".")
	cmd.Flags().String("timezone", "", "Time zone of a schedule without CRON_TZ prefix. Defaults to the local time zone.")
	cmd.Flags().String("pipeline", pipeline.Reactivation, "Pipeline to run.")
	cmd.Flags().IntVar(&days, "days", common.DefaultDays, "Number of days each run processes.")
	cmd.Flags().String("metrics-bind-address", config.DefaultMetricsAddress, "Address of the metrics endpoint. \"0\" disables it.")
	cmd.Flags().String("metrics-endpoint", config.DefaultMetricsEndpoint, "Path of the metrics endpoint.")
	cmd.Flags().String("metrics-prefix", "", "Prefix of the metric names.")

	v := options.Viper()
	_ = v.BindPFlag(config.KeyScheduleCron, cmd.Flags().Lookup("cron"))
	_ = v.BindPFlag(config.KeyScheduleTimeZone, cmd.Flags().Lookup("timezone"))
	_ = v.BindPFlag(config.KeySchedulePipeline, cmd.Flags().Lookup("pipeline"))
	_ = v.BindPFlag(config.KeyMetricsBindAddress, cmd.Flags().Lookup("metrics-bind-address"))
	_ = v.BindPFlag(config.KeyMetricsEndpoint, cmd.Flags().Lookup("metrics-endpoint"))
	_ = v.BindPFlag(config.KeyMetricsPrefix, cmd.Flags().Lookup("metrics-prefix"))

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Schedule.Cron == "" {
		return fmt.Errorf("a schedule is required, set --cron or %s", config.KeyScheduleCron)
	}
	name := cfg.Schedule.Pipeline
	if name == "" {
		name = pipeline.Reactivation
	}
	catalog, err := pipeline.Load(cfg.PipelinesFile)
	if err != nil {
		return err
	}
	p, err := catalog.Get(name)
	if err != nil {
		return err
	}

	serveMetrics := cfg.Metrics.BindAddress != "0"
	var recorder scheduler.Recorder
	cfg.Metrics.Enable = cfg.Metrics.Enable || serveMetrics
	if serveMetrics {
		scheduleMetrics := metrics.NewScheduleMetrics(nil, cfg.Metrics.Prefix)
		scheduleMetrics.Register()
		recorder = scheduleMetrics
	}

	r, err := options.NewRunner(cfg, options.NewRecorder(cfg))
	if err != nil {
		return err
	}
	registry, err := options.NewRegistry()
	if err != nil {
		return err
	}
	executor := &pipeline.Executor{Runner: r, Registry: registry}

	sched, err := scheduler.New(scheduler.Options{
		Name:     p.Name,
		Schedule: cfg.Schedule.Cron,
		TimeZone: cfg.Schedule.TimeZone,
		Recorder: recorder,
	}, func(ctx context.Context, due time.Time) error {
		params := jobs.Params{Days: days, Date: due.UTC().Truncate(24 * time.Hour)}
		results, err := executor.Run(ctx, p, params)
		for _, result := range results {
			if result.Err == nil {
				logger.Info("Job finished", "pipeline", p.Name, "runID", scheduler.RunID(ctx), "job", result.Job, "result", result.Result, "duration", result.Duration)
			}
		}
		return err
	})
	if err != nil {
		return err
	}
	watchSchedule(cfg, sched)

	g, ctx := errgroup.WithContext(ctx)
	if serveMetrics {
		g.Go(func() error {
			return metrics.Serve(ctx, cfg.Metrics.BindAddress, cfg.Metrics.Endpoint, ctrlmetrics.Registry)
		})
	}
	g.Go(func() error {
		logger.Info("Starting scheduler", "pipeline", p.Name, "schedule", cfg.Schedule.Cron)
		return sched.Start(ctx)
	})
	return g.Wait()
}

// watchSchedule applies schedule changes of the configuration file to sched.
func watchSchedule(cfg *config.Config, sched *scheduler.Scheduler) {
	v := options.Viper()
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		schedule := v.GetString(config.KeyScheduleCron)
		if schedule == "" || schedule == sched.Status().Schedule {
			return
		}
		if err := sched.SetSchedule(schedule); err != nil {
			logger.Error(err, "Ignoring invalid schedule", "file", e.Name, "schedule", schedule)
		}
	})
	v.WatchConfig()
	logger.Info("Watching configuration file", "file", v.ConfigFileUsed(), "schedule", cfg.Schedule.Cron)
}
