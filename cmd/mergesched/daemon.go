package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/mergesched/pkg/config"
	"github.com/cuemby/mergesched/pkg/log"
	"github.com/cuemby/mergesched/pkg/metrics"
	"github.com/cuemby/mergesched/pkg/probe"
	"github.com/cuemby/mergesched/pkg/scheduler"
	"github.com/cuemby/mergesched/pkg/types"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run daily and master merges periodically",
	Long: `Daemon runs a daily pass followed by a master pass for today's date every
interval, and serves Prometheus metrics and health endpoints.

A preempted master pass is retried on the next tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("interval") {
			cfg.Daemon.Interval, _ = cmd.Flags().GetDuration("interval")
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Metrics.Addr, _ = cmd.Flags().GetString("metrics-addr")
		}

		metrics.SetVersion(Version)
		metrics.SetCriticalComponents("probe")
		// A pass may run long; only flag classes idle well past the next tick.
		metrics.SetMaxPassAge(3 * cfg.Daemon.Interval)

		p, err := newProbe(cfg)
		if err != nil {
			metrics.RegisterComponent("probe", false, err.Error())
			return err
		}
		metrics.RegisterComponent("probe", true, "")

		observers := newObservers(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := startMetricsServer(cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		runDaemon(ctx, cfg, p, observers)
		return nil
	},
}

func init() {
	daemonCmd.Flags().Duration("interval", 60*time.Second, "Time between merge passes")
	daemonCmd.Flags().String("metrics-addr", ":9190", "Address for metrics and health endpoints")
}

func startMetricsServer(addr string) *http.Server {
	logger := log.WithComponent("daemon")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}

// runDaemon runs a pass immediately and then on every tick until ctx is done
func runDaemon(ctx context.Context, cfg *config.Config, p probe.ResourceProbe, observers scheduler.Observers) {
	logger := log.WithComponent("daemon")
	ticker := time.NewTicker(cfg.Daemon.Interval)
	defer ticker.Stop()

	for {
		runPass(ctx, cfg, p, observers)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.Info().Msg("Daemon stopped")
			return
		}
	}
}

// runPass runs the daily then the master scheduler for today's date
func runPass(ctx context.Context, cfg *config.Config, p probe.ResourceProbe, observers scheduler.Observers) {
	logger := log.WithComponent("daemon")

	for _, class := range []types.Class{types.ClassDaily, types.ClassMaster} {
		if ctx.Err() != nil {
			return
		}

		date := time.Now().Format(types.DateLayout)
		policy, err := newPolicy(class, cfg, p, scheduler.SystemClock)
		if err != nil {
			logger.Error().Err(err).Str("class", string(class)).Msg("Unable to build policy")
			continue
		}

		completed, err := scheduler.NewScheduler(policy, observers).Execute(ctx, date)
		if err != nil {
			logger.Warn().Err(err).Str("class", string(class)).Msg("Merge pass interrupted")
		} else if !completed {
			logger.Info().Str("class", string(class)).Msg("Merge pass preempted, retrying next tick")
		}
	}
}
