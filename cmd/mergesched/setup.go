package main

import (
	"fmt"
	"time"

	"github.com/cuemby/mergesched/pkg/config"
	"github.com/cuemby/mergesched/pkg/log"
	"github.com/cuemby/mergesched/pkg/merge"
	"github.com/cuemby/mergesched/pkg/metrics"
	"github.com/cuemby/mergesched/pkg/probe"
	"github.com/cuemby/mergesched/pkg/scheduler"
	"github.com/cuemby/mergesched/pkg/storage"
	"github.com/cuemby/mergesched/pkg/types"
	"github.com/spf13/cobra"
)

// loadConfig reads the config file named by --config and applies the
// logging flags on top of it
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	return cfg, nil
}

func newProbe(cfg *config.Config) (*probe.FSProbe, error) {
	src, err := probe.NewProcSource(cfg.Paths.ProcRoot)
	if err != nil {
		return nil, err
	}
	return probe.NewFSProbe(probe.Config{
		DiskGlob:      cfg.Paths.DiskGlob,
		BadDiskFile:   cfg.Paths.BadDiskFile,
		PrimaryDir:    cfg.Paths.PrimaryDir,
		LocationDepth: cfg.Paths.LocationDepth,
		DirtyFile:     cfg.Paths.DirtyFile,
		TransferTool:  cfg.TransferTool,
		SplitSizeMB:   cfg.SplitSizeMB,
	}, src, src), nil
}

func jobConfig(cfg *config.Config) *merge.Config {
	return &merge.Config{
		DailyCommand:   cfg.Paths.DailyMerge,
		MasterCommand:  cfg.Paths.MasterMerge,
		WebAccount:     cfg.Accounts.Web,
		ServiceAccount: cfg.Accounts.Service,
		DirtyFile:      cfg.Paths.DirtyFile,
	}
}

// newPolicy builds the policy for class. Master policies capture today's
// date, so build a fresh one for every run.
func newPolicy(class types.Class, cfg *config.Config, p probe.ResourceProbe, clock scheduler.Clock) (scheduler.Policy, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("unknown merge class %q (want daily or master)", class)
	}

	switch class {
	case types.ClassDaily:
		return scheduler.NewDailyPolicy(p, jobConfig(cfg), scheduler.Limits{
			Parallel:       cfg.DailyMerge.ParallelProcesses,
			MemThresholdMB: cfg.DailyMerge.FreeMemoryThreshold,
		}), nil
	case types.ClassMaster:
		return scheduler.NewMasterPolicy(p, jobConfig(cfg), scheduler.Limits{
			Parallel:       cfg.MasterMerge.ParallelProcesses,
			MemThresholdMB: cfg.MasterMerge.FreeMemoryThreshold,
		}, clock), nil
	}
	return nil, fmt.Errorf("no policy for merge class %q", class)
}

// historyLockTimeout bounds each history write. A busy history database
// costs an audit record, never a merge.
const historyLockTimeout = time.Second

// newObservers wires metrics and, when a history path is configured, the
// run history. History is opened per write so a daemon and one-off runs can
// share it.
func newObservers(cfg *config.Config) scheduler.Observers {
	observers := scheduler.Observers{metrics.NewObserver()}
	if cfg.History.Path == "" {
		return observers
	}
	store := storage.NewOnDemandStore(cfg.History.Path, historyLockTimeout)
	return append(observers, storage.NewRecorder(store))
}

// parseDate validates a merge date, defaulting to today
func parseDate(value string, now time.Time) (string, error) {
	if value == "" {
		return now.Format(types.DateLayout), nil
	}
	if _, err := time.Parse(types.DateLayout, value); err != nil {
		return "", fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", value, err)
	}
	return value, nil
}
