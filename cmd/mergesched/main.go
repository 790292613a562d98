package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/mergesched/pkg/config"
	"github.com/cuemby/mergesched/pkg/scheduler"
	"github.com/cuemby/mergesched/pkg/storage"
	"github.com/cuemby/mergesched/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// errPreempted is returned by run when the scheduler stopped on SKIP
var errPreempted = errors.New("merge run preempted")

// exitPreempted tells the caller to retry on a later invocation
const exitPreempted = 3

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errPreempted) {
			fmt.Fprintln(os.Stderr, "Merge run preempted; remaining jobs will be retried on the next run")
			os.Exit(exitPreempted)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mergesched",
	Short: "mergesched - backup merge scheduler",
	Long: `mergesched consolidates incremental backups on a storage host.

It discovers host backup locations across the data disks, runs the daily and
master merge tools under memory and disk-contention limits, and marks merged
output for secondary copy.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"mergesched version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", config.DefaultConfigPath, "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON lines")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(probeCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one merge pass for a class and date",
	Long: `Run discovers every location without a completion marker for the date,
merges them within the configured limits and waits for all merges to finish.

Exit status is 3 when a master run was preempted by a day rollover.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		classFlag, _ := cmd.Flags().GetString("class")
		dateFlag, _ := cmd.Flags().GetString("date")
		noHistory, _ := cmd.Flags().GetBool("no-history")

		date, err := parseDate(dateFlag, time.Now())
		if err != nil {
			return err
		}
		if noHistory {
			cfg.History.Path = ""
		}

		p, err := newProbe(cfg)
		if err != nil {
			return err
		}
		policy, err := newPolicy(types.Class(classFlag), cfg, p, scheduler.SystemClock)
		if err != nil {
			return err
		}
		observers := newObservers(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		completed, err := scheduler.NewScheduler(policy, observers).Execute(ctx, date)
		if err != nil {
			return err
		}
		if !completed {
			return errPreempted
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("class", string(types.ClassDaily), "Merge class (daily or master)")
	runCmd.Flags().String("date", "", "Merge date YYYY-MM-DD (default today)")
	runCmd.Flags().Bool("no-history", false, "Do not record the run in the history database")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent merge jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		runID, _ := cmd.Flags().GetString("run")
		showRuns, _ := cmd.Flags().GetBool("runs")

		store, err := storage.NewBoltStore(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history %s: %w", cfg.History.Path, err)
		}
		defer store.Close()

		if showRuns {
			runs, err := store.ListRuns(limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			return renderRuns(os.Stdout, runs)
		}

		var recs []*types.JobRecord
		if runID != "" {
			recs, err = store.ListJobRecordsByRun(runID)
		} else {
			recs, err = store.ListJobRecords(limit)
		}
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		return renderJobs(os.Stdout, recs)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "Number of jobs to show")
	historyCmd.Flags().String("run", "", "Only show jobs of this run ID")
	historyCmd.Flags().Bool("runs", false, "List scheduler runs instead of jobs")
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Show disks, locations and free memory as the scheduler sees them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		p, err := newProbe(cfg)
		if err != nil {
			return err
		}

		disks := p.ListDisks()
		fmt.Printf("Free memory: %d MB\n\n", p.FreeMemoryMB(0))

		return renderDisks(os.Stdout, p, disks)
	},
}
