package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is where the daemon looks for its configuration
	DefaultConfigPath = "/etc/membase-backup/mergesched.yaml"

	// DefaultSplitSizeMB is the backup split size; each running job is expected
	// to hold twice this much memory
	DefaultSplitSizeMB = 512
)

// Config holds the merge scheduler configuration
type Config struct {
	DailyMerge  ClassConfig   `yaml:"daily_merge"`
	MasterMerge ClassConfig   `yaml:"master_merge"`
	Paths       PathsConfig   `yaml:"paths"`
	Accounts    AccountConfig `yaml:"accounts"`
	SplitSizeMB int           `yaml:"split_size_mb"`

	// TransferTool is the process name whose command line marks a disk busy
	TransferTool string `yaml:"transfer_tool"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
	Daemon  DaemonConfig  `yaml:"daemon"`
}

// ClassConfig holds the admission limits of one merge class
type ClassConfig struct {
	ParallelProcesses   int `yaml:"parallel_processes"`
	FreeMemoryThreshold int `yaml:"free_memory_threshold"`
}

// PathsConfig holds filesystem layout and executable locations
type PathsConfig struct {
	DiskGlob      string `yaml:"disk_glob"`
	BadDiskFile   string `yaml:"bad_disk_file"`
	PrimaryDir    string `yaml:"primary_dir"`
	LocationDepth int    `yaml:"location_depth"`
	DirtyFile     string `yaml:"dirty_file"`
	DailyMerge    string `yaml:"daily_merge_cmd"`
	MasterMerge   string `yaml:"master_merge_cmd"`
	ProcRoot      string `yaml:"proc_root"`
}

// AccountConfig names the accounts that own written files
type AccountConfig struct {
	// Web owns merge output directories
	Web string `yaml:"web"`
	// Service owns the dirty file and its lock
	Service string `yaml:"service"`
}

// LogConfig mirrors log.Config
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig configures the Prometheus endpoint in daemon mode
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// HistoryConfig configures the run history database
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// DaemonConfig configures the periodic loop
type DaemonConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns a configuration with production defaults
func Default() *Config {
	return &Config{
		DailyMerge: ClassConfig{
			ParallelProcesses:   4,
			FreeMemoryThreshold: 2048,
		},
		MasterMerge: ClassConfig{
			ParallelProcesses:   2,
			FreeMemoryThreshold: 4096,
		},
		Paths: PathsConfig{
			DiskGlob:      "/data_*",
			BadDiskFile:   "/var/tmp/membase-backup/bad_disks",
			PrimaryDir:    "primary",
			LocationDepth: 3,
			DirtyFile:     "dirty",
			DailyMerge:    "/opt/membase/membase-backup/daily-merge",
			MasterMerge:   "/opt/membase/membase-backup/master-merge",
			ProcRoot:      "/proc",
		},
		Accounts: AccountConfig{
			Web:     "apache",
			Service: "storageserver",
		},
		SplitSizeMB:  DefaultSplitSizeMB,
		TransferTool: "aria2c",
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: ":9190",
		},
		History: HistoryConfig{
			Path: "/var/lib/mergesched/history.db",
		},
		Daemon: DaemonConfig{
			Interval: 60 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the limits the scheduler depends on
func (c *Config) Validate() error {
	if c.DailyMerge.ParallelProcesses <= 0 {
		return fmt.Errorf("daily_merge.parallel_processes must be positive, got %d", c.DailyMerge.ParallelProcesses)
	}
	if c.MasterMerge.ParallelProcesses <= 0 {
		return fmt.Errorf("master_merge.parallel_processes must be positive, got %d", c.MasterMerge.ParallelProcesses)
	}
	if c.DailyMerge.FreeMemoryThreshold < 0 || c.MasterMerge.FreeMemoryThreshold < 0 {
		return fmt.Errorf("free_memory_threshold must not be negative")
	}
	if c.SplitSizeMB < 0 {
		return fmt.Errorf("split_size_mb must not be negative, got %d", c.SplitSizeMB)
	}
	if c.Paths.LocationDepth <= 0 {
		return fmt.Errorf("paths.location_depth must be positive, got %d", c.Paths.LocationDepth)
	}
	if c.Daemon.Interval <= 0 {
		return fmt.Errorf("daemon.interval must be positive")
	}
	return nil
}
