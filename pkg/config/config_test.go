package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergesched.yaml")
	data := `
daily_merge:
  parallel_processes: 6
  free_memory_threshold: 1024
master_merge:
  parallel_processes: 1
paths:
  disk_glob: /srv/data_*
daemon:
  interval: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.DailyMerge.ParallelProcesses)
	assert.Equal(t, 1024, cfg.DailyMerge.FreeMemoryThreshold)
	assert.Equal(t, 1, cfg.MasterMerge.ParallelProcesses)
	assert.Equal(t, 4096, cfg.MasterMerge.FreeMemoryThreshold, "unset keys keep defaults")
	assert.Equal(t, "/srv/data_*", cfg.Paths.DiskGlob)
	assert.Equal(t, "primary", cfg.Paths.PrimaryDir)
	assert.Equal(t, 30*time.Second, cfg.Daemon.Interval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "malformed yaml", data: "daily_merge: [1, 2"},
		{name: "zero daily parallelism", data: "daily_merge:\n  parallel_processes: 0\n"},
		{name: "negative master parallelism", data: "master_merge:\n  parallel_processes: -1\n"},
		{name: "negative threshold", data: "daily_merge:\n  free_memory_threshold: -5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mergesched.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestDefault_Validates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
