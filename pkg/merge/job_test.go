package merge

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/mergesched/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script standing in for a merge tool
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "merge.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func currentAccount(t *testing.T) string {
	t.Helper()
	u, err := user.Current()
	require.NoError(t, err)
	return u.Username
}

// newTestLocation builds <disk>/primary/pool/<host>/zone under a temp disk
func newTestLocation(t *testing.T, host string) types.Location {
	t.Helper()
	disk := filepath.Join(t.TempDir(), "data_1")
	path := filepath.Join(disk, "primary", "pool", host, "zone")
	require.NoError(t, os.MkdirAll(path, 0755))
	return types.NewLocation(types.Disk(disk), path)
}

func waitFinished(t *testing.T, j *Job) {
	t.Helper()
	require.Eventually(t, j.PollComplete, 10*time.Second, 10*time.Millisecond)
}

func TestJob_Equal(t *testing.T) {
	cfg := &Config{}
	loc := types.NewLocation("/data_1", "/data_1/primary/pool/host-a/zone")

	a := NewJob(cfg, types.ClassDaily, loc, "2024-01-01")
	tests := []struct {
		name  string
		other *Job
		want  bool
	}{
		{name: "same fields", other: NewJob(cfg, types.ClassDaily, loc, "2024-01-01"), want: true},
		{
			name:  "trailing separator normalized",
			other: NewJob(cfg, types.ClassDaily, types.Location{Disk: "/data_1", Path: loc.Path + "/"}, "2024-01-01"),
			want:  true,
		},
		{name: "different class", other: NewJob(cfg, types.ClassMaster, loc, "2024-01-01"), want: false},
		{name: "different date", other: NewJob(cfg, types.ClassDaily, loc, "2024-01-02"), want: false},
		{
			name:  "different location",
			other: NewJob(cfg, types.ClassDaily, types.NewLocation("/data_1", "/data_1/primary/pool/host-b/zone"), "2024-01-01"),
			want:  false,
		},
		{name: "nil", other: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Equal(tt.other))
		})
	}
}

func TestJob_DiskAndHost(t *testing.T) {
	j := NewJob(&Config{}, types.ClassDaily, types.Location{Path: "/data_7/primary/pool/host-a/zone/"}, "2024-01-01")

	assert.Equal(t, types.Disk("/data_7"), j.Disk())
	assert.Equal(t, "host-a", j.Host())
	assert.Equal(t, "/data_7/primary/pool/host-a/zone", j.Location().Path)
}

func TestJob_Command(t *testing.T) {
	cfg := &Config{DailyCommand: "/opt/daily-merge", MasterCommand: "/opt/master-merge"}
	loc := types.NewLocation("/data_1", "/data_1/primary/pool/host-a/zone")

	daily := NewJob(cfg, types.ClassDaily, loc, "2024-01-01")
	assert.Equal(t, []string{"/opt/daily-merge", "-p", loc.Path, "-d", "2024-01-01"}, daily.Command())

	master := NewJob(cfg, types.ClassMaster, loc, "2024-01-01")
	assert.Equal(t, []string{"/opt/master-merge", "-p", loc.Path, "-d", "2024-01-01"}, master.Command())
}

func TestJob_Lifecycle(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   types.JobStatus
		code   int
	}{
		{name: "success", script: "echo merged", want: types.JobStatusSuccess, code: 0},
		{name: "failure", script: "echo broken >&2; exit 3", want: types.JobStatusFailed, code: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DailyCommand: writeScript(t, tt.script)}
			j := NewJob(cfg, types.ClassDaily, newTestLocation(t, "host-a"), "2024-01-01")

			assert.Equal(t, types.JobStatusNotStarted, j.Status())
			assert.False(t, j.PollComplete())

			require.NoError(t, j.Start())
			assert.ErrorIs(t, j.Start(), ErrAlreadyStarted)
			assert.NotZero(t, j.PID())

			waitFinished(t, j)
			assert.False(t, j.Running())
			assert.Equal(t, tt.want, j.Status())
			assert.Equal(t, tt.code, j.ExitCode())

			// idempotent after termination
			assert.True(t, j.PollComplete())
			assert.Equal(t, tt.want, j.Status())

			stdout, stderr := j.Output()
			if tt.code == 0 {
				assert.Equal(t, "merged\n", stdout)
			} else {
				assert.Equal(t, "broken\n", stderr)
			}
		})
	}
}

func TestJob_RunningUntilExit(t *testing.T) {
	cfg := &Config{DailyCommand: writeScript(t, "sleep 0.3")}
	j := NewJob(cfg, types.ClassDaily, newTestLocation(t, "host-a"), "2024-01-01")

	require.NoError(t, j.Start())
	assert.True(t, j.Running())
	assert.Equal(t, types.JobStatusRunning, j.Status())

	waitFinished(t, j)
	assert.Equal(t, types.JobStatusSuccess, j.Status())
}

func TestJob_FinishedWhileDescendantHoldsOutput(t *testing.T) {
	cfg := &Config{DailyCommand: writeScript(t, "echo forked; sleep 3 & exit 0")}
	j := NewJob(cfg, types.ClassDaily, newTestLocation(t, "host-a"), "2024-01-01")

	start := time.Now()
	require.NoError(t, j.Start())
	require.Eventually(t, j.PollComplete, 2*time.Second, 10*time.Millisecond)

	assert.Less(t, time.Since(start), 2*time.Second, "slot held by a background descendant")
	assert.Equal(t, types.JobStatusSuccess, j.Status())
	assert.Eventually(t, func() bool {
		stdout, _ := j.Output()
		return stdout == "forked\n"
	}, time.Second, 10*time.Millisecond)
}

func TestJob_StartMissingExecutable(t *testing.T) {
	cfg := &Config{DailyCommand: filepath.Join(t.TempDir(), "absent")}
	j := NewJob(cfg, types.ClassDaily, newTestLocation(t, "host-a"), "2024-01-01")

	assert.Error(t, j.Start())
	assert.Equal(t, types.JobStatusNotStarted, j.Status())
}

func TestJob_MarkComplete(t *testing.T) {
	loc := newTestLocation(t, "host-a")
	j := NewJob(&Config{WebAccount: currentAccount(t)}, types.ClassMaster, loc, "2024-01-01")

	assert.False(t, IsComplete(types.ClassMaster, loc, "2024-01-01"))
	require.NoError(t, j.MarkComplete())

	assert.Equal(t, filepath.Join(loc.Path, "master", "2024-01-01"), j.OutputPath())
	assert.FileExists(t, filepath.Join(j.OutputPath(), ".complete"))
	assert.True(t, IsComplete(types.ClassMaster, loc, "2024-01-01"))
	assert.False(t, IsComplete(types.ClassDaily, loc, "2024-01-01"))
}

func TestJob_MarkCompleteUnknownAccount(t *testing.T) {
	loc := newTestLocation(t, "host-a")
	j := NewJob(&Config{WebAccount: "no-such-account-mergesched"}, types.ClassDaily, loc, "2024-01-01")

	err := j.MarkComplete()
	assert.Error(t, err)
	assert.FileExists(t, filepath.Join(j.OutputPath(), ".complete"), "marker is written even when chown fails")
}

func TestJob_MarkForSecondaryCopyBeforeComplete(t *testing.T) {
	j := NewJob(&Config{DirtyFile: "dirty"}, types.ClassDaily, newTestLocation(t, "host-a"), "2024-01-01")
	assert.ErrorIs(t, j.MarkForSecondaryCopy(), ErrNotMarked)
}

func TestJob_FinishUp(t *testing.T) {
	// script args: -p <location> -d <date>
	const writeDone = `mkdir -p "$2/daily/$4" && touch "$2/daily/$4/.done"`

	tests := []struct {
		name       string
		script     string
		wantStatus types.JobStatus
		wantCopied bool
	}{
		{name: "success with sentinel", script: writeDone, wantStatus: types.JobStatusSuccess, wantCopied: true},
		{name: "success without sentinel", script: "exit 0", wantStatus: types.JobStatusSuccess, wantCopied: false},
		{name: "failure with sentinel", script: writeDone + "; exit 1", wantStatus: types.JobStatusFailed, wantCopied: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := newTestLocation(t, "host-a")
			account := currentAccount(t)
			cfg := &Config{
				DailyCommand:   writeScript(t, tt.script),
				WebAccount:     account,
				ServiceAccount: account,
				DirtyFile:      "dirty",
			}
			j := NewJob(cfg, types.ClassDaily, loc, "2024-01-01")
			require.NoError(t, j.Start())
			waitFinished(t, j)

			res := j.FinishUp()
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.NoError(t, res.MarkErr)
			assert.NoError(t, res.CopyErr)
			assert.Equal(t, tt.wantCopied, res.Copied)
			assert.FileExists(t, filepath.Join(res.OutputPath, ".complete"))

			dirty := filepath.Join(string(loc.Disk), "dirty")
			data, err := os.ReadFile(dirty)
			if tt.wantCopied {
				require.NoError(t, err)
				assert.Equal(t, res.OutputPath+"\n", string(data))
				assert.FileExists(t, dirty+".lock")
			} else {
				assert.True(t, os.IsNotExist(err), "dirty file must not be written")
			}
		})
	}
}

func TestAppendLocked_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirty")
	account := currentAccount(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, AppendLocked(path, fmt.Sprintf("/data_1/out/%d\n", i), account))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.Len(t, lines, 20)
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)
	_, _ = b.Write([]byte("abcd"))
	_, _ = b.Write([]byte("efghij"))
	assert.Equal(t, "cdefghij", b.String())

	_, _ = b.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", b.String())
}
