package probe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/mergesched/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMem struct {
	kb  uint64
	err error
}

func (f fakeMem) FreeKB() (uint64, error) { return f.kb, f.err }

type fakeProcs struct {
	procs []Process
	err   error
}

func (f fakeProcs) Processes() ([]Process, error) { return f.procs, f.err }

func newTestProbe(t *testing.T, root string, mem MemInfoReader, procs ProcessLister) *FSProbe {
	t.Helper()
	return NewFSProbe(Config{
		DiskGlob:      filepath.Join(root, "data_*"),
		BadDiskFile:   filepath.Join(root, "bad_disks"),
		PrimaryDir:    "primary",
		LocationDepth: 3,
		DirtyFile:     "dirty",
		TransferTool:  "aria2c",
		SplitSizeMB:   512,
	}, mem, procs)
}

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(p, 0755))
	}
}

func TestListDisks_ExcludesBadDisks(t *testing.T) {
	root := t.TempDir()
	mkdirs(t,
		filepath.Join(root, "data_1"),
		filepath.Join(root, "data_2"),
		filepath.Join(root, "data_3"),
		filepath.Join(root, "other"),
	)
	bad := filepath.Join(root, "data_2") + " failed smart check\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad_disks"), []byte(bad), 0644))

	p := newTestProbe(t, root, fakeMem{}, nil)
	disks := p.ListDisks()

	assert.Equal(t, []types.Disk{
		types.Disk(filepath.Join(root, "data_1")),
		types.Disk(filepath.Join(root, "data_3")),
	}, disks)
}

func TestListDisks_NoBadDiskFile(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, filepath.Join(root, "data_1"))

	p := newTestProbe(t, root, fakeMem{}, nil)
	assert.Len(t, p.ListDisks(), 1)
}

func TestListLocations(t *testing.T) {
	root := t.TempDir()
	d1 := filepath.Join(root, "data_1")
	d2 := filepath.Join(root, "data_2")
	mkdirs(t,
		filepath.Join(d1, "primary", "pool", "host-b", "zone"),
		filepath.Join(d1, "primary", "pool", "host-a", "zone"),
		filepath.Join(d1, "primary", "pool", "host-a", "zone", "daily", "2024-01-01"),
		filepath.Join(d1, "primary", "shallow"),
		d2, // no primary subtree
	)
	require.NoError(t, os.WriteFile(filepath.Join(d1, "primary", "pool", "file"), nil, 0644))

	p := newTestProbe(t, root, fakeMem{}, nil)
	locs := p.ListLocations([]types.Disk{types.Disk(d1), types.Disk(d2)})

	require.Len(t, locs, 2)
	assert.Equal(t, filepath.Join(d1, "primary", "pool", "host-a", "zone"), locs[0].Path)
	assert.Equal(t, filepath.Join(d1, "primary", "pool", "host-b", "zone"), locs[1].Path)
	assert.Equal(t, types.Disk(d1), locs[0].Disk)
	assert.Equal(t, "host-a", locs[0].Host())
}

func TestIsDiskBusy(t *testing.T) {
	tests := []struct {
		name  string
		dirty string
		procs []Process
		want  bool
	}{
		{name: "idle", want: false},
		{name: "whitespace dirty file", dirty: "\n  \n", want: false},
		{name: "pending dirty entries", dirty: "/data_1/primary/a/b/c/daily/2024-01-01\n", want: true},
		{
			name: "transfer on this disk",
			procs: []Process{
				{PID: 10, Comm: "aria2c", Args: []string{"aria2c", "-d", "DISK/primary/x"}},
			},
			want: true,
		},
		{
			name: "transfer on another disk",
			procs: []Process{
				{PID: 10, Comm: "aria2c", Args: []string{"aria2c", "-d", "/data_99/primary/x"}},
			},
			want: false,
		},
		{
			name: "other tool mentions disk",
			procs: []Process{
				{PID: 11, Comm: "rsync", Args: []string{"rsync", "DISK"}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			disk := filepath.Join(root, "data_1")
			mkdirs(t, disk)
			if tt.dirty != "" {
				require.NoError(t, os.WriteFile(filepath.Join(disk, "dirty"), []byte(tt.dirty), 0644))
			}
			var procs []Process
			for _, proc := range tt.procs {
				args := make([]string, len(proc.Args))
				for j, a := range proc.Args {
					args[j] = strings.Replace(a, "DISK", disk, 1)
				}
				procs = append(procs, Process{PID: proc.PID, Comm: proc.Comm, Args: args})
			}

			p := newTestProbe(t, root, fakeMem{}, fakeProcs{procs: procs})
			assert.Equal(t, tt.want, p.IsDiskBusy(types.Disk(disk)))
		})
	}
}

func TestIsDiskBusy_ProcessListError(t *testing.T) {
	root := t.TempDir()
	p := newTestProbe(t, root, fakeMem{}, fakeProcs{err: errors.New("permission denied")})
	assert.False(t, p.IsDiskBusy(types.Disk(filepath.Join(root, "data_1"))))
}

func TestFreeMemoryMB(t *testing.T) {
	p := newTestProbe(t, t.TempDir(), fakeMem{kb: 8192 * 1024}, nil)

	assert.Equal(t, 8192, p.FreeMemoryMB(0), "no active jobs uses the raw value")
	assert.Equal(t, 8192-1024, p.FreeMemoryMB(1))
	assert.Equal(t, 8192-3*1024, p.FreeMemoryMB(3))
}

func TestFreeMemoryMB_ReadError(t *testing.T) {
	p := newTestProbe(t, t.TempDir(), fakeMem{err: errors.New("no meminfo")}, nil)
	assert.Equal(t, 0, p.FreeMemoryMB(0))
}
