package probe

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// MemInfoReader reports free plus reclaimable memory
type MemInfoReader interface {
	FreeKB() (uint64, error)
}

// Process is the subset of a process table entry the busy check needs
type Process struct {
	PID  int
	Comm string
	Args []string
}

// ProcessLister enumerates running processes
type ProcessLister interface {
	Processes() ([]Process, error)
}

// ProcSource reads memory and processes from a procfs mount
type ProcSource struct {
	fs procfs.FS
}

// NewProcSource opens the procfs mounted at mountPoint (usually /proc)
func NewProcSource(mountPoint string) (*ProcSource, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}
	return &ProcSource{fs: fs}, nil
}

// FreeKB returns MemFree + Buffers + Cached, the free and cache columns of free(1)
func (s *ProcSource) FreeKB() (uint64, error) {
	mi, err := s.fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("failed to read meminfo: %w", err)
	}
	if mi.MemFree == nil {
		return 0, fmt.Errorf("meminfo has no MemFree")
	}

	total := *mi.MemFree
	if mi.Buffers != nil {
		total += *mi.Buffers
	}
	if mi.Cached != nil {
		total += *mi.Cached
	}
	return total, nil
}

// Processes lists running processes. Processes that exit while being read are skipped.
func (s *ProcSource) Processes() ([]Process, error) {
	procs, err := s.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	result := make([]Process, 0, len(procs))
	for _, p := range procs {
		comm, err := p.Comm()
		if err != nil {
			continue
		}
		args, err := p.CmdLine()
		if err != nil {
			continue
		}
		result = append(result, Process{PID: p.PID, Comm: comm, Args: args})
	}
	return result, nil
}
