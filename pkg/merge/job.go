package merge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cuemby/mergesched/pkg/types"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("merge job already started")

	// ErrNotMarked is returned when a job is queued for copy before MarkComplete
	ErrNotMarked = errors.New("merge job output path not computed")
)

const (
	// outputTailBytes bounds how much merge output is kept per stream
	outputTailBytes = 64 * 1024

	// outputGrace bounds how long a finished job waits for its output to
	// drain. Descendants that keep the pipes open do not hold the slot.
	outputGrace = 100 * time.Millisecond
)

// Config holds the external contract shared by all jobs of a scheduler
type Config struct {
	// DailyCommand and MasterCommand are the merge executables per class
	DailyCommand  string
	MasterCommand string

	// WebAccount owns merge output directories
	WebAccount string

	// ServiceAccount owns the dirty file and its lock
	ServiceAccount string

	// DirtyFile is the per-disk secondary-copy file name, relative to the disk
	DirtyFile string
}

// Job is one merge of one location for one date
type Job struct {
	class    types.Class
	location types.Location
	date     string
	cfg      *Config

	path string

	cmd      *exec.Cmd
	done     chan struct{}
	running  bool
	finished bool
	exitCode int
	stdout   *tailBuffer
	stderr   *tailBuffer

	startedAt  time.Time
	finishedAt time.Time
}

// NewJob creates a merge job. A location without a disk takes the first
// path segment as its disk.
func NewJob(cfg *Config, class types.Class, loc types.Location, date string) *Job {
	loc.Path = types.TrimSeparator(loc.Path)
	if loc.Disk == "" {
		loc.Disk = rootSegment(loc.Path)
	}
	return &Job{
		class:    class,
		location: loc,
		date:     date,
		cfg:      cfg,
		exitCode: -1,
	}
}

func rootSegment(path string) types.Disk {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	return types.Disk("/" + parts[0])
}

// Class returns the merge class
func (j *Job) Class() types.Class { return j.class }

// Location returns the backup location
func (j *Job) Location() types.Location { return j.location }

// Date returns the merge date
func (j *Job) Date() string { return j.date }

// Disk returns the disk holding the location
func (j *Job) Disk() types.Disk { return j.location.Disk }

// Host returns the host the location belongs to
func (j *Job) Host() string { return j.location.Host() }

// OutputPath returns the path computed by MarkComplete, or "" before it
func (j *Job) OutputPath() string { return j.path }

// Equal reports whether both jobs describe the same class, location and date
func (j *Job) Equal(other *Job) bool {
	if other == nil {
		return false
	}
	return j.class == other.class &&
		j.location.Path == other.location.Path &&
		j.date == other.date
}

// String identifies the job in logs
func (j *Job) String() string {
	return fmt.Sprintf("%s:%s:%s", j.class, j.location.Path, j.date)
}

// Command returns the argv of the merge invocation
func (j *Job) Command() []string {
	exe := j.cfg.DailyCommand
	if j.class == types.ClassMaster {
		exe = j.cfg.MasterCommand
	}
	return []string{exe, "-p", j.location.Path, "-d", j.date}
}

// Start spawns the merge process in its own process group. A non-zero exit
// is not reported here; observe it through PollComplete and Status.
func (j *Job) Start() error {
	if j.cmd != nil {
		return ErrAlreadyStarted
	}

	argv := j.Command()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Pipes are handed to the child as files so Wait returns when the
	// process exits, not when every holder of the write ends closes them.
	j.stdout = newTailBuffer(outputTailBytes)
	j.stderr = newTailBuffer(outputTailBytes)
	outR, outW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	err = cmd.Start()
	outW.Close()
	errW.Close()
	if err != nil {
		outR.Close()
		errR.Close()
		return fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	drained := make(chan struct{}, 2)
	go drain(j.stdout, outR, drained)
	go drain(j.stderr, errR, drained)

	j.cmd = cmd
	j.running = true
	j.startedAt = time.Now()
	j.done = make(chan struct{})
	go func() {
		_ = cmd.Wait()

		grace := time.NewTimer(outputGrace)
		defer grace.Stop()
	output:
		for i := 0; i < 2; i++ {
			select {
			case <-drained:
			case <-grace.C:
				break output
			}
		}
		close(j.done)
	}()
	return nil
}

// drain copies r into buf until every writer closes r
func drain(buf *tailBuffer, r *os.File, drained chan<- struct{}) {
	_, _ = io.Copy(buf, r)
	r.Close()
	drained <- struct{}{}
}

// Running reports whether the process was started and not yet observed finished
func (j *Job) Running() bool { return j.running }

// PollComplete checks without blocking whether the process has exited.
// The first observed exit latches the exit code.
func (j *Job) PollComplete() bool {
	if j.finished {
		return true
	}
	if j.cmd == nil {
		return false
	}

	select {
	case <-j.done:
		j.finished = true
		j.running = false
		j.exitCode = j.cmd.ProcessState.ExitCode()
		j.finishedAt = time.Now()
		return true
	default:
		return false
	}
}

// Status derives the job status from the process state
func (j *Job) Status() types.JobStatus {
	if j.cmd == nil {
		return types.JobStatusNotStarted
	}
	if !j.PollComplete() {
		return types.JobStatusRunning
	}
	if j.exitCode == 0 {
		return types.JobStatusSuccess
	}
	return types.JobStatusFailed
}

// ExitCode returns the latched exit code, -1 while unknown or when killed by a signal
func (j *Job) ExitCode() int { return j.exitCode }

// PID returns the process id, 0 before Start
func (j *Job) PID() int {
	if j.cmd == nil || j.cmd.Process == nil {
		return 0
	}
	return j.cmd.Process.Pid
}

// Duration returns how long the process ran, or has been running
func (j *Job) Duration() time.Duration {
	if j.startedAt.IsZero() {
		return 0
	}
	if j.finishedAt.IsZero() {
		return time.Since(j.startedAt)
	}
	return j.finishedAt.Sub(j.startedAt)
}

// Output returns the captured tail of stdout and stderr. Output written by
// descendants after the job finished may still be appended.
func (j *Job) Output() (stdout, stderr string) {
	if !j.finished {
		return "", ""
	}
	return j.stdout.String(), j.stderr.String()
}

// outputDir is <location>/<daily|master>/<date>
func (j *Job) outputDir() string {
	return filepath.Join(j.location.Path, j.class.Subdir(), j.date)
}

// IsComplete reports whether the location already carries a completion marker for the date
func IsComplete(class types.Class, loc types.Location, date string) bool {
	path := filepath.Join(loc.Path, class.Subdir(), date, types.CompleteMarker)
	_, err := os.Stat(path)
	return err == nil
}
