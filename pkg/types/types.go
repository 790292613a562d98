package types

import (
	"path/filepath"
	"strings"
	"time"
)

// Disk is the mount path of a data volume (e.g. /data_3)
type Disk string

// Location is one host's backup tree on one disk
type Location struct {
	Disk Disk
	Path string
}

// NewLocation creates a location with the trailing separator stripped
func NewLocation(disk Disk, path string) Location {
	return Location{
		Disk: disk,
		Path: TrimSeparator(path),
	}
}

// Host returns the host directory name for the location.
// Locations follow <disk>/primary/<pool>/<host>/<cloud>, so the host is the
// parent of the leaf directory.
func (l Location) Host() string {
	return filepath.Base(filepath.Dir(l.Path))
}

// TrimSeparator removes trailing path separators, keeping "/" intact
func TrimSeparator(path string) string {
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

// Class identifies the kind of merge a job performs
type Class string

const (
	ClassDaily  Class = "daily"
	ClassMaster Class = "master"
)

// Subdir returns the output subdirectory for the class under a location
func (c Class) Subdir() string {
	switch c {
	case ClassMaster:
		return "master"
	default:
		return "daily"
	}
}

// Valid reports whether the class is known
func (c Class) Valid() bool {
	return c == ClassDaily || c == ClassMaster
}

// JobStatus is derived from the merge process exit state
type JobStatus string

const (
	JobStatusNotStarted JobStatus = "not_started"
	JobStatusRunning    JobStatus = "running"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// Decision is the admission verdict a policy returns for a candidate job
type Decision string

const (
	// DecisionProceed starts the job now
	DecisionProceed Decision = "PROCEED"
	// DecisionWait means the parallelism limit is reached
	DecisionWait Decision = "WAIT"
	// DecisionIgnore means the job's disk is busy
	DecisionIgnore Decision = "IGNORE"
	// DecisionNoMemory means free memory is below the class threshold
	DecisionNoMemory Decision = "NOMEMORY"
	// DecisionSkip aborts admission for the rest of the run
	DecisionSkip Decision = "SKIP"
)

// RunResult is how an Execute call ended
type RunResult string

const (
	// RunCompleted means every discovered job was run
	RunCompleted RunResult = "completed"
	// RunPreempted means the policy stopped admission with SKIP
	RunPreempted RunResult = "preempted"
	// RunInterrupted means the context was cancelled before admission finished
	RunInterrupted RunResult = "interrupted"
)

const (
	// CompleteMarker marks a date/class/location as needing no further merge work
	CompleteMarker = ".complete"

	// DoneSentinel is written by the merge tool when its output is safe to replicate
	DoneSentinel = ".done"

	// DateLayout is the layout of merge dates
	DateLayout = "2006-01-02"
)

// Run is the audit record of one Execute call
type Run struct {
	ID         string    `json:"id"`
	Class      Class     `json:"class"`
	Date       string    `json:"date"`
	Discovered int       `json:"discovered"`
	Completed  bool      `json:"completed"`
	Result     RunResult `json:"result,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// JobRecord is the audit record of one finished merge job
type JobRecord struct {
	RunID      string        `json:"run_id"`
	Class      Class         `json:"class"`
	Disk       Disk          `json:"disk"`
	Host       string        `json:"host"`
	Location   string        `json:"location"`
	Date       string        `json:"date"`
	Status     JobStatus     `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration"`
	OutputPath string        `json:"output_path"`
	Copied     bool          `json:"copied"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}
