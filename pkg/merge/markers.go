package merge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cuemby/mergesched/pkg/types"
)

// FinishResult describes the completion steps run for a finished job
type FinishResult struct {
	Status     types.JobStatus
	OutputPath string

	// MarkErr is set when writing the completion marker or ownership failed
	MarkErr error

	// Ready is true when the merge tool left a .done sentinel
	Ready bool

	// Copied is true when the output was appended to the dirty file
	Copied  bool
	CopyErr error
}

// MarkComplete creates the output directory, drops a .complete marker in it
// and hands the tree to the web account. Every step is attempted; the
// returned error joins whatever failed.
func (j *Job) MarkComplete() error {
	j.path = j.outputDir()

	var errs []error
	if err := os.MkdirAll(j.path, 0755); err != nil {
		errs = append(errs, fmt.Errorf("failed to create directory %s: %w", j.path, err))
	}

	if err := touch(filepath.Join(j.path, types.CompleteMarker)); err != nil {
		errs = append(errs, fmt.Errorf("failed to create %s at %s: %w", types.CompleteMarker, j.path, err))
	}

	if j.cfg.WebAccount != "" {
		if err := chownTree(j.path, j.cfg.WebAccount); err != nil {
			errs = append(errs, fmt.Errorf("failed to change owner of %s to %s: %w", j.path, j.cfg.WebAccount, err))
		}
	}

	return errors.Join(errs...)
}

// MarkForSecondaryCopy appends the output path to the disk's dirty file
func (j *Job) MarkForSecondaryCopy() error {
	if j.path == "" {
		return ErrNotMarked
	}
	dirty := filepath.Join(string(j.Disk()), j.cfg.DirtyFile)
	if err := AppendLocked(dirty, j.path+"\n", j.cfg.ServiceAccount); err != nil {
		return fmt.Errorf("unable to mark %s in %s: %w", j.path, dirty, err)
	}
	return nil
}

// FinishUp always marks the job complete. Successful jobs whose output
// carries a .done sentinel are also queued for secondary copy.
func (j *Job) FinishUp() FinishResult {
	res := FinishResult{}
	res.MarkErr = j.MarkComplete()
	res.OutputPath = j.path
	res.Status = j.Status()

	if res.Status != types.JobStatusSuccess {
		return res
	}

	if _, err := os.Stat(filepath.Join(j.path, types.DoneSentinel)); err != nil {
		return res
	}
	res.Ready = true

	if err := j.MarkForSecondaryCopy(); err != nil {
		res.CopyErr = err
		return res
	}
	res.Copied = true
	return res
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// chownTree sets ownership of root and everything below it
func chownTree(root, account string) error {
	uid, gid, err := lookupAccount(account)
	if err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Lchown(path, uid, gid)
	})
}
