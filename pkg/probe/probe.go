package probe

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/mergesched/pkg/log"
	"github.com/cuemby/mergesched/pkg/types"
	"github.com/rs/zerolog"
)

// ResourceProbe answers the system questions the admission loop asks
type ResourceProbe interface {
	// ListDisks returns usable data volumes, excluding bad disks
	ListDisks() []types.Disk

	// ListLocations returns the host backup trees found on the disks
	ListLocations(disks []types.Disk) []types.Location

	// IsDiskBusy reports pending secondary-copy work or an active transfer
	IsDiskBusy(disk types.Disk) bool

	// FreeMemoryMB returns free plus reclaimable memory minus the
	// reservation held by activeJobs running merges
	FreeMemoryMB(activeJobs int) int
}

// Config holds the filesystem layout the probe inspects
type Config struct {
	DiskGlob      string
	BadDiskFile   string
	PrimaryDir    string
	LocationDepth int
	DirtyFile     string
	TransferTool  string
	SplitSizeMB   int
}

// FSProbe implements ResourceProbe against the local filesystem and procfs
type FSProbe struct {
	cfg    Config
	mem    MemInfoReader
	procs  ProcessLister
	logger zerolog.Logger
}

// NewFSProbe creates a probe. mem and procs are usually the same *ProcSource.
func NewFSProbe(cfg Config, mem MemInfoReader, procs ProcessLister) *FSProbe {
	if cfg.LocationDepth <= 0 {
		cfg.LocationDepth = 3
	}
	if cfg.PrimaryDir == "" {
		cfg.PrimaryDir = "primary"
	}
	return &FSProbe{
		cfg:    cfg,
		mem:    mem,
		procs:  procs,
		logger: log.WithComponent("probe"),
	}
}

// ListDisks globs candidate volumes and drops any disk named in the bad-disk file
func (p *FSProbe) ListDisks() []types.Disk {
	matches, err := filepath.Glob(p.cfg.DiskGlob)
	if err != nil {
		p.logger.Error().Err(err).Str("pattern", p.cfg.DiskGlob).Msg("Invalid disk pattern")
		return nil
	}
	sort.Strings(matches)

	bad := p.badDisks()

	var disks []types.Disk
	for _, m := range matches {
		if isBad(m, bad) {
			p.logger.Debug().Str("disk", m).Msg("Skipping bad disk")
			continue
		}
		disks = append(disks, types.Disk(m))
	}
	return disks
}

func (p *FSProbe) badDisks() []string {
	if p.cfg.BadDiskFile == "" {
		return nil
	}
	f, err := os.Open(p.cfg.BadDiskFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn().Err(err).Str("file", p.cfg.BadDiskFile).Msg("Unable to read bad disk list")
		}
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// isBad matches the disk path as a substring of each listed line
func isBad(disk string, lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, disk) {
			return true
		}
	}
	return false
}

// ListLocations returns directories exactly LocationDepth levels below
// <disk>/<PrimaryDir>, in disk order then lexical order
func (p *FSProbe) ListLocations(disks []types.Disk) []types.Location {
	var locations []types.Location
	for _, d := range disks {
		found, err := p.diskLocations(d)
		if err != nil {
			p.logger.Warn().Err(err).Str("disk", string(d)).Msg("Unable to list locations")
			continue
		}
		locations = append(locations, found...)
	}
	return locations
}

func (p *FSProbe) diskLocations(disk types.Disk) ([]types.Location, error) {
	root := filepath.Join(string(disk), p.cfg.PrimaryDir)
	var found []types.Location

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		depth := 0
		if rel != "." {
			depth = strings.Count(rel, string(filepath.Separator)) + 1
		}
		if depth == p.cfg.LocationDepth {
			found = append(found, types.NewLocation(disk, path))
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// IsDiskBusy reports whether the disk has unacknowledged dirty entries or a
// running transfer tool referencing it
func (p *FSProbe) IsDiskBusy(disk types.Disk) bool {
	if p.cfg.DirtyFile != "" {
		data, err := os.ReadFile(filepath.Join(string(disk), p.cfg.DirtyFile))
		if err == nil && strings.TrimSpace(string(data)) != "" {
			return true
		}
	}

	if p.procs == nil || p.cfg.TransferTool == "" {
		return false
	}

	procs, err := p.procs.Processes()
	if err != nil {
		p.logger.Warn().Err(err).Msg("Unable to list processes")
		return false
	}
	for _, proc := range procs {
		if proc.Comm != p.cfg.TransferTool {
			continue
		}
		for _, arg := range proc.Args {
			if strings.Contains(arg, string(disk)) {
				return true
			}
		}
	}
	return false
}

// FreeMemoryMB returns free+reclaimable memory less 2*SplitSizeMB per active
// job. A failed read reports zero so that no job is admitted blind.
func (p *FSProbe) FreeMemoryMB(activeJobs int) int {
	freeKB, err := p.mem.FreeKB()
	if err != nil {
		p.logger.Error().Err(err).Msg("Unable to read memory info")
		return 0
	}
	return ReserveMB(int(freeKB/1024), activeJobs, p.cfg.SplitSizeMB)
}

// ReserveMB subtracts the per-job reservation from a raw free memory value
func ReserveMB(rawMB, activeJobs, splitSizeMB int) int {
	if activeJobs <= 0 {
		return rawMB
	}
	return rawMB - activeJobs*splitSizeMB*2
}
