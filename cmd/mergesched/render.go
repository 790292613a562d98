package main

import (
	"fmt"
	"io"
	"time"

	"github.com/cuemby/mergesched/pkg/probe"
	"github.com/cuemby/mergesched/pkg/types"
	"github.com/olekukonko/tablewriter"
)

func renderJobs(w io.Writer, recs []*types.JobRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header("Finished", "Class", "Date", "Disk", "Host", "Status", "Exit", "Duration", "Copied", "Error")

	for _, r := range recs {
		table.Append(
			r.FinishedAt.Format(time.RFC3339),
			string(r.Class),
			r.Date,
			string(r.Disk),
			r.Host,
			string(r.Status),
			fmt.Sprintf("%d", r.ExitCode),
			r.Duration.Round(time.Second).String(),
			fmt.Sprintf("%t", r.Copied),
			r.Error,
		)
	}
	return table.Render()
}

func renderRuns(w io.Writer, runs []*types.Run) error {
	table := tablewriter.NewWriter(w)
	table.Header("Run ID", "Class", "Date", "Jobs", "Result", "Started", "Finished")

	for _, r := range runs {
		result := string(r.Result)
		finished := r.FinishedAt.Format(time.RFC3339)
		if r.FinishedAt.IsZero() {
			result = "running"
			finished = "-"
		}
		table.Append(
			r.ID,
			string(r.Class),
			r.Date,
			fmt.Sprintf("%d", r.Discovered),
			result,
			r.StartedAt.Format(time.RFC3339),
			finished,
		)
	}
	return table.Render()
}

// renderDisks prints one row per disk with its busy flag and location count
func renderDisks(w io.Writer, p probe.ResourceProbe, disks []types.Disk) error {
	table := tablewriter.NewWriter(w)
	table.Header("Disk", "Busy", "Locations")

	for _, d := range disks {
		locs := p.ListLocations([]types.Disk{d})
		table.Append(string(d), fmt.Sprintf("%t", p.IsDiskBusy(d)), fmt.Sprintf("%d", len(locs)))
	}
	return table.Render()
}
