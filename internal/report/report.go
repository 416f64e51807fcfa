// Package report renders pipeline and quality results as terminal tables.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"ecomdw/internal/etl"
)

// Renderer formats run results for terminal output.
type Renderer struct {
	useColor bool
}

// NewRenderer creates a renderer. With useColor false all output is
// plain text.
func NewRenderer(useColor bool) *Renderer {
	return &Renderer{useColor: useColor}
}

// RenderFindings renders the quality check battery as a table.
func (r *Renderer) RenderFindings(findings []etl.Finding) string {
	var buf strings.Builder

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Check", "Status", "Violations", "Description"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, f := range findings {
		status := "PASS"
		if !f.Passed {
			status = "FAIL"
		}
		if r.useColor {
			if f.Passed {
				status = color.GreenString(status)
			} else {
				status = color.RedString(status)
			}
		}

		table.Append([]string{
			f.Name,
			status,
			fmt.Sprintf("%d", f.Violations),
			f.Description,
		})
	}

	table.Render()

	failed := etl.FailedCount(findings)
	if failed == 0 {
		buf.WriteString(fmt.Sprintf("\nAll %d quality checks passed\n", len(findings)))
	} else {
		line := fmt.Sprintf("\n%d of %d quality checks failed\n", failed, len(findings))
		if r.useColor {
			line = color.RedString(line)
		}
		buf.WriteString(line)
	}

	return buf.String()
}

// RenderStages renders per-stage load statistics for a run.
func (r *Renderer) RenderStages(report *etl.RunReport) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("Run %s\n\n", report.RunID))

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Stage", "Inserted", "Updated", "Skipped", "Unresolved", "Duration"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, s := range report.Stages {
		unresolved := fmt.Sprintf("%d", s.Stats.Unresolved)
		if r.useColor && s.Stats.Unresolved > 0 {
			unresolved = color.YellowString(unresolved)
		}
		table.Append([]string{
			s.Stage,
			fmt.Sprintf("%d", s.Stats.Inserted),
			fmt.Sprintf("%d", s.Stats.Updated),
			fmt.Sprintf("%d", s.Stats.Skipped),
			unresolved,
			s.Duration.Round(time.Millisecond).String(),
		})
	}

	table.Render()
	return buf.String()
}
