package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/migration"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/messaging"
	"github.com/olekukonko/tablewriter"
)

// Severity grades a finding. Only violations fail an audit.
type Severity string

const (
	SeverityOK        Severity = "ok"
	SeverityWarn      Severity = "warn"
	SeverityViolation Severity = "violation"
)

// Exit codes shared by every tenantctl command.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitViolation = 2
)

// Finding is the audit result for one tenant-owned table.
type Finding struct {
	Table    string            `json:"table"`
	Stage    migration.Stage   `json:"stage,omitempty"`
	Recorded migration.Stage   `json:"recorded_stage,omitempty"`
	Severity Severity          `json:"severity"`
	Counts   *migration.Counts `json:"counts,omitempty"`
	Message  string            `json:"message"`
}

// Report is the outcome of one run.
type Report struct {
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration_ns"`
	Findings  []Finding            `json:"findings"`
	Landmines []migration.Landmine `json:"landmines,omitempty"`
}

// HasViolations reports whether any table breaks the clinic_id invariant.
func (r *Report) HasViolations() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityViolation {
			return true
		}
	}
	return false
}

// ExitCode is ExitViolation when the report has violations, else ExitOK.
func (r *Report) ExitCode() int {
	if r.HasViolations() {
		return ExitViolation
	}
	return ExitOK
}

// Summary counts findings by severity. Landmines count as warnings.
func (r *Report) Summary() messaging.AuditCompletedEvent {
	s := messaging.AuditCompletedEvent{Tables: len(r.Findings)}
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityOK:
			s.OK++
		case SeverityWarn:
			s.Warnings++
		case SeverityViolation:
			s.Violations++
		}
	}
	for _, m := range r.Landmines {
		s.Warnings++
		s.Landmines = append(s.Landmines, m.Table)
	}
	return s
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteTable renders the report for terminals.
func (r *Report) WriteTable(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Stage", "Recorded", "Rows", "Null", "Orphaned", "Severity", "Message"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, f := range r.Findings {
		rows, nulls, orphans := "-", "-", "-"
		if f.Counts != nil {
			rows = fmt.Sprint(f.Counts.Total)
			nulls = fmt.Sprint(f.Counts.Nulls())
			orphans = fmt.Sprint(f.Counts.Orphans())
		}
		table.Append([]string{
			f.Table, dash(string(f.Stage)), dash(string(f.Recorded)),
			rows, nulls, orphans, strings.ToUpper(string(f.Severity)), f.Message,
		})
	}
	table.Render()

	if len(r.Landmines) > 0 {
		if _, err := fmt.Fprintln(w, "\nLandmines:"); err != nil {
			return err
		}
		if err := WriteLandmines(w, r.Landmines); err != nil {
			return err
		}
	}

	s := r.Summary()
	_, err := fmt.Fprintf(w, "\n%d tables: %d ok, %d warnings, %d violations\n", s.Tables, s.OK, s.Warnings, s.Violations)
	return err
}

// WriteLandmines renders discovered landmines.
func WriteLandmines(w io.Writer, mines []migration.Landmine) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Path", "Reason"})
	table.SetAutoWrapText(false)
	for _, m := range mines {
		table.Append([]string{m.Table, strings.Join(m.Path, " -> "), m.Reason})
	}
	table.Render()
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
