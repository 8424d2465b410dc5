// Package doctor provides health checks for tether persistence setup.
//
// The doctor command validates that the mapping document and the database
// agree: the document parses, compiles into a registry, and every mapped
// table and identifier column exists.
//
// Example usage:
//
//	d := doctor.New(db, "tether.mapping.yaml")
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tetherhq/tether/mapping"
	"github.com/tetherhq/tether/store"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Mapping File", "Tables").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Doctor performs health checks on a tether mapping and its database.
type Doctor struct {
	db          *sql.DB
	mappingPath string

	// Cached data from checks (populated during Run)
	doc *mapping.Document
}

// New creates a new Doctor instance. A nil db skips the database checks
// with a warning instead of failing.
func New(db *sql.DB, mappingPath string) *Doctor {
	return &Doctor{
		db:          db,
		mappingPath: mappingPath,
	}
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	d.checkMappingFile(report)
	d.checkRegistry(report)
	if err := d.checkTables(ctx, report); err != nil {
		return nil, fmt.Errorf("checking tables: %w", err)
	}

	return report, nil
}

// checkMappingFile validates the mapping file exists and parses.
func (d *Doctor) checkMappingFile(report *Report) {
	data, err := os.ReadFile(d.mappingPath)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Mapping File",
			Name:     "exists",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Mapping file not found at %s", d.mappingPath),
			FixHint:  "Create a mapping file or point --mapping at the right path",
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Mapping File",
		Name:     "exists",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Mapping file exists at %s", d.mappingPath),
	})

	doc, err := mapping.Parse(data)
	if err != nil {
		check := CheckResult{
			Category: "Mapping File",
			Name:     "valid",
			Status:   StatusFail,
			Message:  "Mapping document is invalid",
			Details:  err.Error(),
			FixHint:  "Run 'tether validate' to see the full error",
		}
		if mapping.IsCompositeCycleErr(err) {
			check.Message = "Mapping document contains a composite cycle"
			check.FixHint = "Break the cycle between the named composites"
		}
		report.AddCheck(check)
		return
	}

	d.doc = doc

	propertyCount := 0
	for _, e := range doc.Entities {
		propertyCount += len(e.Properties)
	}
	report.AddCheck(CheckResult{
		Category: "Mapping File",
		Name:     "valid",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Mapping is valid (%d entities, %d properties)", len(doc.Entities), propertyCount),
	})
}

// checkRegistry validates the document compiles into a registry.
func (d *Doctor) checkRegistry(report *Report) {
	if d.doc == nil {
		return // already reported in the mapping check
	}

	reg, err := mapping.Build(d.doc)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Registry",
			Name:     "build",
			Status:   StatusFail,
			Message:  "Mapping does not compile into a registry",
			Details:  err.Error(),
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Registry",
		Name:     "build",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Registry compiles (%d descriptors)", len(reg.Names())),
	})
}

// checkTables validates every mapped table and identifier column exists.
// The probe is a no-match existence query, so it touches no data.
func (d *Doctor) checkTables(ctx context.Context, report *Report) error {
	if d.doc == nil {
		return nil
	}
	if d.db == nil {
		report.AddCheck(CheckResult{
			Category: "Tables",
			Name:     "connection",
			Status:   StatusWarn,
			Message:  "No database configured, skipping table checks",
			FixHint:  "Set --database-url or TETHER_DATABASE_URL",
		})
		return nil
	}

	src := store.NewSnapshotSource(d.db)
	missing := 0
	for _, e := range d.doc.Entities {
		// A NULL identifier never matches, so the probe only exercises
		// the table and column references.
		_, err := src.Exists(ctx, e.Table, e.IDColumn, nil)
		switch {
		case err == nil:
			report.AddCheck(CheckResult{
				Category: "Tables",
				Name:     e.Name,
				Status:   StatusPass,
				Message:  fmt.Sprintf("%s: table %q with column %q", e.Name, e.Table, e.IDColumn),
			})
		case store.IsMissingTableErr(err):
			missing++
			report.AddCheck(CheckResult{
				Category: "Tables",
				Name:     e.Name,
				Status:   StatusFail,
				Message:  fmt.Sprintf("%s: table %q does not exist", e.Name, e.Table),
				Details:  err.Error(),
				FixHint:  "Create the table or fix the mapping's table name",
			})
		case store.IsMissingColumnErr(err):
			missing++
			report.AddCheck(CheckResult{
				Category: "Tables",
				Name:     e.Name,
				Status:   StatusFail,
				Message:  fmt.Sprintf("%s: table %q has no column %q", e.Name, e.Table, e.IDColumn),
				Details:  err.Error(),
				FixHint:  "Fix the mapping's id_column",
			})
		default:
			return err
		}
	}

	if missing == 0 {
		report.AddCheck(CheckResult{
			Category: "Tables",
			Name:     "summary",
			Status:   StatusPass,
			Message:  "Database agrees with the mapping",
		})
	}
	return nil
}
