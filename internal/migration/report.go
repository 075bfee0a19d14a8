package migration

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Outcome classifies how a stack fared in a run.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Record is one stack's result. StoppedNotStarted flags the partial-migration
// case: the stack was stopped but never restarted and needs manual attention.
type Record struct {
	StackName         string
	Outcome           Outcome
	Reason            string
	StoppedNotStarted bool
}

// Report collects per-stack records over a run. Appends are safe from
// concurrent workers; the report is read only after the run completes.
type Report struct {
	RunID string

	mu      sync.Mutex
	records []Record
}

// NewReport creates an empty report with a fresh run ID.
func NewReport() *Report {
	return &Report{RunID: uuid.New().String()}
}

// Add appends a record.
func (r *Report) Add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Records returns a copy of all records in insertion order.
func (r *Report) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// HasFailures reports whether any stack failed.
func (r *Report) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// WriteSummary prints the human-readable run summary. Stacks left stopped but
// not restarted get their own section so an operator can intervene; that list
// must never be silent.
func (r *Report) WriteSummary(w io.Writer) {
	records := r.Records()

	fmt.Fprintf(w, "Migration run %s\n", r.RunID)
	fmt.Fprintln(w)

	var done, failed, skipped int
	var stranded []Record
	for _, rec := range records {
		switch rec.Outcome {
		case OutcomeDone:
			done++
			fmt.Fprintf(w, "  %-30s migrated\n", rec.StackName)
		case OutcomeSkipped:
			skipped++
			fmt.Fprintf(w, "  %-30s skipped (%s)\n", rec.StackName, rec.Reason)
		case OutcomeFailed:
			failed++
			fmt.Fprintf(w, "  %-30s FAILED: %s\n", rec.StackName, rec.Reason)
		}
		if rec.StoppedNotStarted {
			stranded = append(stranded, rec)
		}
	}

	if len(stranded) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Stopped but NOT restarted — manual intervention required:")
		for _, rec := range stranded {
			fmt.Fprintf(w, "  %s: %s\n", rec.StackName, rec.Reason)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d migrated, %d failed, %d skipped\n", done, failed, skipped)
}
