package migration

import (
	"strings"
	"testing"
)

func TestReport_WriteSummary(t *testing.T) {
	r := NewReport()
	r.Add(Record{StackName: "web", Outcome: OutcomeDone})
	r.Add(Record{StackName: "db", Outcome: OutcomeSkipped, Reason: "already on target cluster"})
	r.Add(Record{StackName: "cache", Outcome: OutcomeFailed, Reason: "stop failed: boom"})

	var buf strings.Builder
	r.WriteSummary(&buf)
	out := buf.String()

	for _, want := range []string{"web", "db", "cache", "1 migrated, 1 failed, 1 skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "manual intervention") {
		t.Errorf("no stranded stacks, summary should not mention manual intervention:\n%s", out)
	}
}

func TestReport_NamesStrandedStacks(t *testing.T) {
	r := NewReport()
	r.Add(Record{
		StackName:         "web",
		Outcome:           OutcomeFailed,
		Reason:            "start failed: HTTP 500",
		StoppedNotStarted: true,
	})

	var buf strings.Builder
	r.WriteSummary(&buf)
	out := buf.String()

	if !strings.Contains(out, "NOT restarted") {
		t.Errorf("summary must call out stopped-but-not-restarted stacks:\n%s", out)
	}
	if !strings.Contains(out, "web: start failed: HTTP 500") {
		t.Errorf("stranded stack must be named with its reason:\n%s", out)
	}
}

func TestReport_HasFailures(t *testing.T) {
	r := NewReport()
	r.Add(Record{StackName: "web", Outcome: OutcomeDone})
	if r.HasFailures() {
		t.Error("HasFailures = true for all-done report")
	}
	r.Add(Record{StackName: "db", Outcome: OutcomeFailed, Reason: "stop failed"})
	if !r.HasFailures() {
		t.Error("HasFailures = false after a failed record")
	}
}
