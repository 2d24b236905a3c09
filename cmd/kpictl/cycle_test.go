package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"kpieval/internal/domain/evaluation"
)

func TestParseBound(t *testing.T) {
	if b, err := parseBound("start", "", false); err != nil || b != nil {
		t.Fatalf("expected open bound, got %v %v", b, err)
	}
	b, err := parseBound("start", "2026-06-01", false)
	if err != nil || b.Month() != time.June {
		t.Fatalf("unexpected bound %v %v", b, err)
	}
	if _, err := parseBound("end", "June", true); err == nil || !strings.Contains(err.Error(), "--end") {
		t.Fatalf("expected flag error, got %v", err)
	}
}

func TestDateOnlyEndCoversWholeDay(t *testing.T) {
	start, err := parseBound("start", "2026-06-01", false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	end, err := parseBound("end", "2026-06-30", true)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	act := evaluation.CycleActivity{Enabled: true, StartAt: start, EndAt: end}
	if !evaluation.IsOpen(act, time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)) {
		t.Fatal("gate should be open at noon on the end date")
	}
	if evaluation.IsOpen(act, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("gate should close once the end date is over")
	}

	exact, err := parseBound("end", "2026-06-30T09:00:00Z", true)
	if err != nil || exact.Hour() != 9 {
		t.Fatalf("timestamp end should be kept as given, got %v %v", exact, err)
	}
}

func TestPrintCycleText(t *testing.T) {
	closed := time.Date(2026, 12, 31, 17, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := printCycle(&buf, evaluation.CycleView{
		Cycle: evaluation.Cycle{Name: "FY2026", Year: 2026, Round: 1, ClosedAt: &closed},
		Gates: evaluation.Gates{Summary: true},
	})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "closed 2026-12-31T17:00:00Z") || !strings.Contains(out, "SUMMARY  open") || !strings.Contains(out, "DEFINE   closed") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
