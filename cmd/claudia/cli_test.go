package main

import (
	"reflect"
	"testing"
	"time"

	"claudia/internal/errs"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"backend", []string{"backend"}},
		{"Backend, AUTH ,db", []string{"backend", "auth", "db"}},
		{" , ,", nil},
	}
	for _, tt := range tests {
		if got := parseLabels(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseLabels(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseList(t *testing.T) {
	got := parseList("task-001, task-002 ,")
	want := []string{"task-001", "task-002"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseList = %v, want %v", got, want)
	}
}

func TestParseCutoffDays(t *testing.T) {
	cutoff, days, err := parseCutoff("30")
	if err != nil {
		t.Fatalf("parseCutoff(30): %v", err)
	}
	if days != 30 {
		t.Errorf("days = %d, want 30", days)
	}
	want := time.Now().UTC().AddDate(0, 0, -30)
	if diff := want.Sub(cutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff %v not near %v", cutoff, want)
	}
}

func TestParseCutoffNaturalLanguage(t *testing.T) {
	cutoff, days, err := parseCutoff("two weeks ago")
	if err != nil {
		t.Fatalf("parseCutoff: %v", err)
	}
	if days < 13 || days > 15 {
		t.Errorf("days = %d, want about 14", days)
	}
	if !cutoff.Before(time.Now().UTC()) {
		t.Errorf("cutoff %v should be in the past", cutoff)
	}
}

func TestParseCutoffRejectsGarbage(t *testing.T) {
	if _, _, err := parseCutoff("not a time at all zzz"); err == nil {
		t.Fatal("expected error for unparseable cutoff")
	}
	if _, _, err := parseCutoff("-5"); err == nil {
		t.Fatal("expected error for negative days")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.NotFoundf("x"), 2},
		{errs.InvalidArgumentf("x"), 3},
		{errs.Conflictf("x"), 4},
		{errs.LockTimeoutf("x"), 5},
		{errs.Unavailablef("x"), 5},
		{errs.Internalf("x"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
