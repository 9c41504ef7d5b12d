package cmd

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

func TestScheduleLifecycle(t *testing.T) {
	dir := t.TempDir()

	out := mustRunCLI(t, dir, "schedule", "add", "--name", "nightly-site", "--tool", "phishing",
		"--target", "https://example.com", "--every", "1h")
	if !strings.Contains(out, "created, first run") {
		t.Fatalf("unexpected add output: %q", out)
	}

	var views []scheduleView
	if err := json.Unmarshal([]byte(mustRunCLI(t, dir, "--format", "json", "schedule", "list")), &views); err != nil {
		t.Fatalf("schedule list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("schedules = %d, want 1", len(views))
	}
	s := views[0]
	if s.Name != "nightly-site" || s.Tool != assessment.ToolPhishing || s.Interval != "1h0m0s" || !s.Enabled {
		t.Fatalf("unexpected schedule: %+v", s)
	}

	mustRunCLI(t, dir, "schedule", "disable", s.ID)
	if err := json.Unmarshal([]byte(mustRunCLI(t, dir, "--format", "json", "schedule", "list")), &views); err != nil {
		t.Fatal(err)
	}
	if views[0].Enabled {
		t.Fatal("schedule still enabled after disable")
	}
	mustRunCLI(t, dir, "schedule", "enable", s.ID)

	out = mustRunCLI(t, dir, "schedule", "run", s.ID)
	if !strings.Contains(out, "nightly-site") {
		t.Fatalf("run output does not mention the schedule:\n%s", out)
	}
	var entries []historyEntryView
	if err := json.Unmarshal([]byte(mustRunCLI(t, dir, "--format", "json", "history", "list", "--schedule", s.ID)), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ScheduleID != s.ID {
		t.Fatalf("schedule run was not recorded: %+v", entries)
	}

	mustRunCLI(t, dir, "schedule", "remove", s.ID, "--yes")
	if _, _, err := runCLI(t, dir, "", "schedule", "run", s.ID); !errors.Is(err, sharedErrors.ErrScheduleNotFound) {
		t.Fatalf("error = %v, want ErrScheduleNotFound", err)
	}
}

func TestScheduleAddValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"password is not schedulable", []string{"--name", "x", "--tool", "password", "--target", "x"}, sharedErrors.ErrUnsupportedTool},
		{"interval too short", []string{"--name", "x", "--tool", "phishing", "--target", "https://a.example", "--every", "10s"}, sharedErrors.ErrInvalidInterval},
		{"missing target", []string{"--name", "x", "--tool", "phishing"}, sharedErrors.ErrEmptyTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"schedule", "add"}, tt.args...)
			if _, _, err := runCLI(t, dir, "", args...); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScheduleRunNeedsOneSelector(t *testing.T) {
	dir := t.TempDir()
	for _, args := range [][]string{
		{"schedule", "run"},
		{"schedule", "run", "abc", "--due"},
	} {
		_, _, err := runCLI(t, dir, "", args...)
		var inputErr *InputError
		if !errors.As(err, &inputErr) {
			t.Fatalf("%v: error = %v, want an InputError", args, err)
		}
	}
}
