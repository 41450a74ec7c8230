package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/rampant/internal/campaign"
	"github.com/wesleyorama2/rampant/internal/metrics"
	"github.com/wesleyorama2/rampant/internal/profile"
)

func TestNewPlanReport(t *testing.T) {
	regular, err := profile.NewRegular(1000, 3)
	if err != nil {
		t.Fatalf("NewRegular() error = %v", err)
	}

	report := NewPlanReport("browse", regular, 10, 2.0)

	if report.Profile != profile.KindRegular {
		t.Errorf("Profile = %q, want regular", report.Profile)
	}
	if len(report.Lines) != 4 {
		t.Fatalf("len(Lines) = %d, want 4", len(report.Lines))
	}
	if report.DurationMs != 2000 {
		t.Errorf("DurationMs = %d, want 2000 (4 lines of 500ms)", report.DurationMs)
	}
	if last := report.Lines[3]; last.Cumulative != 10 || last.Count != 1 {
		t.Errorf("last line = %+v, want 1 minion reaching 10", last)
	}
	if report.Completion != "" || report.DeadlineMs != 0 {
		t.Errorf("non-stage profile should have no completion, got %q/%d", report.Completion, report.DeadlineMs)
	}
}

func TestNewPlanReport_Stages(t *testing.T) {
	stages, err := profile.NewStages(profile.Hard, []profile.Stage{
		profile.NewStage(50, time.Second, 3*time.Second),
		profile.NewStage(50, time.Second, 2*time.Second),
	})
	if err != nil {
		t.Fatalf("NewStages() error = %v", err)
	}

	report := NewPlanReport("checkout", stages, 20, 1.0)

	if report.Completion != profile.Hard {
		t.Errorf("Completion = %q, want hard", report.Completion)
	}
	if report.DeadlineMs != 5000 {
		t.Errorf("DeadlineMs = %d, want 5000", report.DeadlineMs)
	}
	if last := report.Lines[len(report.Lines)-1]; last.Cumulative != 20 {
		t.Errorf("Cumulative = %d, want 20", last.Cumulative)
	}
}

func TestConsole_PrintPlan(t *testing.T) {
	regular, _ := profile.NewRegular(1500, 500)
	var buf bytes.Buffer
	console := NewConsole(&buf, true)

	console.PrintPlan(NewPlanReport("browse", regular, 1200, 1.0))

	out := buf.String()
	for _, want := range []string{
		"browse (regular)",
		"Minions: 1,200",
		"Lines: 3",
		"cumulative",
		"1.50s",
		"4.50s",
		"1,200",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintPlan() output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("PrintPlan() should not emit ANSI codes with colors disabled")
	}
}

func TestConsole_PrintPlan_NoMinions(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, true).PrintPlan(NewPlanReport("idle", profile.NewImmediate(), 0, 1.0))

	if !strings.Contains(buf.String(), "no minions to start") {
		t.Errorf("PrintPlan() = %q, want empty plan notice", buf.String())
	}
}

func TestConsole_PrintSummary(t *testing.T) {
	engine := metrics.NewEngine()
	engine.RecordStep(20*time.Millisecond, "home", true, 100)
	engine.RecordStep(40*time.Millisecond, "home", false, 100)

	result := &campaign.Result{
		Name:        "checkout",
		SpeedFactor: 2,
		Duration:    90 * time.Second,
		Scenarios: []campaign.ScenarioResult{
			{Name: "browse", Profile: profile.KindStages, Minions: 10, StartingLines: 4, Started: 10, Replayed: 5, Completed: 14, Failed: 1},
		},
		Metrics: engine.Snapshot(),
	}

	var buf bytes.Buffer
	NewConsole(&buf, true).PrintSummary(result)

	out := buf.String()
	for _, want := range []string{
		"checkout - Completed with errors",
		"1m 30s",
		"x2",
		"browse (stages, 10 minions, 4 lines)",
		"replayed 5",
		"failed 1",
		"Success rate:  50.0%",
		"Step latency:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintSummary() output missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_PrintSummary_Stopped(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, true).PrintSummary(&campaign.Result{Name: "long", Stopped: true})

	if !strings.Contains(buf.String(), "long - Stopped") {
		t.Errorf("PrintSummary() = %q, want stopped status", buf.String())
	}
	if strings.Contains(buf.String(), "Step latency") {
		t.Error("PrintSummary() should skip latency without steps")
	}
}

func TestConsole_PrintErrors(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf, true)

	console.PrintErrors("Configuration is invalid", []string{"first", "second"})
	console.PrintSuccess("done")

	want := "✗ Configuration is invalid\n  - first\n  - second\n✓ done\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestWriteJSON(t *testing.T) {
	regular, _ := profile.NewRegular(100, 2)
	var buf bytes.Buffer

	if err := WriteJSON(&buf, NewPlanReport("api", regular, 3, 1.0)); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var decoded struct {
		Scenario string `json:"scenario"`
		Lines    []struct {
			Count      int   `json:"count"`
			AtMs       int64 `json:"atMs"`
			Cumulative int   `json:"cumulative"`
		} `json:"lines"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Scenario != "api" || len(decoded.Lines) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.Lines[1].AtMs != 200 || decoded.Lines[1].Cumulative != 3 {
		t.Errorf("Lines[1] = %+v, want at 200ms reaching 3", decoded.Lines[1])
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{formatDuration(500 * time.Millisecond), "500ms"},
		{formatDuration(2500 * time.Millisecond), "2.5s"},
		{formatDuration(61 * time.Second), "1m 01s"},
		{formatDuration(3723 * time.Second), "1h 02m 03s"},
		{formatDurationShort(0), "0ms"},
		{formatDurationShort(250 * time.Microsecond), "250µs"},
		{formatDurationShort(1500 * time.Millisecond), "1.50s"},
		{formatMs(0), "0ms"},
		{formatMs(999), "999ms"},
		{formatMs(2000), "2.00s"},
		{formatNumber(999), "999"},
		{formatNumber(1234567), "1,234,567"},
		{formatNumber(-1500), "-1,500"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
