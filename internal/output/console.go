package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/rampant/internal/campaign"
	"github.com/wesleyorama2/rampant/internal/profile"
)

const ruleWidth = 56

// Console writes human-readable reports.
type Console struct {
	w       io.Writer
	colors  *ColorScheme
	noColor bool
}

// NewConsole creates a console writing to w, or stdout when w is nil.
// Colors are used only when w is a terminal and noColor is false.
func NewConsole(w io.Writer, noColor bool) *Console {
	if w == nil {
		w = os.Stdout
	}

	colors := NoColorScheme()
	useColors := UseColors(w, noColor)
	if useColors {
		colors = ForcedColorScheme()
	}
	return &Console{w: w, colors: colors, noColor: !useColors}
}

// PlanReport is the starting-line schedule of one scenario.
type PlanReport struct {
	Scenario    string                  `json:"scenario"`
	Profile     profile.Kind            `json:"profile"`
	Minions     int                     `json:"minions"`
	SpeedFactor float64                 `json:"speedFactor"`
	Lines       []profile.ScheduledLine `json:"lines"`

	// DurationMs is the offset of the last starting line since the start
	DurationMs int64 `json:"durationMs"`

	// DeadlineMs is the end of the latest stage, for stages profiles
	DeadlineMs int64 `json:"deadlineMs,omitempty"`

	// Completion is set for stages profiles
	Completion profile.CompletionMode `json:"completion,omitempty"`
}

// NewPlanReport drains the profile and locates its starting lines on the timeline.
func NewPlanReport(scenario string, p profile.ExecutionProfile, minions int, speedFactor float64) *PlanReport {
	lines := profile.Summarize(profile.Plan(p, minions, speedFactor))

	report := &PlanReport{
		Scenario:    scenario,
		Profile:     p.Kind(),
		Minions:     minions,
		SpeedFactor: speedFactor,
		Lines:       lines,
	}
	if len(lines) > 0 {
		report.DurationMs = lines[len(lines)-1].AtMs
	}
	if stages, ok := p.(*profile.Stages); ok {
		report.DeadlineMs = stages.TotalDuration(speedFactor).Milliseconds()
		report.Completion = stages.Completion()
	}
	return report
}

// LastLine returns the offset of the last starting line since the start.
func (p *PlanReport) LastLine() time.Duration {
	return time.Duration(p.DurationMs) * time.Millisecond
}

// PrintPlan prints the starting lines of a scenario as a table.
func (c *Console) PrintPlan(report *PlanReport) {
	c.writeln(c.colors.Title.Sprintf("%s (%s)", report.Scenario, report.Profile))
	c.writeln(fmt.Sprintf("%s %s   %s %s   %s %s",
		c.colors.Label.Sprint("Minions:"), c.colors.Value.Sprint(formatNumber(int64(report.Minions))),
		c.colors.Label.Sprint("Speed:"), c.colors.Value.Sprintf("x%g", report.SpeedFactor),
		c.colors.Label.Sprint("Lines:"), c.colors.Value.Sprint(len(report.Lines))))
	if report.Completion != "" {
		c.writeln(fmt.Sprintf("%s %s   %s %s",
			c.colors.Label.Sprint("Completion:"), c.colors.Value.Sprint(report.Completion),
			c.colors.Label.Sprint("Deadline:"), c.colors.Value.Sprint(formatDuration(time.Duration(report.DeadlineMs)*time.Millisecond))))
	}
	c.writeln("")

	if len(report.Lines) == 0 {
		c.writeln(c.colors.Dim.Sprint("  no minions to start"))
		c.writeln("")
		return
	}

	header := fmt.Sprintf("  %5s  %10s  %10s  %8s  %10s", "#", "offset", "at", "minions", "cumulative")
	c.writeln(c.colors.Label.Sprint(header))
	for _, line := range report.Lines {
		c.writeln(fmt.Sprintf("  %5d  %10s  %10s  %8s  %10s",
			line.Index+1,
			formatMs(line.OffsetMs),
			formatMs(line.AtMs),
			formatNumber(int64(line.Count)),
			formatNumber(int64(line.Cumulative))))
	}
	c.writeln("")
}

// PrintSummary prints the outcome of a campaign run.
func (c *Console) PrintSummary(result *campaign.Result) {
	line := strings.Repeat("━", ruleWidth)

	failed := false
	for _, sc := range result.Scenarios {
		if sc.Failed > 0 || sc.Interrupted > 0 {
			failed = true
		}
	}

	status := c.colors.Success.Sprint("Completed " + SuccessIcon(true))
	switch {
	case result.Stopped:
		status = c.colors.Warn.Sprint("Stopped " + WarningIcon(true))
	case failed:
		status = c.colors.Error.Sprint("Completed with errors " + ErrorIcon(true))
	}

	c.writeln("")
	c.writeln(c.colors.Value.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(result.Name), status))
	c.writeln(c.colors.Value.Sprint(line))
	c.writeln("")

	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(result.Duration))))
	c.writeln(fmt.Sprintf("Speed factor:  %s", c.colors.Value.Sprintf("x%g", result.SpeedFactor)))
	c.writeln("")

	c.writeln(c.colors.Title.Sprint("Scenarios:"))
	for _, sc := range result.Scenarios {
		c.writeln(fmt.Sprintf("  %s %s", c.colors.Highlight.Sprint(sc.Name), c.colors.Dim.Sprintf("(%s, %d minions, %d lines)", sc.Profile, sc.Minions, sc.StartingLines)))
		c.writeln(fmt.Sprintf("    started %s  replayed %s  completed %s  failed %s  interrupted %s",
			formatNumber(sc.Started),
			formatNumber(sc.Replayed),
			c.colors.Success.Sprint(formatNumber(sc.Completed)),
			c.countColor(sc.Failed).Sprint(formatNumber(sc.Failed)),
			c.countColor(sc.Interrupted).Sprint(formatNumber(sc.Interrupted))))
	}
	c.writeln("")

	m := result.Metrics
	if m == nil || m.TotalSteps == 0 {
		return
	}

	successRate := 1.0 - m.ErrorRate
	rateColor := c.colors.Success
	if successRate < 0.99 {
		rateColor = c.colors.Warn
	}
	if successRate < 0.95 {
		rateColor = c.colors.Error
	}

	c.writeln(fmt.Sprintf("Total steps:   %s (%.1f/s)", c.colors.Value.Sprint(formatNumber(m.TotalSteps)), m.StepsPerSecond))
	c.writeln(fmt.Sprintf("Success rate:  %s", rateColor.Sprintf("%.1f%%", successRate*100)))
	c.writeln("")

	c.writeln(c.colors.Title.Sprint("Step latency:"))
	c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(m.StepLatency.Min)))
	c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(m.StepLatency.P50)))
	c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(m.StepLatency.P90)))
	c.writeln(fmt.Sprintf("  P95:       %s", formatDurationShort(m.StepLatency.P95)))
	c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(m.StepLatency.P99)))
	c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(m.StepLatency.Max)))
	c.writeln("")

	if m.MinionExecution.Count > 0 {
		c.writeln(c.colors.Title.Sprint("Minion pass duration:"))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(m.MinionExecution.P50)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(m.MinionExecution.P99)))
		c.writeln("")
	}
}

// PrintErrors prints a list of problems under a title.
func (c *Console) PrintErrors(title string, problems []string) {
	c.writeln(fmt.Sprintf("%s %s", ErrorIcon(c.noColor), c.colors.Error.Sprint(title)))
	for _, p := range problems {
		c.writeln("  - " + p)
	}
}

// PrintSuccess prints a single success line.
func (c *Console) PrintSuccess(message string) {
	c.writeln(fmt.Sprintf("%s %s", SuccessIcon(c.noColor), message))
}

func (c *Console) countColor(n int64) *color.Color {
	if n > 0 {
		return c.colors.Error
	}
	return c.colors.Dim
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.w, s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
