package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"sort"

	"github.com/wesleyorama2/rampant/internal/campaign"
	"github.com/wesleyorama2/rampant/internal/metrics"
)

// HTMLReport contains all data needed to render the HTML report.
type HTMLReport struct {
	*campaign.Result
	Plans     []*PlanReport
	PlansJSON template.JS
}

// chartSeries is the cumulative number of started minions of one scenario.
type chartSeries struct {
	Scenario string       `json:"scenario"`
	Points   []chartPoint `json:"points"`
}

type chartPoint struct {
	X int64 `json:"x"`
	Y int   `json:"y"`
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDuration": formatDuration,
	"formatLatency":  formatDurationShort,
	"formatNumber":   formatNumber,
	"formatBytes":    formatBytes,
	"successRate":    successRate,
	"stepNames":      stepNames,
	"stepStats":      stepStats,
}).Parse(htmlTemplate))

// GenerateHTML renders the report of a campaign run and writes it to a file.
func GenerateHTML(result *campaign.Result, plans []*PlanReport, outputPath string) error {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, result, plans); err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}
	return nil
}

// RenderHTML writes the report of a campaign run, with the planned starting
// lines of each scenario as a chart.
func RenderHTML(w io.Writer, result *campaign.Result, plans []*PlanReport) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	series := make([]chartSeries, 0, len(plans))
	for _, plan := range plans {
		s := chartSeries{Scenario: plan.Scenario, Points: []chartPoint{{X: 0, Y: 0}}}
		for _, line := range plan.Lines {
			s.Points = append(s.Points, chartPoint{X: line.AtMs, Y: line.Cumulative})
		}
		series = append(series, s)
	}
	plansJSON, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to convert plans: %w", err)
	}

	return reportTemplate.Execute(w, HTMLReport{
		Result:    result,
		Plans:     plans,
		PlansJSON: template.JS(plansJSON),
	})
}

// successRate returns the percentage of successful steps.
func successRate(m *metrics.Snapshot) float64 {
	if m == nil || m.TotalSteps == 0 {
		return 0
	}
	return (1 - m.ErrorRate) * 100
}

func stepNames(m *metrics.Snapshot) []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Steps))
	for name := range m.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stepStats(m *metrics.Snapshot, name string) metrics.LatencyStats {
	return m.Steps[name]
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Campaign Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background: #f8fafc; color: #1e293b; margin: 0; }
        .container { max-width: 1200px; margin: 0 auto; padding: 2rem; }
        .card { background: #fff; border: 1px solid #e2e8f0; border-radius: 8px; padding: 1.5rem; margin-bottom: 1.5rem; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; }
        .metric .label { color: #64748b; font-size: 0.85rem; }
        .metric .value { font-size: 1.5rem; font-weight: 600; }
        .ok { color: #22c55e; } .warn { color: #f59e0b; } .error { color: #ef4444; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: right; padding: 0.5rem; border-bottom: 1px solid #e2e8f0; }
        th:first-child, td:first-child { text-align: left; }
    </style>
</head>
<body>
<div class="container">
    <h1>{{.Name}}</h1>
    <p>
        {{if .Stopped}}<span class="warn">Stopped</span>{{else}}<span class="ok">Completed</span>{{end}}
        in {{formatDuration .Duration}} at speed x{{.SpeedFactor}}
    </p>

    {{with .Metrics}}
    <div class="card grid">
        <div class="metric"><div class="label">Steps</div><div class="value">{{formatNumber .TotalSteps}}</div></div>
        <div class="metric"><div class="label">Success rate</div><div class="value">{{printf "%.1f" (successRate .)}}%</div></div>
        <div class="metric"><div class="label">Steps/s</div><div class="value">{{printf "%.1f" .StepsPerSecond}}</div></div>
        <div class="metric"><div class="label">Received</div><div class="value">{{formatBytes .TotalBytes}}</div></div>
        <div class="metric"><div class="label">P95 latency</div><div class="value">{{formatLatency .StepLatency.P95}}</div></div>
    </div>
    {{end}}

    <div class="card">
        <h2>Scenarios</h2>
        <table>
            <tr><th>Scenario</th><th>Profile</th><th>Minions</th><th>Lines</th><th>Started</th><th>Replayed</th><th>Completed</th><th>Failed</th><th>Interrupted</th></tr>
            {{range .Scenarios}}
            <tr>
                <td>{{.Name}}</td><td>{{.Profile}}</td><td>{{.Minions}}</td><td>{{.StartingLines}}</td>
                <td>{{formatNumber .Started}}</td><td>{{formatNumber .Replayed}}</td><td>{{formatNumber .Completed}}</td>
                <td{{if gt .Failed 0}} class="error"{{end}}>{{formatNumber .Failed}}</td>
                <td{{if gt .Interrupted 0}} class="warn"{{end}}>{{formatNumber .Interrupted}}</td>
            </tr>
            {{end}}
        </table>
    </div>

    {{if .Plans}}
    <div class="card">
        <h2>Starting lines</h2>
        <p>{{range .Plans}}{{.Scenario}}: {{len .Lines}} lines over {{formatDuration .LastLine}}{{if .Completion}}, {{.Completion}} completion{{end}}. {{end}}</p>
        <canvas id="startingLines" height="90"></canvas>
    </div>
    {{end}}

    {{with .Metrics}}{{if .Steps}}
    <div class="card">
        <h2>Steps</h2>
        <table>
            <tr><th>Step</th><th>Count</th><th>Min</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th></tr>
            {{$m := .}}
            {{range stepNames $m}}{{$s := stepStats $m .}}
            <tr>
                <td>{{.}}</td><td>{{formatNumber $s.Count}}</td><td>{{formatLatency $s.Min}}</td><td>{{formatLatency $s.P50}}</td>
                <td>{{formatLatency $s.P90}}</td><td>{{formatLatency $s.P95}}</td><td>{{formatLatency $s.P99}}</td><td>{{formatLatency $s.Max}}</td>
            </tr>
            {{end}}
        </table>
    </div>
    {{end}}{{end}}
</div>
<script>
    const plans = {{.PlansJSON}};
    const canvas = document.getElementById('startingLines');
    if (canvas && plans.length > 0) {
        new Chart(canvas, {
            type: 'line',
            data: {
                datasets: plans.map(p => ({ label: p.scenario, data: p.points, stepped: true, pointRadius: 0 }))
            },
            options: {
                parsing: { xAxisKey: 'x', yAxisKey: 'y' },
                scales: {
                    x: { type: 'linear', title: { display: true, text: 'ms since start' } },
                    y: { beginAtZero: true, title: { display: true, text: 'minions started' } }
                }
            }
        });
    }
</script>
</body>
</html>
`
