// Package metrics aggregates the measurements of a campaign run.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine collects step latencies and minion execution durations using HDR histograms.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters use atomic operations and
// histograms are protected by mutexes, since RecordValue is not thread-safe.
type Engine struct {
	// Latency of every executed step, in microseconds
	stepHist   *hdrhistogram.Histogram
	stepHistMu sync.Mutex

	// Duration of every completed minion pass, in microseconds
	minionHist   *hdrhistogram.Histogram
	minionHistMu sync.Mutex

	// Per-step histograms
	namedHists   map[string]*hdrhistogram.Histogram
	namedHistsMu sync.RWMutex

	totalSteps   atomic.Int64
	failedSteps  atomic.Int64
	totalBytes   atomic.Int64
	started      atomic.Int64
	replayed     atomic.Int64
	completed    atomic.Int64
	failed       atomic.Int64
	interrupted  atomic.Int64
	activeMinion atomic.Int32

	startTime time.Time
	config    EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	return &Engine{
		stepHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		minionHist: hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		namedHists: make(map[string]*hdrhistogram.Histogram),
		startTime:  time.Now(),
		config:     config,
	}
}

func (e *Engine) clamp(d time.Duration) int64 {
	micros := d.Microseconds()
	if micros < e.config.HistogramMin {
		micros = e.config.HistogramMin
	}
	if micros > e.config.HistogramMax {
		micros = e.config.HistogramMax
	}
	return micros
}

// RecordStep records the latency of one scenario step.
//
// Parameters:
//   - duration: The step latency
//   - name: Optional step name for the per-step breakdown (empty string to skip)
//   - success: Whether the step succeeded
//   - bytes: Number of bytes received
func (e *Engine) RecordStep(duration time.Duration, name string, success bool, bytes int64) {
	micros := e.clamp(duration)

	e.stepHistMu.Lock()
	e.stepHist.RecordValue(micros)
	e.stepHistMu.Unlock()

	if name != "" {
		e.namedHistsMu.Lock()
		hist, exists := e.namedHists[name]
		if !exists {
			hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
			e.namedHists[name] = hist
		}
		hist.RecordValue(micros)
		e.namedHistsMu.Unlock()
	}

	e.totalSteps.Add(1)
	e.totalBytes.Add(bytes)
	if !success {
		e.failedSteps.Add(1)
	}
}

// MinionStarted counts a minion start. replay is true when the minion
// is restarted after a completed pass.
func (e *Engine) MinionStarted(replay bool) {
	if replay {
		e.replayed.Add(1)
	} else {
		e.started.Add(1)
	}
	e.activeMinion.Add(1)
}

// MinionFinished records the end of a minion pass.
func (e *Engine) MinionFinished(duration time.Duration, outcome Outcome) {
	e.activeMinion.Add(-1)

	switch outcome {
	case OutcomeCompleted:
		e.completed.Add(1)
		e.minionHistMu.Lock()
		e.minionHist.RecordValue(e.clamp(duration))
		e.minionHistMu.Unlock()
	case OutcomeFailed:
		e.failed.Add(1)
	case OutcomeInterrupted:
		e.interrupted.Add(1)
	}
}

// ActiveMinions returns the number of minions currently running a pass.
func (e *Engine) ActiveMinions() int {
	return int(e.activeMinion.Load())
}

// Snapshot returns a point-in-time view of all metrics.
func (e *Engine) Snapshot() *Snapshot {
	e.stepHistMu.Lock()
	steps := statsOf(e.stepHist)
	e.stepHistMu.Unlock()

	e.minionHistMu.Lock()
	minions := statsOf(e.minionHist)
	e.minionHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	total := e.totalSteps.Load()
	failed := e.failedSteps.Load()

	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(total) / elapsed.Seconds()
	}
	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return &Snapshot{
		TotalSteps:         total,
		FailedSteps:        failed,
		TotalBytes:         e.totalBytes.Load(),
		StepLatency:        steps,
		StepsPerSecond:     rate,
		ErrorRate:          errorRate,
		MinionsStarted:     e.started.Load(),
		MinionsReplayed:    e.replayed.Load(),
		MinionsCompleted:   e.completed.Load(),
		MinionsFailed:      e.failed.Load(),
		MinionsInterrupted: e.interrupted.Load(),
		MinionExecution:    minions,
		ActiveMinions:      e.ActiveMinions(),
		Elapsed:            elapsed,
		StartTime:          e.startTime,
		Timestamp:          time.Now(),
		Steps:              e.StepStats(),
	}
}

// StepStats returns per-step latency statistics.
func (e *Engine) StepStats() map[string]LatencyStats {
	e.namedHistsMu.RLock()
	defer e.namedHistsMu.RUnlock()

	result := make(map[string]LatencyStats, len(e.namedHists))
	for name, hist := range e.namedHists {
		result[name] = statsOf(hist)
	}
	return result
}

func statsOf(hist *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(hist.Min()) * time.Microsecond,
		Max:    time.Duration(hist.Max()) * time.Microsecond,
		Mean:   time.Duration(hist.Mean()) * time.Microsecond,
		StdDev: time.Duration(hist.StdDev()) * time.Microsecond,
		P50:    time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(hist.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond,
		Count:  hist.TotalCount(),
	}
}

// Outcome is the way a minion pass ended.
type Outcome int

const (
	// OutcomeCompleted is a pass that ran every step.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed is a pass that stopped on an error.
	OutcomeFailed
	// OutcomeInterrupted is a pass cancelled by the campaign.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	TotalSteps         int64         `json:"totalSteps"`
	FailedSteps        int64         `json:"failedSteps"`
	TotalBytes         int64         `json:"totalBytes"`
	StepLatency        LatencyStats  `json:"stepLatency"`
	StepsPerSecond     float64       `json:"stepsPerSecond"`
	ErrorRate          float64       `json:"errorRate"`
	MinionsStarted     int64         `json:"minionsStarted"`
	MinionsReplayed    int64         `json:"minionsReplayed"`
	MinionsCompleted   int64         `json:"minionsCompleted"`
	MinionsFailed      int64         `json:"minionsFailed"`
	MinionsInterrupted int64         `json:"minionsInterrupted"`
	MinionExecution    LatencyStats  `json:"minionExecution"`
	ActiveMinions      int           `json:"activeMinions"`
	Elapsed            time.Duration `json:"elapsed"`
	StartTime          time.Time     `json:"startTime"`
	Timestamp          time.Time     `json:"timestamp"`

	// Steps is the latency breakdown per step name
	Steps map[string]LatencyStats `json:"steps,omitempty"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}
