// Package profile computes when and how many minions a campaign starts.
//
// An ExecutionProfile is a policy configured once per scenario. For every
// concrete run it produces an Iterator of StartingLines, each telling the
// orchestrator how many minions to launch and how long to wait since the
// previous line. Stage-based profiles additionally decide whether a minion
// that completed a scenario pass may be replayed before the campaign deadline.
package profile

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Kind identifies the variant of an execution profile.
type Kind string

const (
	// KindImmediate starts every minion at once.
	KindImmediate Kind = "immediate"

	// KindRegular starts a constant number of minions at a constant period.
	KindRegular Kind = "regular"

	// KindAccelerating shortens (or lengthens) the period after each launch.
	KindAccelerating Kind = "accelerating"

	// KindProgressiveVolume grows the number of minions per launch.
	KindProgressiveVolume Kind = "progressive-volume"

	// KindStages starts percentages of the minions in consecutive stages.
	KindStages Kind = "stages"

	// KindTimeFrame spreads all the minions evenly over a time frame.
	KindTimeFrame Kind = "time-frame"

	// KindUserDefined delegates every starting line to a callback.
	KindUserDefined Kind = "user-defined"
)

// StartingLine is a batch of minions to start after a delay.
type StartingLine struct {
	// Count is the number of minions to start.
	Count int `json:"count" yaml:"count"`

	// OffsetMs is the delay in milliseconds since the previous line,
	// or since the campaign start for the first line.
	OffsetMs int64 `json:"offsetMs" yaml:"offsetMs"`
}

// Offset returns the line offset as a duration.
func (l StartingLine) Offset() time.Duration {
	return time.Duration(l.OffsetMs) * time.Millisecond
}

func (l StartingLine) String() string {
	return fmt.Sprintf("%d minion(s) after %dms", l.Count, l.OffsetMs)
}

// Iterator is a single-use cursor over the starting lines of one run.
//
// Iterators are not safe for concurrent use; each one is driven by
// a single scheduling goroutine.
type Iterator interface {
	// HasNext reports whether more minions remain to be started.
	HasNext() bool

	// Next returns the next starting line. It must only be called
	// after HasNext returned true.
	Next() StartingLine
}

// ExecutionProfile is the policy deciding the starts of a scenario's minions.
//
// The set of implementations is closed: Immediate, Regular, Accelerating,
// ProgressiveVolume, Stages, TimeFrame and UserDefined. Custom behaviour is
// plugged in through the RampUp callback of a UserDefined profile.
type ExecutionProfile interface {
	// Kind returns the variant of the profile.
	Kind() Kind

	// NotifyStart tells the profile that the campaign is running.
	// Only the first call has an effect.
	NotifyStart(speedFactor float64)

	// Iterator creates a new independent sequence of starting lines for
	// totalMinionsCount minions. It panics when totalMinionsCount is
	// negative or speedFactor is not strictly positive.
	Iterator(totalMinionsCount int, speedFactor float64) Iterator

	// CanReplay reports whether a minion that just completed a scenario
	// pass in minionExecutionDuration may be started again.
	CanReplay(minionExecutionDuration time.Duration) bool

	sealed()
}

// Option customizes the ambient collaborators of a profile.
type Option func(*options)

type options struct {
	logger *zap.Logger
	clock  clock.PassiveClock
}

// WithLogger sets the logger used to trace the computed starting lines.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used to compute and check campaign deadlines.
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// base carries the defaults shared by the variants that never replay.
type base struct{}

func (base) NotifyStart(float64) {}

func (base) CanReplay(time.Duration) bool { return false }

func (base) sealed() {}

// checkIteratorArgs panics on arguments no caller should ever pass.
func checkIteratorArgs(totalMinionsCount int, speedFactor float64) {
	if totalMinionsCount < 0 {
		panic(fmt.Sprintf("profile: negative total minions count %d", totalMinionsCount))
	}
	if !(speedFactor > 0) {
		panic(fmt.Sprintf("profile: speed factor must be strictly positive, got %v", speedFactor))
	}
}

// scaledMs divides a configured duration in milliseconds by the speed factor,
// truncating to whole milliseconds.
func scaledMs(ms int64, speedFactor float64) int64 {
	if ms <= 0 {
		return 0
	}
	return int64(float64(ms) / speedFactor)
}

// Plan drains a fresh iterator of p and returns every starting line.
func Plan(p ExecutionProfile, totalMinionsCount int, speedFactor float64) []StartingLine {
	it := p.Iterator(totalMinionsCount, speedFactor)
	lines := make([]StartingLine, 0)
	for it.HasNext() {
		lines = append(lines, it.Next())
	}
	return lines
}

// ScheduledLine is a starting line located on the campaign timeline.
type ScheduledLine struct {
	StartingLine

	// Index is the position of the line in the sequence.
	Index int `json:"index"`

	// AtMs is the offset of the line since the campaign start.
	AtMs int64 `json:"atMs"`

	// Cumulative is the number of minions started up to and including this line.
	Cumulative int `json:"cumulative"`
}

// Summarize converts relative starting lines into absolute ones.
func Summarize(lines []StartingLine) []ScheduledLine {
	result := make([]ScheduledLine, len(lines))

	var at int64
	cumulative := 0
	for i, line := range lines {
		at += line.OffsetMs
		cumulative += line.Count
		result[i] = ScheduledLine{
			StartingLine: line,
			Index:        i,
			AtMs:         at,
			Cumulative:   cumulative,
		}
	}
	return result
}
