package profile

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// DefaultResolutionMs is the minimal spacing between two starting lines of a stage.
const DefaultResolutionMs int64 = 500

// percentageTolerance absorbs the float error of summing decimal percentages.
const percentageTolerance = 1e-9

// CompletionMode governs how close to the campaign deadline minions may be replayed.
type CompletionMode string

const (
	// Graceful replays minions as long as the deadline is not reached,
	// letting them finish their pass after it.
	Graceful CompletionMode = "graceful"

	// Hard replays a minion only when its previous pass would fit before the
	// deadline. Minions still running at the deadline are interrupted.
	Hard CompletionMode = "hard"
)

// Valid reports whether m is a known completion mode.
func (m CompletionMode) Valid() bool {
	return m == Graceful || m == Hard
}

// Stage is one ramp-up segment of a Stages profile.
type Stage struct {
	// MinionsPercentage is the share of the total minions started in the stage.
	MinionsPercentage float64 `json:"minionsPercentage"`

	// RampUpDurationMs is the window in which the stage minions are started.
	RampUpDurationMs int64 `json:"rampUpDurationMs"`

	// TotalDurationMs is the ramp-up plus the plateau of the stage.
	TotalDurationMs int64 `json:"totalDurationMs"`

	// ResolutionMs is the minimal spacing between two starting lines.
	ResolutionMs int64 `json:"resolutionMs"`
}

// NewStage creates a stage with the default resolution.
func NewStage(minionsPercentage float64, rampUp, total time.Duration) Stage {
	return StageWithResolution(minionsPercentage, rampUp, total, time.Duration(DefaultResolutionMs)*time.Millisecond)
}

// StageWithResolution creates a stage with an explicit resolution.
func StageWithResolution(minionsPercentage float64, rampUp, total, resolution time.Duration) Stage {
	return Stage{
		MinionsPercentage: minionsPercentage,
		RampUpDurationMs:  rampUp.Milliseconds(),
		TotalDurationMs:   total.Milliseconds(),
		ResolutionMs:      resolution.Milliseconds(),
	}
}

func (s Stage) validate(index int) error {
	prefix := fmt.Sprintf("stages[%d]", index)
	if !(s.MinionsPercentage > 0) || s.MinionsPercentage > 100 {
		return invalidStages(prefix+".minionsPercentage", fmt.Sprintf("must be in (0, 100], got %v", s.MinionsPercentage))
	}
	if s.RampUpDurationMs <= 0 {
		return invalidStages(prefix+".rampUpDurationMs", "must be greater than 0")
	}
	if s.TotalDurationMs < s.RampUpDurationMs {
		return invalidStages(prefix+".totalDurationMs", "must not be shorter than the ramp-up")
	}
	if s.ResolutionMs <= 0 {
		return invalidStages(prefix+".resolutionMs", "must be greater than 0")
	}
	return nil
}

// Stages starts percentages of the minions in consecutive stages and
// decides the replay of minions against the end of the latest stage.
type Stages struct {
	completion CompletionMode
	stages     []Stage

	// deadline is the end of the latest stage, set by the first NotifyStart.
	deadline atomic.Pointer[time.Time]

	clock  clock.PassiveClock
	logger *zap.Logger
}

// NewStages creates a Stages profile. The stages percentages must sum to 100.
// Stages with a zero resolution get DefaultResolutionMs.
func NewStages(completion CompletionMode, stages []Stage, opts ...Option) (*Stages, error) {
	if completion == "" {
		completion = Graceful
	}
	if !completion.Valid() {
		return nil, &ConfigurationError{Kind: KindStages, Field: "completion", Message: fmt.Sprintf("unknown completion mode %q", completion), Err: ErrInvalidParameter}
	}
	if len(stages) == 0 {
		return nil, invalidStages("stages", "at least one stage is required")
	}

	copied := make([]Stage, len(stages))
	copy(copied, stages)

	var sum float64
	for i := range copied {
		if copied[i].ResolutionMs == 0 {
			copied[i].ResolutionMs = DefaultResolutionMs
		}
		if err := copied[i].validate(i); err != nil {
			return nil, err
		}
		sum += copied[i].MinionsPercentage
	}
	if math.Abs(sum-100) > percentageTolerance {
		return nil, invalidStages("stages", fmt.Sprintf("the sum of the percentages should be 100%%, got %v%%", sum))
	}

	o := newOptions(opts)
	return &Stages{
		completion: completion,
		stages:     copied,
		clock:      o.clock,
		logger:     o.logger,
	}, nil
}

// Kind returns KindStages.
func (p *Stages) Kind() Kind {
	return KindStages
}

// Completion returns the completion mode of the profile.
func (p *Stages) Completion() CompletionMode {
	return p.completion
}

// StageList returns a copy of the configured stages.
func (p *Stages) StageList() []Stage {
	result := make([]Stage, len(p.stages))
	copy(result, p.stages)
	return result
}

// TotalDuration returns the sum of the stages total durations at the given speed.
func (p *Stages) TotalDuration(speedFactor float64) time.Duration {
	var totalMs int64
	for _, s := range p.stages {
		totalMs += s.TotalDurationMs
	}
	return time.Duration(float64(totalMs)/speedFactor) * time.Millisecond
}

// NotifyStart fixes the end of the latest stage. Later calls keep the first value.
func (p *Stages) NotifyStart(speedFactor float64) {
	if p.deadline.Load() != nil {
		return
	}

	end := p.clock.Now().Add(p.TotalDuration(speedFactor))
	if p.deadline.CompareAndSwap(nil, &end) {
		p.logger.Debug("Latest stage end computed", zap.Time("deadline", end))
	}
}

// Deadline returns the end of the latest stage, once NotifyStart was called.
func (p *Stages) Deadline() (time.Time, bool) {
	d := p.deadline.Load()
	if d == nil {
		return time.Time{}, false
	}
	return *d, true
}

// CanReplay decides the replay of a minion against the end of the latest stage.
//
// In Hard mode, the minion is replayed only if its last execution would end
// before the deadline. In Graceful mode, it is replayed until the deadline.
// Nothing is replayed before NotifyStart.
func (p *Stages) CanReplay(minionExecutionDuration time.Duration) bool {
	deadline, ok := p.Deadline()
	if !ok {
		return false
	}

	now := p.clock.Now()
	var replay bool
	if p.completion == Hard {
		replay = deadline.Sub(now) > minionExecutionDuration
	} else {
		replay = now.Before(deadline)
	}

	if ce := p.logger.Check(zap.DebugLevel, "Replay decision"); ce != nil {
		ce.Write(
			zap.Duration("execution", minionExecutionDuration),
			zap.Time("deadline", deadline),
			zap.String("completion", string(p.completion)),
			zap.Bool("replay", replay),
		)
	}
	return replay
}

// Iterator computes every starting line of the stages eagerly, since the
// timing of a stage depends on what the previous one left.
func (p *Stages) Iterator(totalMinionsCount int, speedFactor float64) Iterator {
	checkIteratorArgs(totalMinionsCount, speedFactor)

	lines := computeStageLines(p.stages, totalMinionsCount, speedFactor)
	if len(lines) > 0 {
		p.logger.Debug("Starting lines computed",
			zap.Int("lines", len(lines)),
			zap.Int("minions", totalMinionsCount),
			zap.Float64("speedFactor", speedFactor),
			zap.Int64("lastOffsetMs", lines[len(lines)-1].OffsetMs),
		)
	}
	return &queueIterator{lines: lines}
}

func (p *Stages) sealed() {}

// computeStageLines lays out the starting lines of every stage in order.
//
// The minions a stage cannot start because of rounding are added to its last
// line. The unused part of a stage total duration delays the first line of
// the next stage.
func computeStageLines(stages []Stage, totalMinionsCount int, speedFactor float64) []StartingLine {
	lines := make([]StartingLine, 0)
	remainingGlobally := totalMinionsCount
	var stageStartOffset int64

	for _, stage := range stages {
		if remainingGlobally <= 0 {
			break
		}

		linesCount := int(stage.RampUpDurationMs / stage.ResolutionMs)
		if linesCount == 0 {
			// The ramp-up is shorter than the resolution: one line for the whole stage.
			linesCount = 1
		}

		specified := int(math.Ceil(stage.MinionsPercentage / 100 * float64(totalMinionsCount)))
		remainingInStage := min(specified, remainingGlobally)
		minionsPerLine := max(int(math.Round(float64(specified)/float64(linesCount))), 1)
		maxLines := int(math.Ceil(float64(remainingInStage) / float64(minionsPerLine)))
		actualLines := min(linesCount, maxLines)
		delayBetweenLines := scaledMs(stage.ResolutionMs, speedFactor)

		var consumedMs int64
		for lineIndex := 0; lineIndex < actualLines && remainingInStage > 0 && remainingGlobally > 0; lineIndex++ {
			count := min(minionsPerLine, remainingInStage, remainingGlobally)
			remainingInStage -= count
			remainingGlobally -= count

			if lineIndex == actualLines-1 && remainingInStage > 0 {
				extra := min(remainingInStage, remainingGlobally)
				count += extra
				remainingInStage -= extra
				remainingGlobally -= extra
			}

			offset := delayBetweenLines
			if lineIndex == 0 {
				offset = stageStartOffset
			}
			consumedMs += delayBetweenLines
			lines = append(lines, StartingLine{Count: count, OffsetMs: offset})
		}

		stageStartOffset = max(scaledMs(stage.TotalDurationMs, speedFactor)-consumedMs, 0)
	}

	if remainingGlobally > 0 && len(lines) > 0 {
		lines[len(lines)-1].Count += remainingGlobally
	}
	return lines
}

// queueIterator serves precomputed lines.
type queueIterator struct {
	lines []StartingLine
	pos   int
}

func (it *queueIterator) HasNext() bool {
	return it.pos < len(it.lines)
}

func (it *queueIterator) Next() StartingLine {
	line := it.lines[it.pos]
	it.pos++
	return line
}
