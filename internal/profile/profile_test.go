package profile

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counts(lines []StartingLine) []int {
	result := make([]int, len(lines))
	for i, l := range lines {
		result[i] = l.Count
	}
	return result
}

func offsets(lines []StartingLine) []int64 {
	result := make([]int64, len(lines))
	for i, l := range lines {
		result[i] = l.OffsetMs
	}
	return result
}

func sum(lines []StartingLine) int {
	total := 0
	for _, l := range lines {
		total += l.Count
	}
	return total
}

func allProfiles(t *testing.T) map[string]ExecutionProfile {
	t.Helper()

	regular, err := NewRegular(1000, 3)
	require.NoError(t, err)
	accelerating, err := NewAccelerating(1000, 2, 200, 2)
	require.NoError(t, err)
	slowing, err := NewAccelerating(100, 0.5, 0, 3)
	require.NoError(t, err)
	progressive, err := NewProgressiveVolume(1000, 1, 2, 5)
	require.NoError(t, err)
	shrinking, err := NewProgressiveVolume(1000, 4, 0.1, 10)
	require.NoError(t, err)
	timeFrame, err := NewTimeFrame(500, 2000)
	require.NoError(t, err)
	stages, err := NewStages(Graceful, []Stage{
		{MinionsPercentage: 33.3, RampUpDurationMs: 1000, TotalDurationMs: 2000, ResolutionMs: 500},
		{MinionsPercentage: 33.3, RampUpDurationMs: 3000, TotalDurationMs: 3000, ResolutionMs: 200},
		{MinionsPercentage: 33.4, RampUpDurationMs: 100, TotalDurationMs: 1000, ResolutionMs: 500},
	})
	require.NoError(t, err)
	userDefined, err := NewUserDefined(RampUpFunc(func(pastPeriodMs int64, total int, speedFactor float64) StartingLine {
		return StartingLine{Count: 7, OffsetMs: int64(100 / speedFactor)}
	}))
	require.NoError(t, err)

	return map[string]ExecutionProfile{
		"immediate":             NewImmediate(),
		"regular":               regular,
		"accelerating":          accelerating,
		"slowing":               slowing,
		"progressive-volume":    progressive,
		"shrinking-progressive": shrinking,
		"time-frame":            timeFrame,
		"stages":                stages,
		"user-defined":          userDefined,
	}
}

func TestAllProfiles_ConserveMinionsCount(t *testing.T) {
	totals := []int{0, 1, 2, 7, 10, 99, 100, 1000, 1234}
	speeds := []float64{0.5, 1, 2, 3.7}

	for name, p := range allProfiles(t) {
		for _, total := range totals {
			for _, speed := range speeds {
				t.Run(fmt.Sprintf("%s/%d/%v", name, total, speed), func(t *testing.T) {
					lines := Plan(p, total, speed)

					assert.Equal(t, total, sum(lines))
					for _, l := range lines {
						assert.GreaterOrEqual(t, l.Count, 0)
						assert.GreaterOrEqual(t, l.OffsetMs, int64(0))
					}
				})
			}
		}
	}
}

func TestAllProfiles_IteratorPanicsOnProgrammerErrors(t *testing.T) {
	for name, p := range allProfiles(t) {
		t.Run(name, func(t *testing.T) {
			assert.Panics(t, func() { p.Iterator(-1, 1) })
			assert.Panics(t, func() { p.Iterator(10, 0) })
			assert.Panics(t, func() { p.Iterator(10, -1) })
			assert.Panics(t, func() { p.Iterator(10, math.NaN()) })
		})
	}
}

func TestAllProfiles_NoReplayOutsideStages(t *testing.T) {
	for name, p := range allProfiles(t) {
		if p.Kind() == KindStages {
			continue
		}
		t.Run(name, func(t *testing.T) {
			p.NotifyStart(1)
			assert.False(t, p.CanReplay(0))
		})
	}
}

func TestImmediate(t *testing.T) {
	lines := Plan(NewImmediate(), 10, 3)

	assert.Equal(t, []StartingLine{{Count: 10, OffsetMs: 0}}, lines)
}

func TestRegular(t *testing.T) {
	p, err := NewRegular(1000, 3)
	require.NoError(t, err)

	lines := Plan(p, 10, 1)
	assert.Equal(t, []int{3, 3, 3, 1}, counts(lines))
	assert.Equal(t, []int64{1000, 1000, 1000, 1000}, offsets(lines))

	fast := Plan(p, 10, 2)
	assert.Equal(t, []int{3, 3, 3, 1}, counts(fast))
	assert.Equal(t, []int64{500, 500, 500, 500}, offsets(fast))
}

func TestRegular_InvalidConfiguration(t *testing.T) {
	_, err := NewRegular(-1, 3)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = NewRegular(1000, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minionsCountProLaunch")
}

func TestAccelerating(t *testing.T) {
	p, err := NewAccelerating(1000, 2, 200, 2)
	require.NoError(t, err)

	lines := Plan(p, 10, 1)
	assert.Equal(t, []int{2, 2, 2, 2, 2}, counts(lines))
	assert.Equal(t, []int64{1000, 500, 250, 200, 200}, offsets(lines))

	fast := Plan(p, 10, 2)
	assert.Equal(t, []int{2, 2, 2, 2, 2}, counts(fast))
	assert.Equal(t, []int64{500, 250, 125, 100, 100}, offsets(fast))
}

func TestAccelerating_SlowsDownBelowOne(t *testing.T) {
	p, err := NewAccelerating(100, 0.5, 0, 3)
	require.NoError(t, err)

	lines := Plan(p, 8, 1)

	assert.Equal(t, []int{3, 3, 2}, counts(lines))
	assert.Equal(t, []int64{100, 200, 400}, offsets(lines))
}

func TestAccelerating_InvalidConfiguration(t *testing.T) {
	_, err := NewAccelerating(1000, 0, 100, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accelerator")
}

func TestProgressiveVolume(t *testing.T) {
	p, err := NewProgressiveVolume(1000, 1, 2, 5)
	require.NoError(t, err)

	lines := Plan(p, 20, 1)
	assert.Equal(t, []int{1, 2, 4, 5, 5, 3}, counts(lines))
	assert.Equal(t, []int64{1000, 1000, 1000, 1000, 1000, 1000}, offsets(lines))
}

func TestProgressiveVolume_NeverStartsLessThanOne(t *testing.T) {
	p, err := NewProgressiveVolume(100, 4, 0.1, 10)
	require.NoError(t, err)

	lines := Plan(p, 7, 1)

	assert.Equal(t, []int{4, 1, 1, 1}, counts(lines))
}

func TestTimeFrame(t *testing.T) {
	p, err := NewTimeFrame(500, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.LinesCount())

	lines := Plan(p, 10, 1)
	assert.Equal(t, []int{3, 3, 3, 1}, counts(lines))
	assert.Equal(t, []int64{500, 500, 500, 500}, offsets(lines))

	fast := Plan(p, 10, 2)
	assert.Equal(t, []int{3, 3, 3, 1}, counts(fast))
	assert.Equal(t, []int64{250, 250, 250, 250}, offsets(fast))
}

func TestTimeFrame_ShorterThanPeriod(t *testing.T) {
	p, err := NewTimeFrame(500, 100)
	require.NoError(t, err)

	assert.Equal(t, []int{10}, counts(Plan(p, 10, 1)))
}

func TestUserDefined_ClampsLastLine(t *testing.T) {
	p, err := NewUserDefined(RampUpFunc(func(int64, int, float64) StartingLine {
		return StartingLine{Count: 3, OffsetMs: 100}
	}))
	require.NoError(t, err)

	it := p.Iterator(10, 1)
	var got []int
	for it.HasNext() {
		line := it.Next()
		assert.Equal(t, int64(100), line.OffsetMs)
		got = append(got, line.Count)
	}

	assert.Equal(t, []int{3, 3, 3, 1}, got)
	assert.False(t, it.HasNext())
}

func TestUserDefined_ReceivesPreviousOffset(t *testing.T) {
	var pasts []int64
	p, err := NewUserDefined(RampUpFunc(func(pastPeriodMs int64, total int, speedFactor float64) StartingLine {
		assert.Equal(t, 4, total)
		assert.Equal(t, 2.0, speedFactor)
		pasts = append(pasts, pastPeriodMs)
		return StartingLine{Count: 1, OffsetMs: pastPeriodMs + 10}
	}))
	require.NoError(t, err)

	lines := Plan(p, 4, 2)

	assert.Equal(t, []int64{0, 10, 20, 30}, pasts)
	assert.Equal(t, []int64{10, 20, 30, 40}, offsets(lines))
}

func TestUserDefined_NegativeCountsStartNothing(t *testing.T) {
	calls := 0
	p, err := NewUserDefined(RampUpFunc(func(int64, int, float64) StartingLine {
		calls++
		if calls == 1 {
			return StartingLine{Count: -5, OffsetMs: 10}
		}
		return StartingLine{Count: 5, OffsetMs: 10}
	}))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, counts(Plan(p, 2, 1)))
}

func TestUserDefined_RequiresCallback(t *testing.T) {
	_, err := NewUserDefined(nil)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	var f RampUpFunc
	_, err = NewUserDefined(f)
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

type fixedRampUp struct {
	count int
}

func (r fixedRampUp) NextStartingLine(int64, int, float64) StartingLine {
	return StartingLine{Count: r.count, OffsetMs: 1}
}

func namedRampUp(int64, int, float64) StartingLine {
	return StartingLine{Count: 1}
}

func otherRampUp(int64, int, float64) StartingLine {
	return StartingLine{Count: 2}
}

func TestEqual(t *testing.T) {
	regularA, _ := NewRegular(1000, 3)
	regularB, _ := NewRegular(1000, 3)
	regularC, _ := NewRegular(1000, 4)
	timeFrame, _ := NewTimeFrame(1000, 3000)

	stagesA, _ := NewStages(Graceful, []Stage{NewStage(100, time.Second, time.Second)})
	stagesB, _ := NewStages(Graceful, []Stage{NewStage(100, time.Second, time.Second)})
	stagesHard, _ := NewStages(Hard, []Stage{NewStage(100, time.Second, time.Second)})
	stagesB.NotifyStart(1)

	userA, _ := NewUserDefined(RampUpFunc(namedRampUp))
	userB, _ := NewUserDefined(RampUpFunc(namedRampUp))
	userC, _ := NewUserDefined(RampUpFunc(otherRampUp))
	userD, _ := NewUserDefined(fixedRampUp{count: 2})
	userE, _ := NewUserDefined(fixedRampUp{count: 2})

	assert.True(t, Equal(regularA, regularB))
	assert.False(t, Equal(regularA, regularC))
	assert.False(t, Equal(regularA, timeFrame))
	assert.True(t, Equal(NewImmediate(), NewImmediate()))
	assert.True(t, Equal(stagesA, stagesB), "the start deadline is not part of the configuration")
	assert.False(t, Equal(stagesA, stagesHard))
	assert.True(t, Equal(userA, userB))
	assert.False(t, Equal(userA, userC))
	assert.True(t, Equal(userD, userE))
	assert.False(t, Equal(userA, userD))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(regularA, nil))
}

func TestSummarize(t *testing.T) {
	scheduled := Summarize([]StartingLine{{Count: 5, OffsetMs: 0}, {Count: 3, OffsetMs: 500}, {Count: 2, OffsetMs: 250}})

	require.Len(t, scheduled, 3)
	assert.Equal(t, []int64{0, 500, 750}, []int64{scheduled[0].AtMs, scheduled[1].AtMs, scheduled[2].AtMs})
	assert.Equal(t, []int{5, 8, 10}, []int{scheduled[0].Cumulative, scheduled[1].Cumulative, scheduled[2].Cumulative})
	assert.Equal(t, 2, scheduled[2].Index)
}

func TestStartingLine_Offset(t *testing.T) {
	line := StartingLine{Count: 2, OffsetMs: 1500}

	assert.Equal(t, 1500*time.Millisecond, line.Offset())
	assert.Equal(t, "2 minion(s) after 1500ms", line.String())
}
