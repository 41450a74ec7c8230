package profile

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	testingclock "k8s.io/utils/clock/testing"
)

func mustStages(t *testing.T, completion CompletionMode, stages []Stage, opts ...Option) *Stages {
	t.Helper()
	p, err := NewStages(completion, stages, opts...)
	require.NoError(t, err)
	return p
}

func TestNewStages_PercentagesMustSumTo100(t *testing.T) {
	tests := []struct {
		name        string
		percentages []float64
		wantErr     bool
	}{
		{name: "exactly 100", percentages: []float64{100}},
		{name: "split", percentages: []float64{25, 75}},
		{name: "decimal split", percentages: []float64{33.3, 33.3, 33.4}},
		{name: "99.9", percentages: []float64{99.9}, wantErr: true},
		{name: "100.1", percentages: []float64{50, 50.1}, wantErr: true},
		{name: "far below", percentages: []float64{10, 20}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages := make([]Stage, 0, len(tt.percentages))
			for _, p := range tt.percentages {
				stages = append(stages, Stage{MinionsPercentage: p, RampUpDurationMs: 1000, TotalDurationMs: 2000, ResolutionMs: 500})
			}

			_, err := NewStages(Graceful, stages)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidStages))
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, KindStages, cfgErr.Kind)
			assert.Contains(t, err.Error(), "100%")
		})
	}
}

func TestNewStages_InvalidStage(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		field string
	}{
		{name: "zero percentage", stage: Stage{MinionsPercentage: 0, RampUpDurationMs: 1000, TotalDurationMs: 1000}, field: "minionsPercentage"},
		{name: "no ramp-up", stage: Stage{MinionsPercentage: 100, RampUpDurationMs: 0, TotalDurationMs: 1000}, field: "rampUpDurationMs"},
		{name: "total shorter than ramp-up", stage: Stage{MinionsPercentage: 100, RampUpDurationMs: 1000, TotalDurationMs: 500}, field: "totalDurationMs"},
		{name: "negative resolution", stage: Stage{MinionsPercentage: 100, RampUpDurationMs: 1000, TotalDurationMs: 1000, ResolutionMs: -1}, field: "resolutionMs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStages(Hard, []Stage{tt.stage})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidStages))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestNewStages_RejectsUnknownCompletionAndEmptyStages(t *testing.T) {
	_, err := NewStages("eventually", []Stage{NewStage(100, time.Second, time.Second)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = NewStages(Graceful, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStages))
}

func TestNewStages_DefaultsResolutionAndCompletion(t *testing.T) {
	p := mustStages(t, "", []Stage{{MinionsPercentage: 100, RampUpDurationMs: 1000, TotalDurationMs: 1000}})

	assert.Equal(t, Graceful, p.Completion())
	assert.Equal(t, DefaultResolutionMs, p.StageList()[0].ResolutionMs)
}

func TestStages_SingleStage(t *testing.T) {
	p := mustStages(t, Graceful, []Stage{{MinionsPercentage: 100, RampUpDurationMs: 1000, TotalDurationMs: 2000, ResolutionMs: 500}})

	lines := Plan(p, 10, 1.0)

	assert.Equal(t, []StartingLine{{Count: 5, OffsetMs: 0}, {Count: 5, OffsetMs: 500}}, lines)
}

func TestStages_CarriesPlateauIntoNextStage(t *testing.T) {
	p := mustStages(t, Graceful, []Stage{
		{MinionsPercentage: 25, RampUpDurationMs: 1000, TotalDurationMs: 3000, ResolutionMs: 500},
		{MinionsPercentage: 75, RampUpDurationMs: 1500, TotalDurationMs: 2000, ResolutionMs: 500},
	})

	lines := Plan(p, 20, 1.0)

	assert.Equal(t, []StartingLine{
		{Count: 3, OffsetMs: 0},
		{Count: 2, OffsetMs: 500},
		{Count: 5, OffsetMs: 2000},
		{Count: 5, OffsetMs: 500},
		{Count: 5, OffsetMs: 500},
	}, lines)
}

func TestStages_FoldsRoundingRemainderIntoLastLine(t *testing.T) {
	p := mustStages(t, Hard, []Stage{{MinionsPercentage: 100, RampUpDurationMs: 1500, TotalDurationMs: 1500, ResolutionMs: 500}})

	lines := Plan(p, 10, 1.0)

	assert.Equal(t, []StartingLine{
		{Count: 3, OffsetMs: 0},
		{Count: 3, OffsetMs: 500},
		{Count: 4, OffsetMs: 500},
	}, lines)
}

func TestStages_RampUpShorterThanResolution(t *testing.T) {
	p := mustStages(t, Graceful, []Stage{{MinionsPercentage: 100, RampUpDurationMs: 200, TotalDurationMs: 1000, ResolutionMs: 500}})

	lines := Plan(p, 7, 1.0)

	assert.Equal(t, []StartingLine{{Count: 7, OffsetMs: 0}}, lines)
}

func TestStages_ZeroMinions(t *testing.T) {
	p := mustStages(t, Graceful, []Stage{NewStage(100, time.Second, time.Second)})

	assert.Empty(t, Plan(p, 0, 1.0))
}

func TestStages_SpeedFactorHalvesOffsets(t *testing.T) {
	p := mustStages(t, Graceful, []Stage{
		{MinionsPercentage: 25, RampUpDurationMs: 1000, TotalDurationMs: 3000, ResolutionMs: 500},
		{MinionsPercentage: 75, RampUpDurationMs: 1500, TotalDurationMs: 2000, ResolutionMs: 500},
	})

	normal := Plan(p, 20, 1.0)
	fast := Plan(p, 20, 2.0)

	require.Len(t, fast, len(normal))
	for i := range normal {
		assert.Equal(t, normal[i].Count, fast[i].Count, "line %d", i)
		assert.Equal(t, normal[i].OffsetMs/2, fast[i].OffsetMs, "line %d", i)
	}
}

func TestStages_IteratorsAreIndependent(t *testing.T) {
	p := mustStages(t, Graceful, []Stage{NewStage(100, time.Second, 2*time.Second)})

	first := p.Iterator(10, 1.0)
	second := p.Iterator(10, 1.0)

	require.True(t, first.HasNext())
	first.Next()
	first.Next()
	assert.False(t, first.HasNext())
	assert.True(t, second.HasNext())
	assert.Equal(t, StartingLine{Count: 5, OffsetMs: 0}, second.Next())
}

func TestStages_CanReplayBeforeStart(t *testing.T) {
	p := mustStages(t, Graceful, []Stage{NewStage(100, time.Second, 5*time.Second)})

	_, ok := p.Deadline()
	assert.False(t, ok)
	assert.False(t, p.CanReplay(time.Millisecond))
}

func TestStages_CanReplayHard(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fakeClock := testingclock.NewFakePassiveClock(start)
	p := mustStages(t, Hard, []Stage{NewStage(100, time.Second, 5*time.Second)},
		WithClock(fakeClock), WithLogger(zaptest.NewLogger(t)))

	p.NotifyStart(1.0)

	assert.True(t, p.CanReplay(4*time.Second))
	assert.False(t, p.CanReplay(6*time.Second))
	assert.False(t, p.CanReplay(5*time.Second))

	fakeClock.SetTime(start.Add(3 * time.Second))
	assert.True(t, p.CanReplay(time.Second))
	assert.False(t, p.CanReplay(2*time.Second))
}

func TestStages_CanReplayGraceful(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fakeClock := testingclock.NewFakePassiveClock(start)
	p := mustStages(t, Graceful, []Stage{NewStage(100, time.Second, 5*time.Second)}, WithClock(fakeClock))

	p.NotifyStart(1.0)

	assert.True(t, p.CanReplay(time.Hour))
	fakeClock.SetTime(start.Add(4999 * time.Millisecond))
	assert.True(t, p.CanReplay(time.Hour))
	fakeClock.SetTime(start.Add(5 * time.Second))
	assert.False(t, p.CanReplay(0))
	fakeClock.SetTime(start.Add(time.Minute))
	assert.False(t, p.CanReplay(0))
}

func TestStages_NotifyStartIsIdempotent(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fakeClock := testingclock.NewFakePassiveClock(start)
	p := mustStages(t, Graceful, []Stage{
		NewStage(50, time.Second, 2*time.Second),
		NewStage(50, time.Second, 2*time.Second),
	}, WithClock(fakeClock))

	p.NotifyStart(2.0)
	first, ok := p.Deadline()
	require.True(t, ok)
	assert.Equal(t, start.Add(2*time.Second), first)

	fakeClock.SetTime(start.Add(time.Minute))
	p.NotifyStart(1.0)

	second, ok := p.Deadline()
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestStages_ConcurrentNotifyStartAndCanReplay(t *testing.T) {
	p := mustStages(t, Graceful, []Stage{NewStage(100, time.Second, time.Hour)})

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			p.NotifyStart(1.0)
			p.CanReplay(time.Second)
			Plan(p, 100, 1.0)
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.True(t, p.CanReplay(time.Second))
}
