package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/wesleyorama2/rampant/internal/metrics"
	"github.com/wesleyorama2/rampant/internal/profile"
)

// DefaultGracefulStop is the graceful stop applied by configurations that do not set one.
const DefaultGracefulStop = 30 * time.Second

var (
	// ErrAlreadyRunning is returned when Run is called while the same runner is running.
	ErrAlreadyRunning = errors.New("campaign is already running")

	// ErrAlreadyRan is returned when Run is called on a runner that has already run.
	// Profiles keep the deadline of their first start, so a new campaign needs new profiles.
	ErrAlreadyRan = errors.New("campaign has already run")
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Scenario is a named unit of work started by its own execution profile.
type Scenario struct {
	Name string

	// Minions is the total number of minions to start
	Minions int

	Profile profile.ExecutionProfile
	Work    Work
}

// Campaign is the set of scenarios started together.
type Campaign struct {
	Name string

	// SpeedFactor scales the delays of every profile; 2.0 runs twice as fast
	SpeedFactor float64

	// MaxDuration stops the campaign when elapsed; zero means no limit
	MaxDuration time.Duration

	// GracefulStop is how long running passes may finish once the campaign is
	// stopped; zero interrupts them at once
	GracefulStop time.Duration

	Scenarios []*Scenario
}

// Validate checks the campaign before it runs.
func (c *Campaign) Validate() error {
	if c.SpeedFactor <= 0 {
		return &ValidationError{Field: "speedFactor", Message: "must be positive"}
	}
	if c.MaxDuration < 0 {
		return &ValidationError{Field: "maxDuration", Message: "must not be negative"}
	}
	if c.GracefulStop < 0 {
		return &ValidationError{Field: "gracefulStop", Message: "must not be negative"}
	}
	if len(c.Scenarios) == 0 {
		return &ValidationError{Field: "scenarios", Message: "at least one scenario is required"}
	}

	names := make(map[string]bool, len(c.Scenarios))
	for i, sc := range c.Scenarios {
		field := fmt.Sprintf("scenarios[%d]", i)
		switch {
		case sc == nil:
			return &ValidationError{Field: field, Message: "is nil"}
		case sc.Name == "":
			return &ValidationError{Field: field + ".name", Message: "is required"}
		case names[sc.Name]:
			return &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate scenario '%s'", sc.Name)}
		case sc.Minions < 0:
			return &ValidationError{Field: field + ".minions", Message: "must not be negative"}
		case sc.Profile == nil:
			return &ValidationError{Field: field + ".profile", Message: "is required"}
		case sc.Work == nil:
			return &ValidationError{Field: field + ".work", Message: "is required"}
		}
		names[sc.Name] = true
	}
	return nil
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger of the runner.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the clock used to wait for starting lines.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithMetrics sets the engine receiving the measurements.
func WithMetrics(engine *metrics.Engine) Option {
	return func(r *Runner) {
		if engine != nil {
			r.metrics = engine
		}
	}
}

// Runner executes a campaign.
//
// Each scenario gets its own scheduling goroutine that walks the starting
// lines of its profile, and one goroutine per minion that replays the minion
// as long as the profile allows it.
type Runner struct {
	campaign *Campaign
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Engine

	running atomic.Bool
	ran     atomic.Bool
}

// NewRunner validates the campaign and creates its runner.
func NewRunner(c *Campaign, opts ...Option) (*Runner, error) {
	if c == nil {
		return nil, &ValidationError{Field: "campaign", Message: "is required"}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		campaign: c,
		clock:    clock.RealClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.NewEngine()
	}
	return r, nil
}

// Metrics returns the engine receiving the measurements of the campaign.
func (r *Runner) Metrics() *metrics.Engine {
	return r.metrics
}

// Run starts every scenario and blocks until all minions are done, ctx is
// cancelled or the campaign's MaxDuration elapses. A runner runs only once.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer r.running.Store(false)
	if !r.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRan
	}

	c := r.campaign
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if c.MaxDuration > 0 {
		runCtx, cancelRun = context.WithTimeout(ctx, c.MaxDuration)
		defer cancelRun()
	}

	// Passes in flight outlive runCtx for the graceful stop period
	minionsCtx, cancelMinions := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelMinions()

	start := r.clock.Now()
	r.logger.Info("Campaign started",
		zap.String("campaign", c.Name),
		zap.Int("scenarios", len(c.Scenarios)),
		zap.Float64("speedFactor", c.SpeedFactor))

	states := make([]*scenarioState, len(c.Scenarios))
	for i, sc := range c.Scenarios {
		sc.Profile.NotifyStart(c.SpeedFactor)
		states[i] = &scenarioState{scenario: sc}
	}

	var wg sync.WaitGroup
	for _, st := range states {
		wg.Add(1)
		go func(st *scenarioState) {
			defer wg.Done()
			r.runScenario(runCtx, minionsCtx, st)
		}(st)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	stopped := false
	select {
	case <-done:
	case <-runCtx.Done():
		stopped = true
		r.logger.Info("Campaign stopping, waiting for running minions",
			zap.String("campaign", c.Name),
			zap.Int("active", r.metrics.ActiveMinions()),
			zap.Duration("gracefulStop", c.GracefulStop))

		timer := r.clock.NewTimer(c.GracefulStop)
		select {
		case <-done:
		case <-timer.C():
			r.logger.Warn("Graceful stop elapsed, interrupting minions", zap.String("campaign", c.Name))
			cancelMinions()
			<-done
		}
		timer.Stop()
	}

	end := r.clock.Now()
	result := &Result{
		Name:        c.Name,
		SpeedFactor: c.SpeedFactor,
		StartTime:   start,
		EndTime:     end,
		Duration:    end.Sub(start),
		Stopped:     stopped,
		Scenarios:   make([]ScenarioResult, len(states)),
		Metrics:     r.metrics.Snapshot(),
	}
	for i, st := range states {
		result.Scenarios[i] = st.result()
	}

	r.logger.Info("Campaign completed",
		zap.String("campaign", c.Name),
		zap.Duration("duration", result.Duration),
		zap.Bool("stopped", stopped))
	return result, nil
}

func (r *Runner) runScenario(runCtx, minionsCtx context.Context, st *scenarioState) {
	sc := st.scenario
	logger := r.logger.With(zap.String("scenario", sc.Name))

	ctx, cancel := context.WithCancel(minionsCtx)
	defer cancel()

	if deadline, ok := hardDeadline(sc.Profile); ok {
		go r.interruptAt(ctx, cancel, deadline, logger)
	}

	var wg sync.WaitGroup
	it := sc.Profile.Iterator(sc.Minions, r.campaign.SpeedFactor)
	for it.HasNext() {
		line := it.Next()
		if !r.sleep(runCtx, line.Offset()) {
			logger.Debug("Scheduling stopped", zap.Int("startedMinions", int(st.nextID.Load())))
			break
		}

		st.lines.Add(1)
		logger.Debug("Starting minions", zap.Stringer("line", line))
		for i := 0; i < line.Count; i++ {
			m := newMinion(int(st.nextID.Add(1)), sc.Name, r.metrics, r.logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.runMinion(runCtx, ctx, st, m)
			}()
		}
	}
	wg.Wait()
}

// runMinion executes the minion and replays it while the profile allows.
// runCtx stops replays, ctx interrupts the pass in flight.
func (r *Runner) runMinion(runCtx, ctx context.Context, st *scenarioState, m *Minion) {
	replay := false
	for {
		m.pass++
		r.metrics.MinionStarted(replay)
		st.recordStart(replay)

		start := r.clock.Now()
		err := st.scenario.Work.Run(ctx, m)
		elapsed := r.clock.Since(start)

		outcome := metrics.OutcomeCompleted
		switch {
		case ctx.Err() != nil:
			outcome = metrics.OutcomeInterrupted
		case err != nil:
			outcome = metrics.OutcomeFailed
			m.Logger.Debug("Minion pass failed", zap.Int64("pass", m.pass), zap.Error(err))
		}
		r.metrics.MinionFinished(elapsed, outcome)
		st.recordOutcome(outcome)

		if outcome == metrics.OutcomeInterrupted || runCtx.Err() != nil {
			return
		}
		if !st.scenario.Profile.CanReplay(elapsed) {
			return
		}
		replay = true
	}
}

// interruptAt cancels the running passes of a scenario at its hard deadline.
func (r *Runner) interruptAt(ctx context.Context, cancel context.CancelFunc, deadline time.Time, logger *zap.Logger) {
	timer := r.clock.NewTimer(deadline.Sub(r.clock.Now()))
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C():
		logger.Info("Hard completion reached, interrupting minions", zap.Time("deadline", deadline))
		cancel()
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}

	timer := r.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C():
		return true
	}
}

// hardDeadline returns the deadline of profiles completing in HARD mode.
func hardDeadline(p profile.ExecutionProfile) (time.Time, bool) {
	stages, ok := p.(*profile.Stages)
	if !ok || stages.Completion() != profile.Hard {
		return time.Time{}, false
	}
	return stages.Deadline()
}

type scenarioState struct {
	scenario *Scenario

	nextID      atomic.Int64
	lines       atomic.Int64
	started     atomic.Int64
	replayed    atomic.Int64
	completed   atomic.Int64
	failed      atomic.Int64
	interrupted atomic.Int64
}

func (s *scenarioState) recordStart(replay bool) {
	if replay {
		s.replayed.Add(1)
	} else {
		s.started.Add(1)
	}
}

func (s *scenarioState) recordOutcome(outcome metrics.Outcome) {
	switch outcome {
	case metrics.OutcomeCompleted:
		s.completed.Add(1)
	case metrics.OutcomeFailed:
		s.failed.Add(1)
	case metrics.OutcomeInterrupted:
		s.interrupted.Add(1)
	}
}

func (s *scenarioState) result() ScenarioResult {
	return ScenarioResult{
		Name:          s.scenario.Name,
		Profile:       s.scenario.Profile.Kind(),
		Minions:       s.scenario.Minions,
		StartingLines: s.lines.Load(),
		Started:       s.started.Load(),
		Replayed:      s.replayed.Load(),
		Completed:     s.completed.Load(),
		Failed:        s.failed.Load(),
		Interrupted:   s.interrupted.Load(),
	}
}

// Result is the outcome of a campaign run.
type Result struct {
	Name        string            `json:"name"`
	SpeedFactor float64           `json:"speedFactor"`
	StartTime   time.Time         `json:"startTime"`
	EndTime     time.Time         `json:"endTime"`
	Duration    time.Duration     `json:"duration"`
	Stopped     bool              `json:"stopped"`
	Scenarios   []ScenarioResult  `json:"scenarios"`
	Metrics     *metrics.Snapshot `json:"metrics"`
}

// ScenarioResult counts the minion passes of one scenario.
type ScenarioResult struct {
	Name          string       `json:"name"`
	Profile       profile.Kind `json:"profile"`
	Minions       int          `json:"minions"`
	StartingLines int64        `json:"startingLines"`
	Started       int64        `json:"started"`
	Replayed      int64        `json:"replayed"`
	Completed     int64        `json:"completed"`
	Failed        int64        `json:"failed"`
	Interrupted   int64        `json:"interrupted"`
}
