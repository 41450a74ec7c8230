// Package campaign runs scenarios in-process, starting their minions as
// dictated by execution profiles and replaying them while profiles allow it.
package campaign

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wesleyorama2/rampant/internal/metrics"
)

// Work is what a minion executes on each pass of its scenario.
//
// Run must return when ctx is cancelled. An error marks the pass as failed;
// the minion may still be replayed.
type Work interface {
	Run(ctx context.Context, m *Minion) error
}

// WorkFunc adapts a function to the Work interface.
type WorkFunc func(ctx context.Context, m *Minion) error

// Run calls f.
func (f WorkFunc) Run(ctx context.Context, m *Minion) error {
	return f(ctx, m)
}

// Minion is one simulated user of a scenario.
//
// A minion is owned by a single goroutine for its whole life, including
// replays, so its state needs no locking.
type Minion struct {
	// ID is unique within the scenario, starting at 1
	ID int

	// Scenario is the name of the scenario the minion belongs to
	Scenario string

	// Metrics records the step measurements of the minion
	Metrics *metrics.Engine

	// Logger is scoped to the minion
	Logger *zap.Logger

	pass int64
	data map[string]string
}

func newMinion(id int, scenario string, metricsEngine *metrics.Engine, logger *zap.Logger) *Minion {
	return &Minion{
		ID:       id,
		Scenario: scenario,
		Metrics:  metricsEngine,
		Logger:   logger.With(zap.String("scenario", scenario), zap.Int("minion", id)),
		data:     make(map[string]string),
	}
}

// Pass returns the number of the current pass, 1 for the first run.
func (m *Minion) Pass() int64 {
	return m.pass
}

// SetData stores a value in the minion's variable scope.
// Values survive replays of the minion.
func (m *Minion) SetData(key, value string) {
	m.data[key] = value
}

// GetData retrieves a value from the minion's variable scope.
func (m *Minion) GetData(key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

// Resolve replaces {{name}} placeholders with the minion's values first,
// then with the given variables.
func (m *Minion) Resolve(input string, variables map[string]string) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	result := input
	for key, value := range m.data {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{%s}}", key), value)
	}
	for key, value := range variables {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{%s}}", key), value)
	}
	return result
}

func (m *Minion) String() string {
	return fmt.Sprintf("%s#%d", m.Scenario, m.ID)
}
