// Package config provides parsing and validation of campaign files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CampaignConfig is the root configuration of a campaign.
//
// Example YAML:
//
//	name: checkout
//	speedFactor: 1.0
//	settings:
//	  baseUrl: "http://localhost:8080"
//	  timeout: 10s
//	scenarios:
//	  browse:
//	    minions: 100
//	    profile:
//	      type: stages
//	      completion: hard
//	      stages:
//	        - { percentage: 50, rampUp: 1s, total: 2s, resolution: 500ms }
//	        - { percentage: 50, rampUp: 1s, total: 2s }
//	    steps:
//	      - name: home
//	        url: "{{baseUrl}}/"
//	        checks:
//	          - { path: "$.status", equals: ok }
type CampaignConfig struct {
	// Name of the campaign (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the campaign (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// SpeedFactor scales the delays of every profile (default: 1)
	SpeedFactor float64 `json:"speedFactor,omitempty" yaml:"speedFactor,omitempty"`

	// MaxDuration stops the campaign when elapsed (optional)
	MaxDuration Duration `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`

	// GracefulStop is how long running minions may finish once stopped (default: 30s).
	// Zero interrupts them as soon as the campaign stops.
	GracefulStop *Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Settings contains global HTTP settings for all scenarios
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Variables are global variables available to all scenarios
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Scenarios started together by the campaign
	Scenarios map[string]*ScenarioConfig `json:"scenarios" yaml:"scenarios"`
}

// Settings contains global HTTP settings.
type Settings struct {
	// BaseURL is prepended to relative step URLs and available as {{baseUrl}}
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// Timeout is the default HTTP request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxConnectionsPerHost limits connections per host
	MaxConnectionsPerHost int `json:"maxConnectionsPerHost,omitempty" yaml:"maxConnectionsPerHost,omitempty"`

	// MaxIdleConnsPerHost limits idle connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// ScenarioConfig defines a scenario and the profile starting its minions.
type ScenarioConfig struct {
	// Minions is the total number of minions to start
	Minions int `json:"minions" yaml:"minions"`

	// Profile defines when the minions start
	Profile ProfileConfig `json:"profile" yaml:"profile"`

	// Variables specific to this scenario
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Steps executed by each minion, in order
	Steps []StepConfig `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// Profile types.
const (
	ProfileImmediate         = "immediate"
	ProfileRegular           = "regular"
	ProfileAccelerating      = "accelerating"
	ProfileProgressiveVolume = "progressive-volume"
	ProfileStages            = "stages"
	ProfileTimeFrame         = "time-frame"
)

// ProfileConfig selects and parameterizes an execution profile.
// Only the fields of the selected type are read.
type ProfileConfig struct {
	// Type of profile (default: immediate)
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Period between starting lines (regular, progressive-volume, time-frame)
	Period Duration `json:"period,omitempty" yaml:"period,omitempty"`

	// MinionsPerLaunch is the size of each starting line (regular, accelerating)
	MinionsPerLaunch int `json:"minionsPerLaunch,omitempty" yaml:"minionsPerLaunch,omitempty"`

	// Accelerating
	StartPeriod Duration `json:"startPeriod,omitempty" yaml:"startPeriod,omitempty"`
	Accelerator float64  `json:"accelerator,omitempty" yaml:"accelerator,omitempty"`
	MinPeriod   Duration `json:"minPeriod,omitempty" yaml:"minPeriod,omitempty"`

	// Progressive volume
	MinionsAtStart      int     `json:"minionsAtStart,omitempty" yaml:"minionsAtStart,omitempty"`
	Multiplier          float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	MaxMinionsPerLaunch int     `json:"maxMinionsPerLaunch,omitempty" yaml:"maxMinionsPerLaunch,omitempty"`

	// TimeFrame is the window in which all minions start (time-frame)
	TimeFrame Duration `json:"timeFrame,omitempty" yaml:"timeFrame,omitempty"`

	// Completion mode of stages: graceful (default) or hard
	Completion string `json:"completion,omitempty" yaml:"completion,omitempty"`

	// Stages in order of execution (stages)
	Stages []StageConfig `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// StageConfig is one stage of a stages profile.
type StageConfig struct {
	// Percentage of the scenario's minions started in this stage
	Percentage float64 `json:"percentage" yaml:"percentage"`

	// RampUp is the time over which the stage's minions start
	RampUp Duration `json:"rampUp" yaml:"rampUp"`

	// Total duration of the stage, ramp-up included
	Total Duration `json:"total" yaml:"total"`

	// Resolution is the interval between starting lines (default: 500ms)
	Resolution Duration `json:"resolution,omitempty" yaml:"resolution,omitempty"`
}

// StepConfig defines a single HTTP request of a scenario.
type StepConfig struct {
	// Name for this step (used in metrics)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// HTTP method (default: GET)
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// URL (supports variable substitution)
	URL string `json:"url" yaml:"url"`

	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body (supports variable substitution)
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Timeout for this specific step (optional)
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// ThinkTime after this step
	ThinkTime Duration `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`

	// ExpectStatus is the only accepted status when set
	ExpectStatus int `json:"expectStatus,omitempty" yaml:"expectStatus,omitempty"`

	// Extract stores response values in the minion's variables
	Extract []ExtractConfig `json:"extract,omitempty" yaml:"extract,omitempty"`

	// Checks on the JSON response body
	Checks []CheckConfig `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// ExtractConfig defines how to extract variables from a response.
type ExtractConfig struct {
	// Name of the variable to store
	Name string `json:"name" yaml:"name"`

	// Source: "body", "header", "status" (default: body)
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Path: header name, or JSONPath for body
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// CheckConfig asserts on a JSON response body.
type CheckConfig struct {
	// Path is a JSONPath or gjson path
	Path string `json:"path" yaml:"path"`

	// Equals compares the value's string form
	Equals *Scalar `json:"equals,omitempty" yaml:"equals,omitempty"`

	// Exists requires the path to be present or absent
	Exists *bool `json:"exists,omitempty" yaml:"exists,omitempty"`
}

// Scalar is a string that also accepts JSON numbers and booleans.
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	if len(b) == 0 || b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("expected a scalar value, got %s", b)
	}
	*s = Scalar(b)
	return nil
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
// Plain numbers are read as seconds.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// Milliseconds returns the duration as an integer millisecond count.
func (d Duration) Milliseconds() int64 {
	return time.Duration(d).Milliseconds()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes if present
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as a number: "30" or "1.5"
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	seconds, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}
