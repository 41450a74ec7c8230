package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wesleyorama2/rampant/internal/profile"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Fields returns the fields in error, in order.
func (e *ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		fields = append(fields, err.Field)
	}
	return fields
}

// ApplyDefaults applies default values to a CampaignConfig.
func ApplyDefaults(config *CampaignConfig) {
	if config.Name == "" {
		config.Name = "campaign"
	}
	if config.SpeedFactor == 0 {
		config.SpeedFactor = 1.0
	}
	if config.GracefulStop == nil {
		gracefulStop := Duration(30 * time.Second)
		config.GracefulStop = &gracefulStop
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = Duration(30 * time.Second)
	}
	if config.Settings.MaxIdleConnsPerHost == 0 {
		config.Settings.MaxIdleConnsPerHost = 100
	}

	for name, sc := range config.Scenarios {
		if sc != nil {
			applyScenarioDefaults(name, sc)
		}
	}
}

// applyScenarioDefaults applies default values to a scenario.
func applyScenarioDefaults(name string, sc *ScenarioConfig) {
	if sc.Profile.Type == "" {
		sc.Profile.Type = ProfileImmediate
	}
	if sc.Profile.Type == ProfileStages && sc.Profile.Completion == "" {
		sc.Profile.Completion = string(profile.Graceful)
	}

	for i := range sc.Steps {
		step := &sc.Steps[i]
		if step.Name == "" {
			step.Name = fmt.Sprintf("%s_step_%d", name, i+1)
		}
		if step.Method == "" {
			step.Method = http.MethodGet
		}
		for j := range step.Extract {
			if step.Extract[j].Source == "" {
				step.Extract[j].Source = "body"
			}
		}
	}
}

// Validate validates the entire campaign configuration.
//
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *CampaignConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.SpeedFactor <= 0 {
		errs.Add("speedFactor", "must be positive")
	}
	if c.MaxDuration < 0 {
		errs.Add("maxDuration", "must not be negative")
	}
	if c.GracefulStop != nil && *c.GracefulStop < 0 {
		errs.Add("gracefulStop", "must not be negative")
	}

	if len(c.Scenarios) == 0 {
		errs.Add("scenarios", "at least one scenario is required")
	}
	for _, name := range c.ScenarioNames() {
		validateScenario(name, c.Scenarios[name], errs)
	}

	validateSettings(&c.Settings, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ScenarioNames returns the scenario names in a stable order.
func (c *CampaignConfig) ScenarioNames() []string {
	names := make([]string, 0, len(c.Scenarios))
	for name := range c.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateScenario validates a single scenario configuration.
func validateScenario(name string, sc *ScenarioConfig, errs *ValidationErrors) {
	prefix := fmt.Sprintf("scenarios.%s", name)
	if sc == nil {
		errs.Add(prefix, "scenario is empty")
		return
	}

	if sc.Minions < 0 {
		errs.Add(prefix+".minions", "must not be negative")
	}

	validateProfile(prefix+".profile", &sc.Profile, errs)

	for i, step := range sc.Steps {
		validateStep(fmt.Sprintf("%s.steps[%d]", prefix, i), &step, errs)
	}
}

// validateProfile checks the fields required by the profile type, then builds
// the profile to catch the remaining constraints.
func validateProfile(prefix string, pc *ProfileConfig, errs *ValidationErrors) {
	before := len(errs.Errors)

	switch pc.Type {
	case "", ProfileImmediate:
	case ProfileRegular:
		requireNonNegative(prefix+".period", pc.Period, errs)
		requirePositiveInt(prefix+".minionsPerLaunch", pc.MinionsPerLaunch, errs)
	case ProfileAccelerating:
		requireNonNegative(prefix+".startPeriod", pc.StartPeriod, errs)
		requireNonNegative(prefix+".minPeriod", pc.MinPeriod, errs)
		if pc.Accelerator <= 0 {
			errs.Add(prefix+".accelerator", "must be positive")
		}
		requirePositiveInt(prefix+".minionsPerLaunch", pc.MinionsPerLaunch, errs)
	case ProfileProgressiveVolume:
		requirePositive(prefix+".period", pc.Period, errs)
		requirePositiveInt(prefix+".minionsAtStart", pc.MinionsAtStart, errs)
		requirePositiveInt(prefix+".maxMinionsPerLaunch", pc.MaxMinionsPerLaunch, errs)
		if pc.Multiplier <= 0 {
			errs.Add(prefix+".multiplier", "must be positive")
		}
	case ProfileTimeFrame:
		requirePositive(prefix+".period", pc.Period, errs)
		requirePositive(prefix+".timeFrame", pc.TimeFrame, errs)
	case ProfileStages:
		if pc.Completion != "" && !profile.CompletionMode(pc.Completion).Valid() {
			errs.Add(prefix+".completion", fmt.Sprintf("unknown completion mode: %s", pc.Completion))
		}
		if len(pc.Stages) == 0 {
			errs.Add(prefix+".stages", "at least one stage is required")
		}
	default:
		errs.Add(prefix+".type", fmt.Sprintf("unknown profile type: %s", pc.Type))
	}

	if len(errs.Errors) > before {
		return
	}

	if _, err := BuildProfile(pc); err != nil {
		var cfgErr *profile.ConfigurationError
		if errors.As(err, &cfgErr) {
			errs.Add(prefix, fmt.Sprintf("%s: %s", cfgErr.Field, cfgErr.Message))
		} else {
			errs.Add(prefix, err.Error())
		}
	}
}

// validateStep validates a single step configuration.
func validateStep(prefix string, step *StepConfig, errs *ValidationErrors) {
	if step.URL == "" {
		errs.Add(prefix+".url", "url is required")
	}
	if step.Timeout < 0 {
		errs.Add(prefix+".timeout", "must not be negative")
	}
	if step.ThinkTime < 0 {
		errs.Add(prefix+".thinkTime", "must not be negative")
	}

	for i, extract := range step.Extract {
		field := fmt.Sprintf("%s.extract[%d]", prefix, i)
		if extract.Name == "" {
			errs.Add(field+".name", "name is required")
		}
		switch extract.Source {
		case "", "body", "header", "status":
		default:
			errs.Add(field+".source", fmt.Sprintf("unknown source: %s", extract.Source))
		}
		if extract.Source == "header" && extract.Path == "" {
			errs.Add(field+".path", "header name is required")
		}
	}

	for i, check := range step.Checks {
		if check.Path == "" {
			errs.Add(fmt.Sprintf("%s.checks[%d].path", prefix, i), "path is required")
		}
	}
}

// validateSettings validates global settings.
func validateSettings(settings *Settings, errs *ValidationErrors) {
	if settings.BaseURL != "" {
		u, err := url.Parse(settings.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add("settings.baseUrl", fmt.Sprintf("invalid URL: %s", settings.BaseURL))
		}
	}
	if settings.Timeout < 0 {
		errs.Add("settings.timeout", "must not be negative")
	}
	if settings.MaxConnectionsPerHost < 0 {
		errs.Add("settings.maxConnectionsPerHost", "must not be negative")
	}
	if settings.MaxIdleConnsPerHost < 0 {
		errs.Add("settings.maxIdleConnsPerHost", "must not be negative")
	}
}

func requirePositive(field string, d Duration, errs *ValidationErrors) {
	if d <= 0 {
		errs.Add(field, "must be a positive duration")
	}
}

func requireNonNegative(field string, d Duration, errs *ValidationErrors) {
	if d < 0 {
		errs.Add(field, "must not be negative")
	}
}

func requirePositiveInt(field string, v int, errs *ValidationErrors) {
	if v <= 0 {
		errs.Add(field, "must be positive")
	}
}
