package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/rampant/internal/campaign"
	"github.com/wesleyorama2/rampant/internal/profile"
)

// BuildProfile creates the execution profile described by pc.
//
// The options are passed to profiles that keep runtime state (stages).
func BuildProfile(pc *ProfileConfig, opts ...profile.Option) (profile.ExecutionProfile, error) {
	switch pc.Type {
	case "", ProfileImmediate:
		return profile.NewImmediate(), nil
	case ProfileRegular:
		return asProfile(profile.NewRegular(pc.Period.Milliseconds(), pc.MinionsPerLaunch))
	case ProfileAccelerating:
		return asProfile(profile.NewAccelerating(pc.StartPeriod.Milliseconds(), pc.Accelerator, pc.MinPeriod.Milliseconds(), pc.MinionsPerLaunch))
	case ProfileProgressiveVolume:
		return asProfile(profile.NewProgressiveVolume(pc.Period.Milliseconds(), pc.MinionsAtStart, pc.Multiplier, pc.MaxMinionsPerLaunch))
	case ProfileTimeFrame:
		return asProfile(profile.NewTimeFrame(pc.Period.Milliseconds(), pc.TimeFrame.Milliseconds()))
	case ProfileStages:
		stages := make([]profile.Stage, 0, len(pc.Stages))
		for _, sc := range pc.Stages {
			stages = append(stages, profile.Stage{
				MinionsPercentage: sc.Percentage,
				RampUpDurationMs:  sc.RampUp.Milliseconds(),
				TotalDurationMs:   sc.Total.Milliseconds(),
				ResolutionMs:      sc.Resolution.Milliseconds(),
			})
		}
		return asProfile(profile.NewStages(profile.CompletionMode(pc.Completion), stages, opts...))
	default:
		return nil, fmt.Errorf("unknown profile type: %s", pc.Type)
	}
}

// asProfile avoids returning a typed nil profile along with an error.
func asProfile(p profile.ExecutionProfile, err error) (profile.ExecutionProfile, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// BuildCampaign converts a validated configuration into a runnable campaign.
//
// All scenarios share one HTTP client configured from the settings.
func BuildCampaign(config *CampaignConfig, logger *zap.Logger) (*campaign.Campaign, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpConfig := campaign.DefaultHTTPClientConfig()
	httpConfig.Timeout = config.Settings.Timeout.GetDuration(httpConfig.Timeout)
	if config.Settings.MaxIdleConnsPerHost > 0 {
		httpConfig.MaxIdleConnsPerHost = config.Settings.MaxIdleConnsPerHost
	}
	httpConfig.MaxConnsPerHost = config.Settings.MaxConnectionsPerHost
	httpConfig.InsecureSkipVerify = config.Settings.InsecureSkipVerify
	client := campaign.NewHTTPClient(httpConfig)

	c := &campaign.Campaign{
		Name:         config.Name,
		SpeedFactor:  config.SpeedFactor,
		MaxDuration:  config.MaxDuration.GetDuration(0),
		GracefulStop: campaign.DefaultGracefulStop,
	}
	if config.GracefulStop != nil {
		c.GracefulStop = time.Duration(*config.GracefulStop)
	}

	for _, name := range config.ScenarioNames() {
		sc := config.Scenarios[name]
		if len(sc.Steps) == 0 {
			return nil, fmt.Errorf("scenario '%s': at least one step is required to run", name)
		}

		p, err := BuildProfile(&sc.Profile, profile.WithLogger(logger.With(zap.String("scenario", name))))
		if err != nil {
			return nil, fmt.Errorf("scenario '%s': %w", name, err)
		}

		c.Scenarios = append(c.Scenarios, &campaign.Scenario{
			Name:    name,
			Minions: sc.Minions,
			Profile: p,
			Work: &campaign.HTTPWork{
				Client:    client,
				BaseURL:   config.Settings.BaseURL,
				Variables: scenarioVariables(config, sc),
				Steps:     buildSteps(sc.Steps),
			},
		})
	}

	return c, nil
}

// scenarioVariables merges the global and scenario variables.
// Later maps override earlier ones.
func scenarioVariables(config *CampaignConfig, sc *ScenarioConfig) map[string]string {
	result := make(map[string]string)
	if config.Settings.BaseURL != "" {
		result["baseUrl"] = config.Settings.BaseURL
		result["baseURL"] = config.Settings.BaseURL
	}
	for k, v := range config.Variables {
		result[k] = v
	}
	for k, v := range sc.Variables {
		result[k] = v
	}
	return result
}

func buildSteps(configs []StepConfig) []campaign.Step {
	steps := make([]campaign.Step, 0, len(configs))
	for _, sc := range configs {
		step := campaign.Step{
			Name:         sc.Name,
			Method:       sc.Method,
			URL:          sc.URL,
			Headers:      sc.Headers,
			Body:         sc.Body,
			Timeout:      sc.Timeout.GetDuration(0),
			ThinkTime:    sc.ThinkTime.GetDuration(0),
			ExpectStatus: sc.ExpectStatus,
		}
		for _, e := range sc.Extract {
			step.Extract = append(step.Extract, campaign.Extraction{Name: e.Name, Source: e.Source, Path: e.Path})
		}
		for _, c := range sc.Checks {
			check := campaign.Check{Path: c.Path, Exists: c.Exists}
			if c.Equals != nil {
				equals := string(*c.Equals)
				check.Equals = &equals
			}
			step.Checks = append(step.Checks, check)
		}
		steps = append(steps, step)
	}
	return steps
}
