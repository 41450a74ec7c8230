package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/rampant/internal/config"
)

// addProfileFlags registers the flags describing an execution profile
// without a configuration file.
func addProfileFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("profile", "", "Profile type: immediate, regular, accelerating, progressive-volume, time-frame, stages")
	flags.Duration("period", 0, "Period between launches (regular, progressive-volume, time-frame)")
	flags.Int("per-launch", 0, "Minions per launch (regular, accelerating)")
	flags.Duration("start-period", 0, "First period (accelerating)")
	flags.Float64("accelerator", 0, "Divisor applied to the period after each launch (accelerating)")
	flags.Duration("min-period", 0, "Lower bound of the period (accelerating)")
	flags.Int("at-start", 0, "Minions of the first launch (progressive-volume)")
	flags.Float64("multiplier", 0, "Launch size factor (progressive-volume)")
	flags.Int("max-per-launch", 0, "Upper bound of a launch (progressive-volume)")
	flags.Duration("time-frame", 0, "Window to spread all minions over (time-frame)")
	flags.String("stages", "", "Stages in format 'percentage:rampUp:total[:resolution],...' (stages)")
	flags.String("completion", "", "Completion of stages: graceful or hard")
}

// profileConfigFromFlags reads the profile flags into a ProfileConfig.
func profileConfigFromFlags(cmd *cobra.Command) (*config.ProfileConfig, error) {
	flags := cmd.Flags()

	profileType, _ := flags.GetString("profile")
	period, _ := flags.GetDuration("period")
	perLaunch, _ := flags.GetInt("per-launch")
	startPeriod, _ := flags.GetDuration("start-period")
	accelerator, _ := flags.GetFloat64("accelerator")
	minPeriod, _ := flags.GetDuration("min-period")
	atStart, _ := flags.GetInt("at-start")
	multiplier, _ := flags.GetFloat64("multiplier")
	maxPerLaunch, _ := flags.GetInt("max-per-launch")
	timeFrame, _ := flags.GetDuration("time-frame")
	stages, _ := flags.GetString("stages")
	completion, _ := flags.GetString("completion")

	pc := &config.ProfileConfig{
		Type:                profileType,
		Period:              config.Duration(period),
		MinionsPerLaunch:    perLaunch,
		StartPeriod:         config.Duration(startPeriod),
		Accelerator:         accelerator,
		MinPeriod:           config.Duration(minPeriod),
		MinionsAtStart:      atStart,
		Multiplier:          multiplier,
		MaxMinionsPerLaunch: maxPerLaunch,
		TimeFrame:           config.Duration(timeFrame),
		Completion:          completion,
	}

	if stages != "" {
		parsed, err := parseStages(stages)
		if err != nil {
			return nil, fmt.Errorf("invalid stages format: %w", err)
		}
		pc.Stages = parsed
		if pc.Type == "" {
			pc.Type = config.ProfileStages
		}
	}

	return pc, nil
}

// parseStages parses stages from CLI format "50:10s:1m,50:10s:30s:250ms"
func parseStages(stagesStr string) ([]config.StageConfig, error) {
	var stages []config.StageConfig

	parts := strings.Split(stagesStr, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		fields := strings.Split(part, ":")
		if len(fields) != 3 && len(fields) != 4 {
			return nil, fmt.Errorf("stage %d: expected 'percentage:rampUp:total[:resolution]' format, got '%s'", i+1, part)
		}

		percentage, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid percentage '%s': %w", i+1, fields[0], err)
		}

		durations := make([]time.Duration, len(fields)-1)
		for j, field := range fields[1:] {
			d, err := config.ParseDurationString(field)
			if err != nil {
				return nil, fmt.Errorf("stage %d: invalid duration '%s': %w", i+1, field, err)
			}
			durations[j] = d
		}

		stage := config.StageConfig{
			Percentage: percentage,
			RampUp:     config.Duration(durations[0]),
			Total:      config.Duration(durations[1]),
		}
		if len(durations) == 3 {
			stage.Resolution = config.Duration(durations[2])
		}
		stages = append(stages, stage)
	}

	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}

	return stages, nil
}
