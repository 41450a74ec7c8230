package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/rampant/internal/config"
	"github.com/wesleyorama2/rampant/internal/output"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the starting lines of execution profiles",
		Long: `Drain execution profiles and print when each group of minions would start.
Nothing is sent to the target services.

Config file mode:
  rampant plan --config campaign.yaml --scenario browse

Quick CLI mode (single profile):
  rampant plan --profile stages --minions 200 \
    --stages "25:30s:1m,75:1m:5m" --completion hard`,
		Args: cobra.NoArgs,
		RunE: runPlan,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file")
	cmd.Flags().String("scenario", "", "Only plan this scenario of the configuration")
	cmd.Flags().Int("minions", 10, "Number of minions (quick mode)")
	cmd.Flags().Float64("speed", 0, "Speed factor (default: the configuration's, or 1)")
	cmd.Flags().Bool("json", false, "Output the plan as JSON")
	addProfileFlags(cmd)
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	reports, err := planReports(cmd)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return output.WriteJSON(cmd.OutOrStdout(), reports)
	}

	console := newConsole(cmd)
	for _, report := range reports {
		console.PrintPlan(report)
	}
	return nil
}

// planReports builds one report per planned scenario.
func planReports(cmd *cobra.Command) ([]*output.PlanReport, error) {
	configFile, _ := cmd.Flags().GetString("config")
	scenario, _ := cmd.Flags().GetString("scenario")
	speed, _ := cmd.Flags().GetFloat64("speed")

	if speed < 0 {
		return nil, fmt.Errorf("--speed must be positive, got %v", speed)
	}

	if configFile != "" {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if speed == 0 {
			speed = cfg.SpeedFactor
		}

		var reports []*output.PlanReport
		for _, name := range cfg.ScenarioNames() {
			if scenario != "" && name != scenario {
				continue
			}
			sc := cfg.Scenarios[name]
			p, err := config.BuildProfile(&sc.Profile)
			if err != nil {
				return nil, fmt.Errorf("scenario '%s': %w", name, err)
			}
			reports = append(reports, output.NewPlanReport(name, p, sc.Minions, speed))
		}
		if len(reports) == 0 {
			return nil, fmt.Errorf("scenario '%s' not found in %s", scenario, configFile)
		}
		return reports, nil
	}

	pc, err := profileConfigFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	if pc.Type == "" {
		return nil, fmt.Errorf("either --config or --profile is required")
	}

	minions, _ := cmd.Flags().GetInt("minions")
	if minions < 0 {
		return nil, fmt.Errorf("--minions must not be negative, got %d", minions)
	}
	if speed == 0 {
		speed = 1.0
	}

	p, err := config.BuildProfile(pc)
	if err != nil {
		return nil, err
	}
	return []*output.PlanReport{output.NewPlanReport(pc.Type, p, minions, speed)}, nil
}
