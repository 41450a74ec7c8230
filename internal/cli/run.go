package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/rampant/internal/campaign"
	"github.com/wesleyorama2/rampant/internal/config"
	"github.com/wesleyorama2/rampant/internal/output"
)

// errPassesFailed is returned when the campaign ran but some minion passes failed.
var errPassesFailed = errors.New("campaign completed with failed minion passes")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load campaign",
		Long: `Start minions against HTTP services following the execution profile of
each scenario. Interrupting the command stops scheduling and lets running
minions finish within the graceful stop.

Config file mode:
  rampant run --config campaign.yaml

Quick CLI mode (single scenario):
  rampant run --url https://api.example.com/health \
    --minions 50 --profile regular --period 1s --per-launch 5`,
		Args: cobra.NoArgs,
		RunE: runCampaign,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file")
	cmd.Flags().String("url", "", "URL to request (alternative to --config)")
	cmd.Flags().Int("minions", 10, "Number of minions (quick mode)")
	cmd.Flags().Float64("speed", 0, "Speed factor (default: the configuration's, or 1)")
	cmd.Flags().Duration("max-duration", 0, "Stop scheduling minions after this duration")
	cmd.Flags().Duration("graceful-stop", 0, "Time given to running minions once the campaign stops (0 interrupts them at once)")
	cmd.Flags().Bool("json", false, "Output results as JSON")
	cmd.Flags().String("html", "", "Write an HTML report to this file")
	addProfileFlags(cmd)
	return cmd
}

func runCampaign(cmd *cobra.Command, args []string) error {
	cfg, err := campaignConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd)
	defer logger.Sync()

	c, err := config.BuildCampaign(cfg, logger)
	if err != nil {
		return err
	}

	runner, err := campaign.NewRunner(c, campaign.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting campaign",
		zap.String("campaign", c.Name),
		zap.Int("scenarios", len(c.Scenarios)),
		zap.Float64("speed_factor", c.SpeedFactor))

	result, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("running campaign: %w", err)
	}

	if htmlPath, _ := cmd.Flags().GetString("html"); htmlPath != "" {
		plans := make([]*output.PlanReport, 0, len(c.Scenarios))
		for _, sc := range c.Scenarios {
			plans = append(plans, output.NewPlanReport(sc.Name, sc.Profile, sc.Minions, c.SpeedFactor))
		}
		if err := output.GenerateHTML(result, plans, htmlPath); err != nil {
			return err
		}
		logger.Info("HTML report generated", zap.String("path", htmlPath))
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		if err := output.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		newConsole(cmd).PrintSummary(result)
	}

	for _, sc := range result.Scenarios {
		if sc.Failed > 0 {
			return errPassesFailed
		}
	}
	return nil
}

// campaignConfigFromFlags loads the configuration file, or builds a single
// scenario campaign from the quick mode flags, then applies the overrides.
func campaignConfigFromFlags(cmd *cobra.Command) (*config.CampaignConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	url, _ := cmd.Flags().GetString("url")

	var cfg *config.CampaignConfig
	switch {
	case configFile != "":
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = config.ParseConfig(data, configFile)
		if err != nil {
			return nil, err
		}
	case url != "":
		pc, err := profileConfigFromFlags(cmd)
		if err != nil {
			return nil, err
		}
		minions, _ := cmd.Flags().GetInt("minions")
		cfg = buildConfigFromCLI(url, minions, pc)
	default:
		return nil, fmt.Errorf("either --config or --url is required")
	}

	config.ApplyDefaults(cfg)

	speed, _ := cmd.Flags().GetFloat64("speed")
	if cmd.Flags().Changed("speed") {
		cfg.SpeedFactor = speed
	}
	if cmd.Flags().Changed("max-duration") {
		d, _ := cmd.Flags().GetDuration("max-duration")
		cfg.MaxDuration = config.Duration(d)
	}
	if cmd.Flags().Changed("graceful-stop") {
		d, _ := cmd.Flags().GetDuration("graceful-stop")
		gracefulStop := config.Duration(d)
		cfg.GracefulStop = &gracefulStop
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildConfigFromCLI builds a single scenario campaign requesting url.
func buildConfigFromCLI(url string, minions int, pc *config.ProfileConfig) *config.CampaignConfig {
	return &config.CampaignConfig{
		Name:        "cli",
		Description: fmt.Sprintf("Campaign generated from CLI flags for %s", url),
		Scenarios: map[string]*config.ScenarioConfig{
			"cli": {
				Minions: minions,
				Profile: *pc,
				Steps: []config.StepConfig{
					{
						Name:   "cli-request",
						Method: http.MethodGet,
						URL:    url,
					},
				},
			},
		},
	}
}
