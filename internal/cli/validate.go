package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/rampant/internal/config"
)

var errInvalidConfig = errors.New("configuration is invalid")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a campaign configuration without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	console := newConsole(cmd)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		var errs *config.ValidationErrors
		if !errors.As(err, &errs) {
			return err
		}

		problems := make([]string, 0, len(errs.Errors))
		for _, e := range errs.Errors {
			if e.Field == "" {
				problems = append(problems, e.Message)
				continue
			}
			problems = append(problems, fmt.Sprintf("%s: %s", e.Field, e.Message))
		}
		console.PrintErrors(fmt.Sprintf("%s is invalid", path), problems)
		return errInvalidConfig
	}

	var missingSteps []string
	for _, name := range cfg.ScenarioNames() {
		if len(cfg.Scenarios[name].Steps) == 0 {
			missingSteps = append(missingSteps, name)
		}
	}
	if len(missingSteps) > 0 {
		console.PrintErrors(fmt.Sprintf("%s can be planned but not run: scenarios without steps", path), missingSteps)
		return errInvalidConfig
	}

	console.PrintSuccess(fmt.Sprintf("%s is valid (%d scenarios)", path, len(cfg.Scenarios)))
	return nil
}
