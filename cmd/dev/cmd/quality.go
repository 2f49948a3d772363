package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func qualityCmd(use, short, what string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("running " + what)
			if err := run(); err != nil {
				return fmt.Errorf("failed to run %s: %w", what, err)
			}
			return nil
		},
	}
}

// TestCmd runs the unit tests. Sensor drivers are exercised against the
// register emulator so no hardware is needed.
func TestCmd() *cobra.Command {
	return qualityCmd("test", "Run tests", "tests", test.Test)
}

func LintCmd() *cobra.Command {
	return qualityCmd("lint", "Run linting", "linting", test.Lint)
}

// IntegrationTestCmd runs the integration suite, which talks to a sensor on
// a real bus.
func IntegrationTestCmd() *cobra.Command {
	return qualityCmd("integration-test", "Run integration testing", "integration testing", test.Integ)
}

// CheckCmd runs linting followed by the unit tests.
func CheckCmd() *cobra.Command {
	return qualityCmd("check", "Run linting and tests", "checks", func() error {
		if err := test.Lint(); err != nil {
			return err
		}
		return test.Test()
	})
}
