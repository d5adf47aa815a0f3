package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fixturesnap/fixturesnap/internal/config"
	"github.com/fixturesnap/fixturesnap/internal/fingerprint"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether fixtures are stale",
	Long: `
Compare the recorded fingerprint against the current state of all tracked
input files and the fixture directory, and report whether the next
generate run would rebuild.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		tracker := fingerprint.New(cfg)
		stale, err := tracker.ShouldRebuild()
		if err != nil {
			return err
		}

		fmt.Printf("Tracked inputs: %d\n", len(cfg.FilesToCheck))
		for _, path := range cfg.FilesToCheck {
			fmt.Printf("  - %s\n", path)
		}
		fmt.Printf("Fixtures directory: %s\n", cfg.FixturesDir)
		fmt.Printf("Fingerprint file: %s\n", cfg.FingerprintPath())
		fmt.Println()

		if stale {
			color.Yellow("⚠️  Fixtures are stale, next generate will rebuild")
		} else {
			color.Green("✓ Fixtures are up to date")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
