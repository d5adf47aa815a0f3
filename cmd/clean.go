package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fixturesnap/fixturesnap/internal/config"
	"github.com/fixturesnap/fixturesnap/internal/fingerprint"
)

var cleanFingerprintOnly bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete fixture files and the recorded fingerprint",
	Long: `
Delete generated fixture files and the recorded fingerprint so the next
generate run rebuilds from scratch.

Use --fingerprint-only to keep the fixture files and only force the next
build.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := fingerprint.New(cfg).Clear(); err != nil {
			return fmt.Errorf("failed to remove fingerprint: %w", err)
		}

		if cleanFingerprintOnly {
			color.Green("✓ Fingerprint removed, next generate will rebuild")
			return nil
		}

		matches, err := filepath.Glob(filepath.Join(cfg.FixturesDir, "*.yml"))
		if err != nil {
			return err
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}

		color.Green("✓ Removed %d fixture file(s) and the fingerprint", len(matches))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanFingerprintOnly, "fingerprint-only", false, "Only remove the fingerprint file")
}
