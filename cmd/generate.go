package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fixturesnap/fixturesnap/internal/builder"
	"github.com/fixturesnap/fixturesnap/internal/config"
	"github.com/fixturesnap/fixturesnap/internal/database"
)

var generateForce bool

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Regenerate fixture files if tracked inputs changed",
	Long: `
Rebuild the fixture set when any tracked input file or the fixture
directory's contents changed since the last recorded build.

Use --force to rebuild regardless of the recorded fingerprint. Deleting
the fingerprint file has the same effect.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := cfg.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to create directories: %w", err)
		}

		dbURL, err := cfg.GetDatabaseURL()
		if err != nil {
			return err
		}

		ctx := context.Background()

		adapter := database.New(cfg.Database.Provider)
		if err := adapter.Connect(ctx, dbURL); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer adapter.Close()

		if err := adapter.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		return builder.New(cfg, adapter).Generate(ctx, generateForce)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "Rebuild even if nothing changed")
}
