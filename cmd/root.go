package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	Version = "1.0.2"
)

var rootCmd = &cobra.Command{
	Use:   "fixturesnap",
	Short: "Regenerate test fixtures from your database, only when inputs changed",
	Long: `
fixturesnap snapshots database tables into static YAML fixture files so
integration tests load fast, deterministic data instead of re-running
factories.

It fingerprints your factory scripts, schema and config; when nothing
changed, a build is a no-op. When something did, it wipes the tracked
tables, runs your population code against the live schema, names the
resulting records and writes one fixture file per table.`,

	Run: func(cmd *cobra.Command, args []string) {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Printf("fixturesnap version %s\n", Version)
			os.Exit(0)
		}
		cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./fixturesnap.config.json)")
	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env")
		godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName("fixturesnap.config")
	}

	viper.AutomaticEnv()

	viper.ReadInConfig()
}
