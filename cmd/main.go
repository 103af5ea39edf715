package main

import (
	"log"

	"papertweets/secrets"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFiles []string
)

var rootCmd = &cobra.Command{
	Use:   "papertweets",
	Short: "Collect arXiv papers shared on Twitter",
	Long: `papertweets follows a set of Twitter accounts, keeps every tweet that
links to an arXiv paper along with the paper's metadata, and serves the
collection as a paginated website.

Example usage:
  papertweets migrate                 # Create or update the schema
  papertweets refresh                 # Pull new tweets once and exit
  papertweets serve                   # Run the website
  papertweets rate-limits             # Show remaining Twitter API quota`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return secrets.Load(envFiles...)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files with credentials (default is ./.env)")

	rootCmd.AddCommand(serveCmd, refreshCmd, migrateCmd, rateLimitsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}
