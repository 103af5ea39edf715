package main

import (
	"fmt"
	"os"

	"papertweets/arxiv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arxivid URL...",
	Short: "Print the arXiv id linked by each URL",
	Example: `  arxivid https://arxiv.org/pdf/1602.02218v2.pdf
  arxivid http://arxiv.org/abs/1603.01547 https://example.com`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		missing := 0
		for _, u := range args {
			if id, ok := arxiv.ExtractID(u); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", u, id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t-\n", u)
				missing++
			}
		}
		if missing > 0 {
			return fmt.Errorf("%d of %d URLs do not link an arXiv paper", missing, len(args))
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
