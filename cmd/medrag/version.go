package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calque-ai/medrag/pkg/app"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the medrag version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "medrag %s\n", app.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
