package main

import (
	"fmt"

	"github.com/aretw0/caseconf"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of caseconf",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "caseconf version %s\n", caseconf.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
