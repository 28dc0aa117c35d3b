package main

import (
	"fmt"

	"github.com/aretw0/caseconf"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [blueprint]",
	Short: "Export the constraint graph visualization",
	Long:  `Outputs a Mermaid flowchart of the variables and the rules that link them.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, _ := cmd.Flags().GetString("spec")
		if len(args) > 0 {
			spec = args[0]
		}

		bp, err := caseconf.LoadBlueprint(spec)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), bp.Graph().Mermaid(nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
