package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/caseconf"
	"github.com/aretw0/caseconf/pkg/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [blueprint]",
	Short: "Check a blueprint for structural errors",
	Long: `Parses and compiles the blueprint: unknown fields, undeclared keys, cyclic rules and
stage ordering violations are reported with their location.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, _ := cmd.Flags().GetString("spec")
		if len(args) > 0 {
			spec = args[0]
		}

		bp, err := caseconf.LoadBlueprint(spec)
		if err != nil {
			if details := schema.ValidationErrors(err); len(details) > 0 {
				for _, d := range details {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", d)
				}
				return errors.New("blueprint is invalid")
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Blueprint %q is valid: %d variables, %d stages, %d rules ✅\n",
			bp.Name(), len(bp.Variables()), len(bp.Stages()), len(bp.Graph().Rules()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
