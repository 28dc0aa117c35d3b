package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/caseconf/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configuration wizard",
	Long: `Opens a session on the blueprint and walks it stage by stage. On a terminal the
full-screen wizard is used; with --plain or when input is piped, plain line prompts are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := optionsFrom(cmd)
		sessionID, _ := cmd.Flags().GetString("session")
		plain, _ := cmd.Flags().GetBool("plain")
		quiet, _ := cmd.Flags().GetBool("quiet")

		logger, err := cli.NewLogger(opts)
		if err != nil {
			return err
		}
		engine, cleanup, err := cli.NewEngine(opts, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		snap, err := cli.RunWizard(ctx, engine, cli.RunOptions{SessionID: sessionID, Plain: plain, Quiet: quiet}, os.Stdin, os.Stdout)
		if err != nil || snap == nil {
			return err
		}
		fmt.Print(cli.FormatSnapshot(*snap))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", "", "Session ID (generated when empty)")
	runCmd.Flags().Bool("plain", false, "Use line prompts even on a terminal")
	runCmd.Flags().BoolP("quiet", "q", false, "Skip the banner")

	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
