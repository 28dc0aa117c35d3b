package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/caseconf"
	"github.com/aretw0/caseconf/internal/cli"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect exported snapshots",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the snapshot IDs in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newCommandEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ids, err := engine.Manager().Store().List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		engine, cleanup, err := newCommandEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		snap, err := engine.Manager().Snapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		fmt.Fprint(cmd.OutOrStdout(), cli.FormatSnapshot(snap))
		return nil
	},
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff <old-id> <new-id>",
	Short: "Show the values that differ between two stored snapshots",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := newCommandEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		oldSnap, err := engine.Manager().Snapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		newSnap, err := engine.Manager().Snapshot(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), cli.FormatDiff(domain.Diff(oldSnap, newSnap)))
		return nil
	},
}

func newCommandEngine(cmd *cobra.Command) (engine *caseconf.Engine, cleanup cli.Cleanup, err error) {
	opts := optionsFrom(cmd)
	logger, err := cli.NewLogger(opts)
	if err != nil {
		return nil, nil, err
	}
	return cli.NewEngine(opts, logger)
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotListCmd, snapshotShowCmd, snapshotDiffCmd)
	snapshotShowCmd.Flags().Bool("json", false, "Print the snapshot as JSON")
}
