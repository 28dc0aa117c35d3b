package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aretw0/caseconf/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "caseconf",
	Short: "caseconf assembles valid model cases through a staged wizard",
	Long: `caseconf walks you through the stages of a blueprint, narrowing the legal values of
every variable as you choose, and exports the finished case as a snapshot.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("spec", "", "Built-in blueprint name or path to a .yaml/.hcl blueprint (default cesm)")
	f.String("log-level", "", "Log level: debug, info, warn or error (logs go to stderr)")
	f.String("log-format", "text", "Log format: text or json")
	f.String("store", cli.StoreMemory, "Snapshot store: memory, file or redis")
	f.String("dir", "", "Snapshot directory for the file store (default .caseconf/snapshots)")
	f.String("format", "json", "Snapshot file format for the file store: json or yaml")
	f.String("redis-addr", "", "Redis address for the redis store")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database")
	f.Duration("snapshot-ttl", 0, "Expiration of snapshots in redis (0 keeps them)")
	f.Duration("lock-ttl", 30*time.Second, "Expiration of the export lock in redis")
	f.StringSlice("redact", nil, "Regular expressions of variable keys masked in stored snapshots")
}

// optionsFrom reads the persistent flags. The encryption key comes from the environment
// so that it never shows up in process listings.
func optionsFrom(cmd *cobra.Command) cli.Options {
	f := cmd.Flags()
	opts := cli.Options{EncryptionKey: os.Getenv(cli.EncryptionKeyEnv)}
	opts.Spec, _ = f.GetString("spec")
	opts.LogLevel, _ = f.GetString("log-level")
	opts.LogFormat, _ = f.GetString("log-format")
	opts.Store, _ = f.GetString("store")
	opts.Dir, _ = f.GetString("dir")
	opts.Format, _ = f.GetString("format")
	opts.RedisAddr, _ = f.GetString("redis-addr")
	opts.RedisPassword, _ = f.GetString("redis-password")
	opts.RedisDB, _ = f.GetInt("redis-db")
	opts.SnapshotTTL, _ = f.GetDuration("snapshot-ttl")
	opts.LockTTL, _ = f.GetDuration("lock-ttl")
	opts.Redact, _ = f.GetStringSlice("redact")
	return opts
}
