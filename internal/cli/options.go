// Package cli wires the caseconf command line: engine construction from flags, signal
// handling and the interactive wizard.
package cli

import (
	"time"
)

// Store backends accepted by Options.Store.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// EncryptionKeyEnv holds the hex-encoded AES-256 key that encrypts persisted snapshots.
const EncryptionKeyEnv = "CASECONF_ENCRYPTION_KEY"

// Options carries the flags shared by every command.
type Options struct {
	Spec      string
	LogLevel  string
	LogFormat string

	Store         string
	Dir           string
	Format        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration
	LockTTL       time.Duration

	Redact        []string
	EncryptionKey string
}

// RunOptions configures the interactive wizard.
type RunOptions struct {
	SessionID string
	Plain     bool
	Quiet     bool
}
