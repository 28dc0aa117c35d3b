package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/caseconf"
	"github.com/aretw0/caseconf/pkg/adapters/file"
	"github.com/aretw0/caseconf/pkg/adapters/memory"
	"github.com/aretw0/caseconf/pkg/adapters/redis"
	"github.com/aretw0/caseconf/pkg/persistence/middleware"
	"github.com/aretw0/caseconf/pkg/ports"
)

// Cleanup releases the resources opened by NewEngine.
type Cleanup func() error

// NewEngine initializes an engine with the blueprint, snapshot store and persistence
// middleware selected by opts. extra options are applied last.
func NewEngine(opts Options, logger *slog.Logger, extra ...caseconf.Option) (*caseconf.Engine, Cleanup, error) {
	store, locker, cleanup, err := createStore(opts)
	if err != nil {
		return nil, nil, err
	}

	mws, err := createMiddleware(opts)
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	store = middleware.Chain(store, mws...)

	engineOpts := []caseconf.Option{
		caseconf.WithLogger(logger),
		caseconf.WithStore(store),
	}
	if locker != nil {
		engineOpts = append(engineOpts, caseconf.WithLocker(locker, opts.LockTTL))
	}
	engineOpts = append(engineOpts, extra...)

	engine, err := caseconf.New(opts.Spec, engineOpts...)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	logger.Debug("Engine ready", "blueprint", engine.Name, "store", opts.Store)
	return engine, cleanup, nil
}

func createStore(opts Options) (ports.SnapshotStore, ports.DistributedLocker, Cleanup, error) {
	noop := func() error { return nil }
	switch opts.Store {
	case "", StoreMemory:
		return memory.NewStore(), nil, noop, nil
	case StoreFile:
		var fileOpts []file.Option
		if opts.Format != "" {
			fileOpts = append(fileOpts, file.WithFormat(file.Format(opts.Format)))
		}
		return file.New(opts.Dir, fileOpts...), nil, noop, nil
	case StoreRedis:
		if opts.RedisAddr == "" {
			return nil, nil, nil, errors.New("--redis-addr is required for the redis store")
		}
		store := redis.New(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, redis.WithTTL(opts.SnapshotTTL))
		locker := redis.NewLocker(store.Client(), "caseconf:")
		return store, locker, store.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q (want %s, %s or %s)", opts.Store, StoreMemory, StoreFile, StoreRedis)
	}
}

// createMiddleware redacts first so that masked values are what gets encrypted.
func createMiddleware(opts Options) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(opts.Redact) > 0 {
		mw, err := middleware.NewRedactMiddleware(opts.Redact...)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if opts.EncryptionKey != "" {
		key, err := hex.DecodeString(opts.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("%s must be hex-encoded: %w", EncryptionKeyEnv, err)
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}
