package caseconf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/caseconf/internal/catalog"
	"github.com/aretw0/caseconf/internal/logging"
	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/observability"
	"github.com/aretw0/caseconf/pkg/ports"
	"github.com/aretw0/caseconf/pkg/schema"
	"github.com/aretw0/caseconf/pkg/session"
)

// Engine is the high-level entry point of the library. It binds one compiled blueprint to
// a session manager and its persistence.
type Engine struct {
	Name string

	blueprint *blueprint.Compiled
	manager   *session.Manager
	store     ports.SnapshotStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	hooks     domain.Hooks
	metrics   *observability.Metrics
	maxRounds int
	logger    *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithBlueprint uses an already compiled blueprint, bypassing spec resolution.
func WithBlueprint(bp *blueprint.Compiled) Option {
	return func(e *Engine) {
		e.blueprint = bp
	}
}

// WithStore persists exported snapshots.
func WithStore(store ports.SnapshotStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes snapshot exports across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithHooks registers lifecycle hooks on every session. Multiple calls are merged.
func WithHooks(h domain.Hooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(h)
	}
}

// WithMetrics records every session into m. Registering m is up to the caller.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMaxRounds overrides the propagation round cap of every session.
func WithMaxRounds(n int) Option {
	return func(e *Engine) {
		e.maxRounds = n
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes an Engine. spec names a built-in blueprint or a blueprint file; it is
// ignored when WithBlueprint is given.
func New(spec string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.blueprint == nil {
		bp, err := LoadBlueprint(spec)
		if err != nil {
			return nil, err
		}
		eng.blueprint = bp
	}
	eng.Name = eng.blueprint.Name()

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	eng.logger = eng.logger.With("blueprint", eng.Name)

	hooks := eng.hooks
	if eng.metrics != nil {
		hooks = hooks.Merge(eng.metrics.Hooks())
	}
	sessionOpts := []session.Option{session.WithHooks(hooks)}
	if eng.maxRounds > 0 {
		sessionOpts = append(sessionOpts, session.WithMaxRounds(eng.maxRounds))
	}

	mgrOpts := []session.ManagerOption{
		session.WithManagerLogger(eng.logger),
		session.WithSessionOptions(sessionOpts...),
	}
	if eng.store != nil {
		mgrOpts = append(mgrOpts, session.WithStore(eng.store))
	}
	if eng.locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(eng.locker, eng.lockTTL))
	}
	eng.manager = session.NewManager(eng.blueprint, mgrOpts...)

	return eng, nil
}

// LoadBlueprint resolves spec into a compiled blueprint. An empty spec selects the default
// built-in blueprint; a name without a path separator or extension selects a built-in one;
// anything else is read as a YAML or HCL file.
func LoadBlueprint(spec string) (*blueprint.Compiled, error) {
	if spec == "" {
		spec = catalog.Default
	}
	if _, ok := catalog.Source(spec); ok {
		return catalog.Load(spec)
	}
	if filepath.Ext(spec) == "" && !strings.ContainsRune(spec, os.PathSeparator) {
		if _, err := os.Stat(spec); err != nil {
			return nil, fmt.Errorf("unknown blueprint %q: not built in (have %v) and not a file", spec, catalog.Names())
		}
	}
	return schema.LoadFile(spec)
}

// Blueprint returns the compiled blueprint.
func (e *Engine) Blueprint() *blueprint.Compiled {
	return e.blueprint
}

// Manager returns the session manager, for adapters.
func (e *Engine) Manager() *session.Manager {
	return e.manager
}

// Open starts a session. An empty id is replaced by a generated one.
func (e *Engine) Open(ctx context.Context, id string) (string, error) {
	return e.manager.Open(ctx, id)
}

// Update runs fn with exclusive access to session id.
func (e *Engine) Update(ctx context.Context, id string, fn func(*session.Session) error) error {
	return e.manager.Update(ctx, id, fn)
}

// View runs fn with shared access to session id.
func (e *Engine) View(ctx context.Context, id string, fn func(*session.Session) error) error {
	return e.manager.View(ctx, id, fn)
}

// Export takes and persists the snapshot of a finished session.
func (e *Engine) Export(ctx context.Context, id string) (domain.Snapshot, error) {
	return e.manager.Export(ctx, id)
}

// Close discards a session.
func (e *Engine) Close(ctx context.Context, id string) error {
	return e.manager.Close(ctx, id)
}
