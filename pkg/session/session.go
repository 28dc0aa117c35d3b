package session

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/caseconf/internal/logging"
	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/propagation"
	"github.com/aretw0/caseconf/pkg/registry"
	"github.com/aretw0/caseconf/pkg/stage"
)

// Session is one configurator instance: its own registry, propagation engine and stage
// gate over a shared compiled blueprint.
//
// A Session is synchronous and not safe for concurrent use. Every mutating call either
// completes with exactly one Batch delivered to subscribers or is rejected with the state
// unchanged. Use a Manager to share sessions between goroutines.
type Session struct {
	id     string
	bp     *blueprint.Compiled
	reg    *registry.Registry
	engine *propagation.Engine
	gate   *stage.Gate

	hooks  domain.Hooks
	logger *slog.Logger
	clock  func() time.Time

	subs       map[uint64]func(domain.Batch)
	nextSub    uint64
	seq        uint64
	broken     error
	delivering bool
}

type config struct {
	hooks     domain.Hooks
	logger    *slog.Logger
	maxRounds int
	clock     func() time.Time
}

// Option configures a Session.
type Option func(*config)

// WithLogger sets the logger shared by the session and its engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithHooks registers lifecycle hooks. Multiple calls are merged.
func WithHooks(h domain.Hooks) Option {
	return func(c *config) {
		c.hooks = c.hooks.Merge(h)
	}
}

// WithMaxRounds overrides the propagation round cap.
func WithMaxRounds(n int) Option {
	return func(c *config) {
		c.maxRounds = n
	}
}

// WithClock overrides the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.clock = now
	}
}

// New starts a session: domains are computed from scratch and the first stage is entered.
func New(id string, bp *blueprint.Compiled, opts ...Option) (*Session, error) {
	cfg := config{logger: logging.NewNop(), clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}

	reg := bp.NewRegistry()
	gate, err := stage.New(bp.Stages())
	if err != nil {
		return nil, err
	}
	logger := cfg.logger.With("session", id)

	s := &Session{
		id:  id,
		bp:  bp,
		reg: reg,
		engine: propagation.New(reg, bp.Graph(),
			propagation.WithMaxRounds(cfg.maxRounds),
			propagation.WithLogger(logger),
		),
		gate:   gate,
		hooks:  cfg.hooks,
		logger: logger,
		clock:  cfg.clock,
		subs:   make(map[uint64]func(domain.Batch)),
	}

	if _, err := s.engine.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize session %s: %w", id, err)
	}
	if _, _, err := s.enter(0); err != nil {
		return nil, fmt.Errorf("failed to enter first stage: %w", err)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Blueprint returns the compiled blueprint the session was created from.
func (s *Session) Blueprint() *blueprint.Compiled { return s.bp }

// Seq returns the sequence number of the last emitted batch.
func (s *Session) Seq() uint64 { return s.seq }

// Broken returns the defect that poisoned the session, if any.
func (s *Session) Broken() error { return s.broken }

// Subscribe registers fn to receive every batch. The returned function cancels it.
func (s *Session) Subscribe(fn func(domain.Batch)) (cancel func()) {
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	return func() { delete(s.subs, id) }
}

// SetValue validates raw against the kind and current domain of key, commits it and
// propagates. It fails with StageLocked for variables of a locked stage and with
// DomainViolation for illegal values; state is untouched on failure.
func (s *Session) SetValue(key string, raw domain.Value) (domain.Batch, error) {
	fail := func(err error) (domain.Batch, error) {
		return domain.Batch{}, s.reject(domain.OpSet, key, raw, err)
	}
	if err := s.mutable(); err != nil {
		return fail(err)
	}
	kind, err := s.reg.Kind(key)
	if err != nil {
		return fail(err)
	}
	if err := s.gate.CheckWritable(key); err != nil {
		return fail(err)
	}
	value, err := kind.Parse(string(raw))
	if err != nil {
		current, _ := s.reg.Domain(key)
		return fail(&domain.DomainViolationError{Key: key, Value: raw, Domain: current, Reasons: []string{err.Error()}})
	}

	res, err := s.engine.Assign(key, value)
	if err != nil {
		return fail(err)
	}
	return s.commit(domain.OpSet, key, res.Stats, res.Deltas)
}

// Unset clears the value of key and propagates.
func (s *Session) Unset(key string) (domain.Batch, error) {
	fail := func(err error) (domain.Batch, error) {
		return domain.Batch{}, s.reject(domain.OpUnset, key, domain.Unset, err)
	}
	if err := s.mutable(); err != nil {
		return fail(err)
	}
	if !s.reg.Has(key) {
		return fail(fmt.Errorf("%w: %s", domain.ErrUnknownVariable, key))
	}
	if err := s.gate.CheckWritable(key); err != nil {
		return fail(err)
	}

	res, err := s.engine.Retract(key)
	if err != nil {
		return fail(err)
	}
	return s.commit(domain.OpUnset, key, res.Stats, res.Deltas)
}

// Advance completes the active stage and enters the next one, auto-selecting single
// options and applying defaults there.
func (s *Session) Advance() (domain.Batch, error) {
	fail := func(err error) (domain.Batch, error) {
		return domain.Batch{}, s.reject(domain.OpAdvance, "", domain.Unset, err)
	}
	if err := s.mutable(); err != nil {
		return fail(err)
	}
	prev := s.gate.Active()
	if err := s.gate.Advance(s.reg); err != nil {
		return fail(err)
	}

	res, picked, err := s.enter(s.gate.Active())
	if err != nil {
		s.undoEnter(prev, picked)
		return fail(err)
	}
	return s.commit(domain.OpAdvance, "", res.Stats, res.Deltas)
}

// undoEnter retracts the selections of a failed stage entry and makes stage prev active
// again.
func (s *Session) undoEnter(prev int, picked []string) {
	if len(picked) > 0 {
		if _, err := s.engine.Retract(picked...); err != nil {
			s.logger.Error("failed to retract auto selections", "keys", picked, "error", err)
		}
	}
	_ = s.gate.Rewind(prev)
}

// ResetStage clears every value of stage i and later stages, restores downstream domains
// and makes stage i active again.
func (s *Session) ResetStage(i int) (domain.Batch, error) {
	fail := func(err error) (domain.Batch, error) {
		return domain.Batch{}, s.reject(domain.OpReset, "", domain.Unset, err)
	}
	if err := s.mutable(); err != nil {
		return fail(err)
	}
	if _, err := s.gate.Stage(i); err != nil {
		return fail(err)
	}

	res, err := s.engine.Retract(s.gate.VarsFrom(i)...)
	if err != nil {
		return fail(err)
	}
	_ = s.gate.Rewind(i)
	return s.commit(domain.OpReset, "", res.Stats, res.Deltas)
}

// enter applies automatic selections to stage i and returns the keys it assigned, also
// when a later assignment fails. Nothing happens past the last stage.
func (s *Session) enter(i int) (propagation.Result, []string, error) {
	var acc propagation.Result
	def, err := s.gate.Stage(i)
	if err != nil {
		return acc, nil, nil
	}

	var picked []string
	var deltas [][]domain.Delta
	for _, key := range def.Vars {
		v, _ := s.reg.Variable(key)
		if v.Value.IsSet() {
			continue
		}
		pick := domain.Unset
		if only, ok := v.Current.Single(); ok && def.AutoSelect {
			pick = only
		} else if v.Default.IsSet() && v.Current.Contains(v.Default) {
			pick = v.Default
		}
		if !pick.IsSet() {
			continue
		}

		res, err := s.engine.Assign(key, pick)
		if err != nil {
			return acc, picked, err
		}
		picked = append(picked, key)
		deltas = append(deltas, res.Deltas)
		acc.Stats.Rounds += res.Stats.Rounds
		acc.Stats.Evaluations += res.Stats.Evaluations
		acc.Stats.Duration += res.Stats.Duration
		s.logger.Debug("auto selected", "key", key, "value", pick)
	}
	acc.Deltas = s.merge(deltas...)
	return acc, picked, nil
}

// merge folds consecutive delta lists into one net delta per variable.
func (s *Session) merge(lists ...[]domain.Delta) []domain.Delta {
	if len(lists) == 1 {
		return lists[0]
	}
	net := make(map[string]domain.Delta)
	for _, list := range lists {
		for _, d := range list {
			if prev, ok := net[d.Key]; ok {
				prev.NewDomain = d.NewDomain
				prev.NewValue = d.NewValue
				net[d.Key] = prev
				continue
			}
			net[d.Key] = d
		}
	}

	g := s.bp.Graph()
	keys := slices.SortedFunc(maps.Keys(net), func(a, b string) int { return g.Rank(a) - g.Rank(b) })
	var out []domain.Delta
	for _, key := range keys {
		if d := net[key]; d.DomainChanged() || d.ValueChanged() {
			out = append(out, d)
		}
	}
	return out
}

// mutable guards every mutating call.
func (s *Session) mutable() error {
	if s.delivering {
		return domain.ErrReentrant
	}
	return s.usable()
}

func (s *Session) usable() error {
	if s.broken != nil {
		return fmt.Errorf("%w: %v", domain.ErrSessionBroken, s.broken)
	}
	return nil
}

func (s *Session) commit(op domain.Op, key string, stats domain.PropagationStats, deltas []domain.Delta) (domain.Batch, error) {
	if _, err := s.gate.Reconcile(s.reg); err != nil {
		return domain.Batch{}, err
	}
	if deltas == nil {
		deltas = []domain.Delta{}
	}

	s.seq++
	b := domain.Batch{
		Session: s.id,
		Seq:     s.seq,
		Op:      op,
		Key:     key,
		Stage:   s.gate.Active(),
		Deltas:  deltas,
	}
	s.delivering = true
	defer func() { s.delivering = false }()
	for _, id := range slices.Sorted(maps.Keys(s.subs)) {
		if fn, ok := s.subs[id]; ok {
			fn(b)
		}
	}
	if s.hooks.OnBatch != nil {
		s.hooks.OnBatch(b, stats)
	}
	return b, nil
}

func (s *Session) reject(op domain.Op, key string, value domain.Value, err error) error {
	if domain.IsDefect(err) && s.broken == nil {
		s.broken = err
		s.logger.Error("session broken", "op", op, "key", key, "error", err)
	} else {
		s.logger.Info("rejected", "op", op, "key", key, "value", value, "error", err)
	}
	if s.hooks.OnReject != nil {
		s.hooks.OnReject(domain.Rejection{Session: s.id, Op: op, Key: key, Value: value, Err: err})
	}
	return err
}

// Value returns the current value of key.
func (s *Session) Value(key string) (domain.Value, error) {
	return s.reg.Value(key)
}

// Domain returns the current domain of key.
func (s *Session) Domain(key string) (domain.Domain, error) {
	return s.reg.Domain(key)
}

// Variable returns a read-only view of key.
func (s *Session) Variable(key string) (registry.Variable, error) {
	return s.reg.Variable(key)
}

// Variables returns every variable in declaration order.
func (s *Session) Variables() []registry.Variable {
	keys := s.reg.Keys()
	out := make([]registry.Variable, 0, len(keys))
	for _, key := range keys {
		v, _ := s.reg.Variable(key)
		out = append(out, v)
	}
	return out
}

// Explain lists why value is not currently legal for key.
func (s *Session) Explain(key string, value domain.Value) ([]string, error) {
	kind, err := s.reg.Kind(key)
	if err != nil {
		return nil, err
	}
	canon, err := kind.Parse(string(value))
	if err != nil {
		return []string{err.Error()}, nil
	}
	return s.engine.Explain(key, canon)
}

// IsStageComplete reports whether stages 0..i are fully set and stage i is not blocked.
func (s *Session) IsStageComplete(i int) (bool, error) {
	return s.gate.IsComplete(s.reg, i)
}

// ActiveStage returns the active stage index, or the number of stages once all were
// advanced past.
func (s *Session) ActiveStage() int {
	return s.gate.Active()
}

// Stages summarizes every stage.
func (s *Session) Stages() ([]stage.View, error) {
	return s.gate.Views(s.reg)
}

// Complete reports whether every stage is complete.
func (s *Session) Complete() bool {
	if s.gate.Len() == 0 {
		return true
	}
	ok, err := s.gate.IsComplete(s.reg, s.gate.Len()-1)
	return err == nil && ok
}

// ExportSnapshot returns the assignments of a finished configuration.
func (s *Session) ExportSnapshot() (domain.Snapshot, error) {
	if err := s.usable(); err != nil {
		return domain.Snapshot{}, err
	}
	if n := s.gate.Len(); n > 0 {
		if err := s.gate.Require(s.reg, n-1); err != nil {
			return domain.Snapshot{}, fmt.Errorf("cannot export: %w", err)
		}
	}
	id := fmt.Sprintf("%s-%d", s.id, s.seq)
	return domain.NewSnapshot(id, s.clock(), s.reg.Assignments()), nil
}
