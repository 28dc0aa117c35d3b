package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStructural is returned at setup time for duplicate declarations, cyclic rule sets
	// and other blueprint defects. A session cannot be opened on a structurally invalid blueprint.
	ErrStructural = errors.New("structural configuration error")

	// ErrDomainViolation is returned when a value is not in the variable's current domain.
	ErrDomainViolation = errors.New("domain violation")

	// ErrStageLocked is returned when mutating a variable of a stage that is not reachable yet.
	ErrStageLocked = errors.New("stage locked")

	// ErrStageIncomplete is returned when advancing past, or exporting, an incomplete stage.
	ErrStageIncomplete = errors.New("stage incomplete")

	// ErrNonConvergence signals that propagation exceeded its round cap. It indicates a rule
	// that is not pure or deterministic.
	ErrNonConvergence = errors.New("propagation did not converge")

	// ErrRuleDefect signals a rule that panicked or restricted a variable it does not declare.
	ErrRuleDefect = errors.New("rule defect")

	// ErrSessionBroken is returned by mutating calls on a session that previously hit an engine defect.
	ErrSessionBroken = errors.New("session broken by engine defect")

	// ErrReentrant is returned by mutating calls made from a subscriber while a batch is
	// being delivered.
	ErrReentrant = errors.New("mutation during batch delivery")

	// ErrUnknownVariable is returned when a key was never declared.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrUnknownStage is returned for a stage index out of range.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrSessionNotFound is returned when a session ID is not open.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when opening a session ID that is already open.
	ErrSessionExists = errors.New("session already exists")

	// ErrSnapshotNotFound is returned when a snapshot ID cannot be found in the store.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// StructuralError describes a blueprint defect.
type StructuralError struct {
	Reason string
	Keys   []string
}

func (e *StructuralError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("%v: %s", ErrStructural, e.Reason)
	}
	return fmt.Sprintf("%v: %s [%s]", ErrStructural, e.Reason, strings.Join(e.Keys, " -> "))
}

func (e *StructuralError) Unwrap() error { return ErrStructural }

// Structuralf builds a StructuralError.
func Structuralf(keys []string, format string, args ...any) error {
	return &StructuralError{Reason: fmt.Sprintf(format, args...), Keys: keys}
}

// DomainViolationError reports a rejected assignment.
type DomainViolationError struct {
	Key    string
	Value  Value
	Domain Domain
	// Reasons holds the messages of the rules currently excluding Value, if any.
	Reasons []string
}

func (e *DomainViolationError) Error() string {
	msg := fmt.Sprintf("%v: %s=%s not in %s", ErrDomainViolation, e.Key, e.Value, e.Domain)
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	return msg
}

func (e *DomainViolationError) Unwrap() error { return ErrDomainViolation }

// StageLockedError reports a mutation attempted on a stage ahead of the active one.
type StageLockedError struct {
	Key    string
	Stage  int
	Active int
}

func (e *StageLockedError) Error() string {
	return fmt.Sprintf("%v: %s belongs to stage %d, active stage is %d", ErrStageLocked, e.Key, e.Stage, e.Active)
}

func (e *StageLockedError) Unwrap() error { return ErrStageLocked }

// StageIncompleteError lists what keeps a stage from completing.
type StageIncompleteError struct {
	Stage   int
	Title   string
	Missing []string
	Blocked []string
}

func (e *StageIncompleteError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "unset: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Blocked) > 0 {
		parts = append(parts, "blocked: "+strings.Join(e.Blocked, ", "))
	}
	return fmt.Sprintf("%v: stage %d (%s) %s", ErrStageIncomplete, e.Stage, e.Title, strings.Join(parts, "; "))
}

func (e *StageIncompleteError) Unwrap() error { return ErrStageIncomplete }

// NonConvergenceError carries the state of a propagation that hit its round cap.
type NonConvergenceError struct {
	Trigger string
	Rounds  int
	Pending []string
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("%v: triggered by %s, gave up after %d rounds with %v still changing",
		ErrNonConvergence, e.Trigger, e.Rounds, e.Pending)
}

func (e *NonConvergenceError) Unwrap() error { return ErrNonConvergence }

// RuleDefectError wraps a failure raised while evaluating a rule.
type RuleDefectError struct {
	Rule string
	Err  error
}

func (e *RuleDefectError) Error() string {
	return fmt.Sprintf("%v: rule %q: %v", ErrRuleDefect, e.Rule, e.Err)
}

func (e *RuleDefectError) Unwrap() []error { return []error{ErrRuleDefect, e.Err} }

// IsDefect reports whether err is an engine defect rather than a user error.
func IsDefect(err error) bool {
	return errors.Is(err, ErrNonConvergence) || errors.Is(err, ErrRuleDefect)
}
