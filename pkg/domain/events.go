package domain

import "time"

// PropagationStats summarizes the work done by one propagation cycle.
type PropagationStats struct {
	Rounds      int
	Evaluations int
	Duration    time.Duration
}

// Rejection describes a mutating call refused before any state changed.
type Rejection struct {
	Session string
	Op      Op
	Key     string
	Value   Value
	Err     error
}

// Hooks defines callbacks for engine observability.
// Every field is optional.
type Hooks struct {
	// OnBatch runs after an accepted mutating call, once subscribers were notified.
	OnBatch func(Batch, PropagationStats)
	// OnReject runs when a mutating call is refused.
	OnReject func(Rejection)
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	out := h
	if other.OnBatch != nil {
		prev := h.OnBatch
		out.OnBatch = func(b Batch, s PropagationStats) {
			if prev != nil {
				prev(b, s)
			}
			other.OnBatch(b, s)
		}
	}
	if other.OnReject != nil {
		prev := h.OnReject
		out.OnReject = func(r Rejection) {
			if prev != nil {
				prev(r)
			}
			other.OnReject(r)
		}
	}
	return out
}
