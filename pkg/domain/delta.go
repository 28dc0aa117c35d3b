package domain

// Delta is the net change a single mutating call made to one variable.
// A variable appears at most once per batch, carrying its state before the call
// and after the call, even if propagation touched it several times.
type Delta struct {
	Key       string `json:"key"`
	OldDomain Domain `json:"old_domain"`
	NewDomain Domain `json:"new_domain"`
	OldValue  Value  `json:"old_value,omitempty"`
	NewValue  Value  `json:"new_value,omitempty"`
}

// DomainChanged reports whether the legal values of the variable changed.
func (d Delta) DomainChanged() bool {
	return !d.OldDomain.Equal(d.NewDomain)
}

// ValueChanged reports whether the assignment of the variable changed.
func (d Delta) ValueChanged() bool {
	return d.OldValue != d.NewValue
}

// Cleared reports whether propagation unset a previously assigned value.
func (d Delta) Cleared() bool {
	return d.OldValue.IsSet() && !d.NewValue.IsSet()
}

// Op names the public call that produced a batch.
type Op string

const (
	OpSet     Op = "set"
	OpUnset   Op = "unset"
	OpAdvance Op = "advance"
	OpReset   Op = "reset"
)

// Batch is the complete, consistent set of deltas produced by one mutating call.
// Subscribers receive exactly one Batch per accepted call; the Batch may hold no deltas.
type Batch struct {
	Session string  `json:"session"`
	Seq     uint64  `json:"seq"`
	Op      Op      `json:"op"`
	Key     string  `json:"key,omitempty"`
	Stage   int     `json:"stage"`
	Deltas  []Delta `json:"deltas"`
}

// IsEmpty reports whether the batch carries no deltas.
func (b Batch) IsEmpty() bool {
	return len(b.Deltas) == 0
}

// Delta returns the delta for key, if the batch holds one.
func (b Batch) Delta(key string) (Delta, bool) {
	for _, d := range b.Deltas {
		if d.Key == key {
			return d, true
		}
	}
	return Delta{}, false
}

// Cleared lists the keys whose values were unset by the call.
func (b Batch) Cleared() []string {
	var keys []string
	for _, d := range b.Deltas {
		if d.Cleared() {
			keys = append(keys, d.Key)
		}
	}
	return keys
}
