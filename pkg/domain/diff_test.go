package domain_test

import (
	"testing"
	"time"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	now := time.Now()
	snap := func(values map[string]domain.Value) domain.Snapshot {
		return domain.NewSnapshot("s", now, values)
	}

	tests := []struct {
		name string
		old  domain.Snapshot
		new  domain.Snapshot
		want []domain.Change
	}{
		{
			name: "identical",
			old:  snap(map[string]domain.Value{"COMP_ATM": "cam"}),
			new:  snap(map[string]domain.Value{"COMP_ATM": "cam"}),
			want: nil,
		},
		{
			name: "from empty",
			old:  domain.Snapshot{},
			new:  snap(map[string]domain.Value{"NTASKS": "64", "COMP_ATM": "cam"}),
			want: []domain.Change{
				{Key: "COMP_ATM", New: "cam"},
				{Key: "NTASKS", New: "64"},
			},
		},
		{
			name: "modified and removed",
			old:  snap(map[string]domain.Value{"COMP_ATM": "cam", "OCN_GRID": "gx1v7"}),
			new:  snap(map[string]domain.Value{"COMP_ATM": "satm"}),
			want: []domain.Change{
				{Key: "COMP_ATM", Old: "cam", New: "satm"},
				{Key: "OCN_GRID", Old: "gx1v7"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Diff(tt.old, tt.new))
		})
	}
}

func TestChange_Kind(t *testing.T) {
	assert.True(t, domain.Change{Key: "A", New: "x"}.Added())
	assert.True(t, domain.Change{Key: "A", Old: "x"}.Removed())

	c := domain.Change{Key: "A", Old: "x", New: "y"}
	assert.False(t, c.Added())
	assert.False(t, c.Removed())
}
