package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomain_FiniteIntersectKeepsLeftOrder(t *testing.T) {
	a := domain.Strings("mom", "docn", "socn")
	b := domain.Strings("socn", "docn")

	got := a.Intersect(b)

	assert.Equal(t, domain.Values("docn", "socn"), got.Values())
	assert.True(t, got.Equal(b), "equality ignores order")
}

func TestDomain_FiniteWithRange(t *testing.T) {
	levels := domain.Strings("16", "32", "58", "93")

	got := levels.Intersect(domain.Range(20, 60))
	assert.Equal(t, domain.Values("32", "58"), got.Values())

	// Commutative, but the finite side always provides the order.
	got = domain.Range(20, 60).Intersect(levels)
	assert.Equal(t, domain.Values("32", "58"), got.Values())
}

func TestDomain_RangeIntersection(t *testing.T) {
	got := domain.AtLeast(1).Intersect(domain.AtMost(10)).Intersect(domain.Range(5, 20))

	assert.False(t, got.IsFinite())
	assert.True(t, got.Contains("5"))
	assert.True(t, got.Contains("10"))
	assert.False(t, got.Contains("4.99"))
	assert.False(t, got.Contains("11"))
	assert.Equal(t, "[5, 10]", got.String())

	disjoint := domain.Range(0, 1).Intersect(domain.Range(2, 3))
	assert.True(t, disjoint.IsEmpty())
}

func TestDomain_AnyAcceptsEverythingButUnset(t *testing.T) {
	d := domain.Any()
	assert.True(t, d.Contains("anything"))
	assert.False(t, d.Contains(domain.Unset))
	assert.Equal(t, -1, d.Len())
	assert.Equal(t, "*", d.String())
}

func TestDomain_Without(t *testing.T) {
	d := domain.Strings("cam", "datm", "satm").Without("datm")
	assert.Equal(t, domain.Values("cam", "satm"), d.Values())

	unbounded := domain.AtLeast(0)
	assert.True(t, unbounded.Without("1").Equal(unbounded))
}

func TestDomain_FiniteDeduplicates(t *testing.T) {
	d := domain.Strings("a", "b", "a")
	assert.Equal(t, 2, d.Len())

	v, ok := domain.Strings("only").Single()
	assert.True(t, ok)
	assert.Equal(t, domain.Value("only"), v)

	_, ok = d.Single()
	assert.False(t, ok)
}

func TestDomain_EmptyIsLegalState(t *testing.T) {
	d := domain.Strings("a").Intersect(domain.Strings("b"))
	assert.True(t, d.IsEmpty())
	assert.Equal(t, 0, d.Len())
	assert.True(t, d.Equal(domain.Empty()))
	assert.False(t, d.Equal(domain.Any()))
}

func TestDomain_JSON(t *testing.T) {
	for name, d := range map[string]domain.Domain{
		"finite": domain.Strings("gx1v6", "tx0.66v1"),
		"empty":  domain.Empty(),
		"range":  domain.Range(1, 3),
		"any":    domain.Any(),
	} {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(d)
			require.NoError(t, err)

			var back domain.Domain
			require.NoError(t, json.Unmarshal(data, &back))
			assert.True(t, d.Equal(back), "round trip of %s gave %s", d, back)
		})
	}
}

func TestKind_Parse(t *testing.T) {
	tests := []struct {
		kind    domain.Kind
		raw     string
		want    domain.Value
		wantErr bool
	}{
		{domain.KindString, " cam ", "cam", false},
		{domain.KindInt, "042", "42", false},
		{domain.KindInt, "4.2", "", true},
		{domain.KindReal, "1.50", "1.5", false},
		{domain.KindReal, "1e3", "1000", false},
		{domain.KindBool, "TRUE", "true", false},
		{domain.KindBool, "maybe", "", true},
		{domain.KindString, "   ", "", true},
		{domain.Kind("complex"), "1", "", true},
	}

	for _, tt := range tests {
		got, err := tt.kind.Parse(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "%s(%q)", tt.kind, tt.raw)
			continue
		}
		require.NoError(t, err, "%s(%q)", tt.kind, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestBatch_Helpers(t *testing.T) {
	b := domain.Batch{Deltas: []domain.Delta{
		{Key: "OCN", OldDomain: domain.Strings("mom", "docn"), NewDomain: domain.Strings("docn"), OldValue: "mom"},
		{Key: "ATM", OldDomain: domain.Strings("cam", "satm"), NewDomain: domain.Strings("cam", "satm"), NewValue: "satm"},
	}}

	assert.Equal(t, []string{"OCN"}, b.Cleared())

	ocn, ok := b.Delta("OCN")
	require.True(t, ok)
	assert.True(t, ocn.DomainChanged())
	assert.True(t, ocn.ValueChanged())

	atm, _ := b.Delta("ATM")
	assert.False(t, atm.DomainChanged())
	assert.False(t, atm.Cleared())
}
