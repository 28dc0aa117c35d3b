package registry_test

import (
	"testing"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DeclareAndRead(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Declare(domain.VariableDef{
		Key:         "COMP_ATM",
		Base:        domain.Strings("cam", "datm", "satm"),
		Description: "Atmosphere component",
		Help:        map[domain.Value]string{"cam": "Community Atmosphere Model"},
	}))

	v, err := r.Value("COMP_ATM")
	require.NoError(t, err)
	assert.False(t, v.IsSet(), "values start unset")

	d, err := r.Domain("COMP_ATM")
	require.NoError(t, err)
	assert.True(t, d.Equal(domain.Strings("cam", "datm", "satm")), "current domain starts as base")

	info, err := r.Variable("COMP_ATM")
	require.NoError(t, err)
	assert.Equal(t, domain.KindString, info.Kind, "kind defaults to string")
	assert.Equal(t, "Community Atmosphere Model", info.Help["cam"])
}

func TestRegistry_Redeclaration(t *testing.T) {
	r := registry.New()
	def := domain.VariableDef{Key: "GRID", Base: domain.Strings("f09", "f19")}
	require.NoError(t, r.Declare(def))

	err := r.Declare(def)
	assert.ErrorIs(t, err, domain.ErrStructural)
}

func TestRegistry_DeclareValidation(t *testing.T) {
	tests := map[string]domain.VariableDef{
		"empty key":         {Base: domain.Strings("a")},
		"unknown kind":      {Key: "X", Kind: "complex", Base: domain.Any()},
		"non canonical int": {Key: "NTASKS", Kind: domain.KindInt, Base: domain.Strings("08")},
		"string range":      {Key: "NAME", Kind: domain.KindString, Base: domain.Range(0, 1)},
		"default outside":   {Key: "INITTIME", Base: domain.Strings("1850", "2000"), Default: "HIST"},
	}

	for name, def := range tests {
		t.Run(name, func(t *testing.T) {
			err := registry.New().Declare(def)
			assert.ErrorIs(t, err, domain.ErrStructural)
		})
	}
}

func TestRegistry_ClearKeepsDomain(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Declare(domain.VariableDef{Key: "OCN", Base: domain.Strings("mom", "docn")}))
	require.NoError(t, r.SetDomain("OCN", domain.Strings("docn")))
	require.NoError(t, r.Assign("OCN", "docn"))

	require.NoError(t, r.Clear("OCN"))

	v, _ := r.Value("OCN")
	d, _ := r.Domain("OCN")
	assert.Equal(t, domain.Unset, v)
	assert.True(t, d.Equal(domain.Strings("docn")))
}

func TestRegistry_UnknownVariable(t *testing.T) {
	r := registry.New()

	_, err := r.Value("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownVariable)
	_, err = r.Domain("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownVariable)
	assert.ErrorIs(t, r.Clear("missing"), domain.ErrUnknownVariable)
}

func TestRegistry_KeysAndAssignments(t *testing.T) {
	r := registry.New()
	for _, key := range []string{"B", "A", "C"} {
		require.NoError(t, r.Declare(domain.VariableDef{Key: key, Base: domain.Any()}))
	}
	require.NoError(t, r.Assign("A", "1"))

	assert.Equal(t, []string{"B", "A", "C"}, r.Keys())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, map[string]domain.Value{"A": "1"}, r.Assignments())
}
