package catalog_test

import (
	"testing"

	"github.com/aretw0/caseconf/internal/catalog"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	bp, err := catalog.Load(catalog.Default)
	require.NoError(t, err)
	s, err := session.New("cesm-test", bp)
	require.NoError(t, err)
	return s
}

func set(t *testing.T, s *session.Session, pairs ...string) {
	t.Helper()
	for i := 0; i < len(pairs); i += 2 {
		_, err := s.SetValue(pairs[i], domain.Value(pairs[i+1]))
		require.NoError(t, err, "%s=%s", pairs[i], pairs[i+1])
	}
}

func domainOf(t *testing.T, s *session.Session, key string) []domain.Value {
	t.Helper()
	d, err := s.Domain(key)
	require.NoError(t, err)
	return d.Values()
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"cesm"}, catalog.Names())
	_, err := catalog.Load("e3sm")
	assert.Error(t, err)
	src, ok := catalog.Source("cesm")
	assert.True(t, ok)
	assert.NotEmpty(t, src)
}

func TestCESM_FullyCoupledCase(t *testing.T) {
	s := newSession(t)

	set(t, s,
		"COMP_ATM", "cam",
		"COMP_ICE", "cice",
		"COMP_OCN", "mom",
		"COMP_LND", "clm",
		"COMP_ROF", "mosart",
		"COMP_GLC", "sglc",
		"COMP_WAV", "ww3",
	)
	_, err := s.Advance()
	require.NoError(t, err)

	assert.Equal(t, domain.Values("(none)", "SCAM"), domainOf(t, s, "COMP_ATM_OPTION"))
	v, _ := s.Value("COMP_OCN_OPTION")
	assert.Equal(t, domain.Value("(none)"), v, "single option auto-selected")

	set(t, s, "COMP_ATM_OPTION", "(none)")
	_, err = s.Advance()
	require.NoError(t, err)

	assert.Equal(t, domain.Values("0.9x1.25", "1.9x2.5", "4x5"), domainOf(t, s, "ATM_GRID"))
	assert.Equal(t, domain.Values("tx0.66v1", "gx1v6", "tx0.25v1"), domainOf(t, s, "OCN_GRID"))
	assert.Equal(t, domain.Values("wtx0.66v1", "ww3a"), domainOf(t, s, "WAV_GRID"))

	set(t, s, "ATM_GRID", "0.9x1.25", "OCN_GRID", "gx1v6", "WAV_GRID", "ww3a")
	_, err = s.Advance()
	require.NoError(t, err)
	v, _ = s.Value("GRID")
	assert.Equal(t, domain.Value("f09_g16"), v)

	_, err = s.Advance()
	require.NoError(t, err)
	for key, want := range map[string]domain.Value{
		"MACH": "derecho", "NTASKS": "128", "STOP_OPTION": "ndays", "STOP_N": "5", "DEBUG": "false",
	} {
		got, _ := s.Value(key)
		assert.Equal(t, want, got, key)
	}

	_, err = s.ExportSnapshot()
	assert.ErrorIs(t, err, domain.ErrStageIncomplete, "PROJECT has no default")

	set(t, s, "PROJECT", "P93300606")
	snap, err := s.ExportSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 19, snap.Len())
}

func TestCESM_StubIceCascade(t *testing.T) {
	s := newSession(t)
	set(t, s, "COMP_ATM", "satm", "COMP_ICE", "sice")

	assert.Equal(t, domain.Values("socn"), domainOf(t, s, "COMP_OCN"))
	assert.Equal(t, domain.Values("slnd"), domainOf(t, s, "COMP_LND"))
	assert.Equal(t, domain.Values("srof"), domainOf(t, s, "COMP_ROF"))
	assert.Equal(t, domain.Values("sglc"), domainOf(t, s, "COMP_GLC"))
	assert.Equal(t, domain.Values("ww3", "dwav"), domainOf(t, s, "COMP_WAV"), "unset COMP_OCN does not constrain")

	set(t, s, "COMP_OCN", "socn")
	assert.Equal(t, domain.Values("dwav"), domainOf(t, s, "COMP_WAV"))
}

func TestCESM_Explain(t *testing.T) {
	s := newSession(t)
	set(t, s, "COMP_ATM", "cam")

	reasons, err := s.Explain("COMP_ICE", "dice")
	require.NoError(t, err)
	assert.Equal(t, []string{"CAM cannot be coupled with Data ICE."}, reasons)
}

func TestCESM_CasperCapsTasks(t *testing.T) {
	s := newSession(t)
	set(t, s,
		"COMP_ATM", "cam", "COMP_ICE", "cice", "COMP_OCN", "docn", "COMP_LND", "clm",
		"COMP_ROF", "mosart", "COMP_GLC", "sglc", "COMP_WAV", "swav",
	)
	_, err := s.Advance()
	require.NoError(t, err)
	v, _ := s.Value("COMP_OCN_OPTION")
	assert.Equal(t, domain.Value("SOM"), v, "docn with cice forces the slab ocean")

	set(t, s, "COMP_ATM_OPTION", "(none)")
	_, err = s.Advance()
	require.NoError(t, err)
	v, _ = s.Value("WAV_GRID")
	assert.Equal(t, domain.Value("(none)"), v)

	set(t, s, "ATM_GRID", "1.9x2.5", "OCN_GRID", "1.9x2.5")
	_, err = s.Advance()
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)

	b, err := s.SetValue("MACH", "casper")
	require.NoError(t, err)
	assert.Equal(t, []string{"NTASKS"}, b.Cleared(), "128 tasks exceed the casper limit")
}
