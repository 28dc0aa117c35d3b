package schema_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/schema"
	"github.com/aretw0/caseconf/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Formats(t *testing.T) {
	for _, file := range []string{"mini.yaml", "mini.hcl"} {
		t.Run(file, func(t *testing.T) {
			bp, err := schema.LoadFile(filepath.Join("testdata", file))
			require.NoError(t, err)
			assertMini(t, bp)
		})
	}
}

func assertMini(t *testing.T, bp *blueprint.Compiled) {
	t.Helper()
	assert.Equal(t, "mini", bp.Name())
	assert.Equal(t, []string{"COMP_ATM", "COMP_OCN", "GRID", "NTASKS"}, bp.Graph().Order())

	vars := bp.Variables()
	assert.Equal(t, "Stub atmosphere", vars[0].Help["satm"])
	assert.Equal(t, domain.KindInt, vars[3].Kind)
	assert.Equal(t, domain.Value("64"), vars[3].Default)

	s, err := session.New("s", bp)
	require.NoError(t, err)

	_, err = s.SetValue("COMP_ATM", "satm")
	require.NoError(t, err)
	d, _ := s.Domain("COMP_OCN")
	assert.Equal(t, domain.Values("docn", "socn"), d.Values())

	_, err = s.SetValue("COMP_OCN", "docn")
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)

	grid, _ := s.Value("GRID")
	assert.Equal(t, domain.Value("T62_g17"), grid, "wildcard row leaves one grid, auto-selected")

	_, err = s.Advance()
	require.NoError(t, err)
	ntasks, _ := s.Domain("NTASKS")
	assert.False(t, ntasks.Contains("64"), "stub atmosphere caps the task count")
	v, _ := s.Value("NTASKS")
	assert.Equal(t, domain.Unset, v, "a default outside the current domain is not applied")
}

func TestParseYAML_TableRowMatch(t *testing.T) {
	bp, err := schema.LoadFile(filepath.Join("testdata", "mini.yaml"))
	require.NoError(t, err)
	s, err := session.New("s", bp)
	require.NoError(t, err)

	_, err = s.SetValue("COMP_OCN", "mom")
	require.NoError(t, err)
	d, _ := s.Domain("GRID")
	assert.Equal(t, domain.Values("f09_g17", "f19_g17"), d.Values())
}

func TestParseYAML_ValidationErrors(t *testing.T) {
	src := `
name: broken
variables:
  - key: A
    options: [x, y]
  - key: N
    kind: int
    options: [1, two]
  - key: S
    min: 3
  - key: FREE
rules:
  - name: bad condition
    when: {GHOST: x}
    restrict: {A: [x]}
  - name: bad restriction
    when: {A: x}
    restrict:
      FREE: {not_in: [a]}
`
	_, err := parseAndBuild([]byte(src))
	require.Error(t, err)

	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 4, err.Error())

	var paths []string
	for _, e := range errs {
		var ve *schema.ValidationError
		require.ErrorAs(t, e, &ve)
		paths = append(paths, ve.Path)
	}
	assert.Contains(t, paths, "variables[N].options")
	assert.Contains(t, paths, "variables[S]")
	assert.Contains(t, paths, "rules[bad condition].when.GHOST")
	assert.Contains(t, paths, "rules[bad restriction].restrict.FREE")
}

func TestParseYAML_UnusedClauseKey(t *testing.T) {
	src := `
name: typo
variables:
  - key: A
    options: [x, y]
rules:
  - name: unknown key
    when: {A: {in: [x], typo: 1}}
    restrict: {A: [y]}
`
	_, err := schema.ParseYAML([]byte(src))
	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "rules[0].when.A")
}

func parseAndBuild(data []byte) (blueprint.Blueprint, error) {
	doc, err := schema.ParseYAML(data)
	if err != nil {
		return blueprint.Blueprint{}, err
	}
	return doc.Build()
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := schema.ParseYAML([]byte("name: x\nvariabels: []\n"))
	assert.Error(t, err)
}

func TestParseYAML_ConditionForms(t *testing.T) {
	src := `
name: forms
variables:
  - key: OPT
    options: [none, AQ1, SOM]
  - key: N
    kind: int
    min: 1
  - key: OUT
    options: [a, b, c]
rules:
  - name: aquaplanet
    when: {OPT: {contains: AQ}}
    restrict: {OUT: a}
  - name: big
    when: {N: {min: 100}}
    restrict: {OUT: {not_in: [c]}}
`
	doc, err := schema.ParseYAML([]byte(src))
	require.NoError(t, err)
	bp, err := doc.Compile()
	require.NoError(t, err)

	s, err := session.New("s", bp)
	require.NoError(t, err)
	_, err = s.SetValue("N", "0100")
	require.NoError(t, err)
	d, _ := s.Domain("OUT")
	assert.Equal(t, domain.Values("a", "b"), d.Values())

	_, err = s.SetValue("OPT", "AQ1")
	require.NoError(t, err)
	d, _ = s.Domain("OUT")
	assert.Equal(t, domain.Values("a"), d.Values())
}

func TestCompile_StructuralErrorsSurface(t *testing.T) {
	src := `
name: cyclic
variables:
  - key: A
    options: [x, y]
  - key: B
    options: [x, y]
rules:
  - name: forward
    when: {A: x}
    restrict: {B: [x]}
  - name: backward
    when: {B: x}
    restrict: {A: [x]}
`
	dir := t.TempDir()
	path := filepath.Join(dir, "cyclic.yml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	_, err := schema.LoadFile(path)
	assert.ErrorIs(t, err, domain.ErrStructural)
}

func TestParseHCL_SyntaxError(t *testing.T) {
	_, err := schema.ParseHCL([]byte(`variable "A" {`), "broken.hcl")
	assert.ErrorContains(t, err, "broken.hcl")
}
