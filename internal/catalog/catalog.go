// Package catalog embeds the built-in blueprints.
package catalog

import (
	_ "embed"
	"fmt"
	"slices"

	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/schema"
)

//go:embed cesm.yaml
var cesm []byte

var sources = map[string][]byte{
	"cesm": cesm,
}

// Default is the blueprint used when none is named.
const Default = "cesm"

// Names lists the built-in blueprints.
func Names() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Source returns the YAML document of a built-in blueprint.
func Source(name string) ([]byte, bool) {
	src, ok := sources[name]
	return src, ok
}

// Load compiles a built-in blueprint.
func Load(name string) (*blueprint.Compiled, error) {
	src, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown built-in blueprint %q (have %v)", name, Names())
	}
	doc, err := schema.ParseYAML(src)
	if err != nil {
		return nil, fmt.Errorf("built-in blueprint %s: %w", name, err)
	}
	return doc.Compile()
}
