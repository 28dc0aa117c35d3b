package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/caseconf/pkg/blueprint"
)

// Parse decodes data according to the extension of filename: .hcl for HCL, anything
// else as YAML.
func Parse(data []byte, filename string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".hcl":
		return ParseHCL(data, filename)
	default:
		return ParseYAML(data)
	}
}

// LoadFile reads and compiles the blueprint at path.
func LoadFile(path string) (*blueprint.Compiled, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprint: %w", err)
	}
	doc, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	c, err := doc.Compile()
	if err != nil {
		return nil, fmt.Errorf("blueprint %s: %w", path, err)
	}
	return c, nil
}
