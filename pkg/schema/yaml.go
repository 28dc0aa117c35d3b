package schema

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Variables   []yamlVariable `yaml:"variables"`
	Stages      []yamlStage    `yaml:"stages"`
	Rules       []yamlRule     `yaml:"rules"`
}

type yamlVariable struct {
	Key         string            `yaml:"key"`
	Kind        string            `yaml:"kind"`
	Description string            `yaml:"description"`
	Options     []string          `yaml:"options"`
	Min         *float64          `yaml:"min"`
	Max         *float64          `yaml:"max"`
	Default     string            `yaml:"default"`
	Help        map[string]string `yaml:"help"`
}

type yamlStage struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Vars        []string `yaml:"vars"`
	AutoSelect  bool     `yaml:"auto_select"`
}

type yamlRule struct {
	Name     string         `yaml:"name"`
	Message  string         `yaml:"message"`
	When     map[string]any `yaml:"when"`
	Restrict map[string]any `yaml:"restrict"`
	Table    *yamlTable     `yaml:"table"`
}

type yamlTable struct {
	Inputs   []string       `yaml:"inputs"`
	Target   string         `yaml:"target"`
	Rows     map[string]any `yaml:"rows"`
	Fallback any            `yaml:"fallback"`
}

// clauseBody is the map form of a clause.
type clauseBody struct {
	Equals   *string  `mapstructure:"equals"`
	In       []string `mapstructure:"in"`
	NotIn    []string `mapstructure:"not_in"`
	Contains *string  `mapstructure:"contains"`
	Min      *float64 `mapstructure:"min"`
	Max      *float64 `mapstructure:"max"`
}

// ParseYAML decodes a YAML blueprint. Unknown fields are rejected.
func ParseYAML(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw yamlDocument
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse yaml blueprint: %w", err)
	}

	var c collector
	doc := &Document{Name: raw.Name, Description: raw.Description}
	for _, v := range raw.Variables {
		doc.Variables = append(doc.Variables, VariableSpec(v))
	}
	for _, s := range raw.Stages {
		doc.Stages = append(doc.Stages, StageSpec(s))
	}
	for i, r := range raw.Rules {
		path := fmt.Sprintf("rules[%d]", i)
		spec := RuleSpec{Name: r.Name, Message: r.Message}
		for _, key := range slices.Sorted(maps.Keys(r.When)) {
			if cl, ok := decodeClause(&c, path+".when."+key, key, r.When[key]); ok {
				spec.When = append(spec.When, cl)
			}
		}
		for _, key := range slices.Sorted(maps.Keys(r.Restrict)) {
			if cl, ok := decodeClause(&c, path+".restrict."+key, key, r.Restrict[key]); ok {
				spec.Restrict = append(spec.Restrict, cl)
			}
		}
		if t := r.Table; t != nil {
			if len(r.When) > 0 || len(r.Restrict) > 0 {
				c.add(path, "table rules cannot have when or restrict")
			}
			spec.Inputs = t.Inputs
			spec.Target = t.Target
			for _, match := range slices.Sorted(maps.Keys(t.Rows)) {
				if cl, ok := decodeClause(&c, path+".rows."+match, t.Target, t.Rows[match]); ok {
					spec.Rows = append(spec.Rows, Row{Match: strings.Split(match, ","), Allow: cl})
				}
			}
			if t.Fallback != nil {
				if cl, ok := decodeClause(&c, path+".fallback", t.Target, t.Fallback); ok {
					spec.Fallback = &cl
				}
			}
		}
		doc.Rules = append(doc.Rules, spec)
	}

	if err := c.err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// decodeClause reads the scalar, list or map form of a clause.
func decodeClause(c *collector, path, key string, raw any) (Clause, bool) {
	cl := Clause{Key: key}
	switch v := raw.(type) {
	case nil:
		c.add(path, "empty clause")
		return cl, false
	case []any:
		cl.In = make([]string, len(v))
		for i, item := range v {
			cl.In[i] = fmt.Sprint(item)
		}
	case map[string]any:
		var body clauseBody
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &body,
		})
		if err != nil {
			c.add(path, "%v", err)
			return cl, false
		}
		if err := dec.Decode(v); err != nil {
			c.add(path, "%v", err)
			return cl, false
		}
		cl.Equals, cl.In, cl.NotIn = body.Equals, body.In, body.NotIn
		cl.Contains, cl.Min, cl.Max = body.Contains, body.Min, body.Max
	default:
		s := fmt.Sprint(v)
		cl.Equals = &s
	}
	return cl, true
}
