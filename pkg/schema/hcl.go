package schema

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type hclDocument struct {
	Name        string        `hcl:"name"`
	Description string        `hcl:"description,optional"`
	Variables   []hclVariable `hcl:"variable,block"`
	Stages      []hclStage    `hcl:"stage,block"`
	Rules       []hclRule     `hcl:"rule,block"`
}

type hclVariable struct {
	Key         string            `hcl:"key,label"`
	Kind        string            `hcl:"kind,optional"`
	Description string            `hcl:"description,optional"`
	Options     []string          `hcl:"options,optional"`
	Min         *float64          `hcl:"min,optional"`
	Max         *float64          `hcl:"max,optional"`
	Default     string            `hcl:"default,optional"`
	Help        map[string]string `hcl:"help,optional"`
}

type hclStage struct {
	Title       string   `hcl:"title,label"`
	Description string   `hcl:"description,optional"`
	Vars        []string `hcl:"vars"`
	AutoSelect  bool     `hcl:"auto_select,optional"`
}

type hclClause struct {
	Key      string   `hcl:"key,label"`
	Equals   *string  `hcl:"equals,optional"`
	In       []string `hcl:"in,optional"`
	NotIn    []string `hcl:"not_in,optional"`
	Contains *string  `hcl:"contains,optional"`
	Min      *float64 `hcl:"min,optional"`
	Max      *float64 `hcl:"max,optional"`
}

type hclRow struct {
	Match []string `hcl:"match"`
	In    []string `hcl:"in,optional"`
	NotIn []string `hcl:"not_in,optional"`
	Min   *float64 `hcl:"min,optional"`
	Max   *float64 `hcl:"max,optional"`
}

type hclRule struct {
	Name     string      `hcl:"name,label"`
	Message  string      `hcl:"message,optional"`
	When     []hclClause `hcl:"when,block"`
	Restrict []hclClause `hcl:"restrict,block"`
	Inputs   []string    `hcl:"inputs,optional"`
	Target   string      `hcl:"target,optional"`
	Rows     []hclRow    `hcl:"row,block"`
}

func (cl hclClause) clause() Clause {
	return Clause(cl)
}

// ParseHCL decodes an HCL blueprint. filename is only used in diagnostics.
//
//	name = "mini"
//
//	variable "COMP_ATM" {
//	  options = ["cam", "satm"]
//	}
//
//	stage "Components" {
//	  vars = ["COMP_ATM", "COMP_OCN"]
//	}
//
//	rule "stub atmosphere" {
//	  when "COMP_ATM" { equals = "satm" }
//	  restrict "COMP_OCN" { in = ["docn", "socn"] }
//	}
func ParseHCL(data []byte, filename string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var raw hclDocument
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	doc := &Document{Name: raw.Name, Description: raw.Description}
	for _, v := range raw.Variables {
		doc.Variables = append(doc.Variables, VariableSpec(v))
	}
	for _, s := range raw.Stages {
		doc.Stages = append(doc.Stages, StageSpec(s))
	}
	for _, r := range raw.Rules {
		spec := RuleSpec{Name: r.Name, Message: r.Message, Inputs: r.Inputs, Target: r.Target}
		for _, cl := range r.When {
			spec.When = append(spec.When, cl.clause())
		}
		for _, cl := range r.Restrict {
			spec.Restrict = append(spec.Restrict, cl.clause())
		}
		for _, row := range r.Rows {
			spec.Rows = append(spec.Rows, Row{
				Match: row.Match,
				Allow: Clause{Key: r.Target, In: row.In, NotIn: row.NotIn, Min: row.Min, Max: row.Max},
			})
		}
		doc.Rules = append(doc.Rules, spec)
	}
	return doc, nil
}
