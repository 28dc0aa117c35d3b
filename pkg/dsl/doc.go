/*
Package dsl builds blueprints in Go with a fluent API, as an alternative to YAML or HCL
files. It is handy for tests and for blueprints generated from other data.

	b := dsl.New("mini")

	b.Var("COMP_ATM").Options("cam", "satm")
	b.Var("COMP_OCN").Options("mom", "docn", "socn")
	b.Var("NTASKS").Int().Min(1).Default("64")

	b.Stage("Components", "COMP_ATM", "COMP_OCN")
	b.Stage("Run", "NTASKS")

	b.Rule("stub atmosphere").
		When(rules.Equals("COMP_ATM", "satm")).
		Restrict("COMP_OCN", domain.Strings("docn", "socn")).
		Message("satm cannot drive an active ocean")

	bp, err := b.Build()
*/
package dsl
