/*
Package schema reads blueprints from YAML and HCL documents.

Both formats decode into a Document, which Build turns into a blueprint.Blueprint.
Every problem found on the way is reported at once as an AggregateError of
ValidationErrors; structural problems the document cannot reveal on its own (cycles,
stage ordering) surface from blueprint.Compile.

A YAML blueprint:

	name: mini
	variables:
	  - key: COMP_ATM
	    options: [cam, satm]
	  - key: NTASKS
	    kind: int
	    min: 1
	    default: 64
	stages:
	  - title: Components
	    vars: [COMP_ATM]
	  - title: Run
	    vars: [NTASKS]
	rules:
	  - name: stub atmosphere runs small
	    when: {COMP_ATM: satm}
	    restrict:
	      NTASKS: {max: 32}

Conditions and restrictions accept a scalar (equality), a list (membership) or a map
with in, not_in, equals, contains, min and max.
*/
package schema
