/*
Package domain contains the core domain models of the caseconf engine.

It defines the vocabulary shared by every other package: values and their kinds,
domains of legal values, the deltas emitted after each mutating call, the exported
snapshot, and the error taxonomy. This package is kept pure and free of external
dependencies like I/O or persistence.

# Key Entities

  - Value / Kind: the canonical textual form of an assignment and how raw input is parsed.
  - Domain: a finite ordered set of values, or an unbounded (optionally ranged) numeric domain.
  - Delta / Batch: the net effect of one mutating call, delivered to subscribers atomically.
  - Snapshot: the immutable key/value mapping handed to downstream tooling.
  - VariableDef / StageDef: declarations read once when a blueprint is compiled.

# Errors

Structural errors are fatal at setup. Domain violations, locked stages and incomplete
stages are rejected locally and leave state unchanged. Non-convergence and rule defects
are engine defects, not user errors; see IsDefect.
*/
package domain
