// internal/types/rules.go
package types

/*
 * Domain types for rule definition.
 *
 * Provides RuleDefinition, Term and Test, the declarative form of a rule as
 * produced by the DSL parser. internal/rules compiles these into evaluable
 * rules and rejects malformed ones before registration.
 *
 * Key types:
 *   - RuleDefinition: targets, events, gate terms, test, outcomes, abort flag
 *   - Term: one comparison joined to its predecessor by and/or
 *   - Test: the pass/fail directive (comparison chain, required, unique, unchanged)
 */

// Combinator joins a term to the terms before it.
type Combinator int

const (
	CombinatorNone Combinator = iota
	CombinatorAnd
	CombinatorOr
)

// String returns the DSL keyword for the combinator.
func (c Combinator) String() string {
	switch c {
	case CombinatorAnd:
		return "and"
	case CombinatorOr:
		return "or"
	default:
		return ""
	}
}

// Term is a single field comparison in a gate or test chain.
// The first term of a chain carries CombinatorNone; every later term
// carries And or Or.
type Term struct {
	Combinator Combinator
	Field      string
	Operator   string // DSL operator name, e.g. "equal_to"
	Value      Literal
}

// TestKind selects the predicate family of a rule's test directive.
type TestKind int

const (
	TestUnspecified TestKind = iota
	TestCompare
	TestRequired
	TestUnique
	TestUnchanged
)

// Test is the pass/fail directive of a rule.
type Test struct {
	Kind   TestKind
	Terms  []Term   // for TestCompare
	Field  string   // for TestRequired and TestUnchanged
	Fields []string // for TestUnique
}

// RuleDefinition is the complete declarative form of a rule.
type RuleDefinition struct {
	Name        string   // unique within a rule book
	Source      string   // original body text; used as the failure payload
	Message     string   // human-readable error for field errors
	Targets     []string // entity type names
	Events      []string // trigger event names
	Gate        []Term   // optional gate chain
	Test        Test
	ChildField  string // apply Test to every element of this collection
	Outcomes    []string
	AbortOnFail bool
}
