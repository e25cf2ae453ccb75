// internal/rules/compile_test.go
package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/solatis/commissar/internal/types"
)

func TestCompile_Errors(t *testing.T) {
	base := func() *types.RuleDefinition {
		return &types.RuleDefinition{
			Name:    "r",
			Targets: []string{"Item"},
			Events:  []string{"Save"},
			Test:    types.Test{Kind: types.TestRequired, Field: "title"},
		}
	}

	tests := []struct {
		name   string
		mutate func(d *types.RuleDefinition)
		want   error
	}{
		{"no targets", func(d *types.RuleDefinition) { d.Targets = nil }, types.ErrNoTargets},
		{"no events", func(d *types.RuleDefinition) { d.Events = nil }, types.ErrNoEvents},
		{"no test", func(d *types.RuleDefinition) { d.Test = types.Test{} }, types.ErrMissingTest},
		{"empty compare", func(d *types.RuleDefinition) { d.Test = types.Test{Kind: types.TestCompare} }, types.ErrEmptyCondition},
		{"unknown operator", func(d *types.RuleDefinition) {
			d.Test = types.Test{Kind: types.TestCompare, Terms: []types.Term{
				{Field: "title", Operator: "resembles", Value: types.StringLiteral("x")},
			}}
		}, types.ErrInvalidOperator},
		{"bad pattern", func(d *types.RuleDefinition) {
			d.Test = types.Test{Kind: types.TestCompare, Terms: []types.Term{
				{Field: "title", Operator: "matching_pattern", Value: types.StringLiteral("(")},
			}}
		}, types.ErrInvalidPattern},
		{"leading combinator in gate", func(d *types.RuleDefinition) {
			d.Gate = []types.Term{{Combinator: types.CombinatorAnd, Field: "a", Operator: "equal_to", Value: types.StringLiteral("x")}}
		}, types.ErrDanglingCombinator},
		{"missing combinator in gate", func(d *types.RuleDefinition) {
			d.Gate = []types.Term{
				{Field: "a", Operator: "equal_to", Value: types.StringLiteral("x")},
				{Field: "b", Operator: "equal_to", Value: types.StringLiteral("y")},
			}
		}, types.ErrMissingCombinator},
		{"child path too deep", func(d *types.RuleDefinition) {
			d.ChildField = strings.Repeat("a.", types.MaxPathDepth) + "a"
		}, types.ErrPathTooDeep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := base()
			tt.mutate(def)
			_, err := Compile(def)
			if !errors.Is(err, tt.want) {
				t.Errorf("Compile() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCompile_ActiveField(t *testing.T) {
	tests := []struct {
		name  string
		test  types.Test
		child string
		want  string
	}{
		{"compare uses first term", types.Test{Kind: types.TestCompare, Terms: []types.Term{
			{Field: "title", Operator: "equal_to", Value: types.StringLiteral("x")},
			{Combinator: types.CombinatorOr, Field: "icpn", Operator: "equal_to", Value: types.StringLiteral("y")},
		}}, "", "title"},
		{"required", types.Test{Kind: types.TestRequired, Field: "icpn"}, "", "icpn"},
		{"unchanged", types.Test{Kind: types.TestUnchanged, Field: "icpn"}, "", "icpn"},
		{"unique is whole-entity", types.Test{Kind: types.TestUnique, Fields: []string{"title", "icpn"}}, "", ""},
		{"child collection", types.Test{Kind: types.TestRequired, Field: "name"}, "tracks", "tracks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := Compile(&types.RuleDefinition{
				Name:       "r",
				Targets:    []string{"Item"},
				Events:     []string{"Save"},
				Test:       tt.test,
				ChildField: tt.child,
			})
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if rule.Field() != tt.want {
				t.Errorf("Field() = %q, want %q", rule.Field(), tt.want)
			}
		})
	}
}

func TestCompile_PreservesTermOrder(t *testing.T) {
	rule, err := Compile(&types.RuleDefinition{
		Name:    "r",
		Targets: []string{"Item"},
		Events:  []string{"Save"},
		Gate: []types.Term{
			{Field: "A", Operator: "equal_to", Value: types.StringLiteral("a")},
			{Combinator: types.CombinatorOr, Field: "B", Operator: "equal_to", Value: types.StringLiteral("b")},
			{Combinator: types.CombinatorAnd, Field: "C", Operator: "equal_to", Value: types.StringLiteral("c")},
		},
		Test: types.Test{Kind: types.TestRequired, Field: "title"},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := `((A equal_to "a" or B equal_to "b") and C equal_to "c")`
	if got := rule.Gate.String(); got != want {
		t.Errorf("Gate.String() = %s, want %s", got, want)
	}
}

func TestCompile_CopiesSlices(t *testing.T) {
	def := &types.RuleDefinition{
		Name:    "r",
		Targets: []string{"Item"},
		Events:  []string{"Save"},
		Test:    types.Test{Kind: types.TestRequired, Field: "title"},
	}
	rule, err := Compile(def)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	def.Targets[0] = "Changed"
	if rule.Targets[0] != "Item" {
		t.Errorf("Targets aliased definition: %v", rule.Targets)
	}
}
