// internal/ruleset/parse_test.go
package ruleset

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/rules"
	"github.com/solatis/commissar/internal/types"
)

func TestParse_Directives(t *testing.T) {
	body := `
# releases need a title when they are singles
check Release, Single
on Save
with format equal_to "single" or format equal_to EP
has title matching_pattern '^[A-Z]'
and title no_longer_than 40
for_outcome Completeness, Delivery
to_complete
`
	def, err := Parse("title-shape", body)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !slices.Equal(def.Targets, []string{"Release", "Single"}) {
		t.Errorf("Targets = %v", def.Targets)
	}
	if !slices.Equal(def.Events, []string{"Save"}) {
		t.Errorf("Events = %v", def.Events)
	}
	if len(def.Gate) != 2 || def.Gate[1].Combinator != types.CombinatorOr || def.Gate[1].Value.String != "EP" {
		t.Errorf("Gate = %+v", def.Gate)
	}
	if def.Test.Kind != types.TestCompare || len(def.Test.Terms) != 2 {
		t.Fatalf("Test = %+v", def.Test)
	}
	if got := def.Test.Terms[0].Value; got.Kind != types.LiteralString || got.String != "^[A-Z]" {
		t.Errorf("pattern literal = %#v", got)
	}
	if got := def.Test.Terms[1]; got.Combinator != types.CombinatorAnd || got.Value.Kind != types.LiteralNumber || got.Value.Number != 40 {
		t.Errorf("second term = %+v", got)
	}
	if !slices.Equal(def.Outcomes, []string{"Completeness", "Delivery"}) {
		t.Errorf("Outcomes = %v", def.Outcomes)
	}
	if !def.AbortOnFail {
		t.Error("AbortOnFail = false, want true")
	}
	if def.Source == "" || def.Source[0] != '#' {
		t.Errorf("Source = %q, want trimmed body", def.Source)
	}
}

func TestParse_SemicolonsAndComments(t *testing.T) {
	def, err := Parse("r", `check Item; on Save # trailing comment
has_unique title, artist_name`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if def.Test.Kind != types.TestUnique || !slices.Equal(def.Test.Fields, []string{"title", "artist_name"}) {
		t.Errorf("Test = %+v", def.Test)
	}
	if !slices.Equal(def.Events, []string{"Save"}) {
		t.Errorf("Events = %v", def.Events)
	}
}

func TestParse_SingleFieldTests(t *testing.T) {
	tests := []struct {
		body  string
		kind  types.TestKind
		field string
		child string
	}{
		{"check Item; on Save; has_required title", types.TestRequired, "title", ""},
		{"check Item; on Save; has_not_changed icpn", types.TestUnchanged, "icpn", ""},
		{"check Asset; on Save; for_each tracks; has_required name", types.TestRequired, "name", "tracks"},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			def, err := Parse("r", tt.body)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if def.Test.Kind != tt.kind || def.Test.Field != tt.field || def.ChildField != tt.child {
				t.Errorf("got kind=%v field=%q child=%q", def.Test.Kind, def.Test.Field, def.ChildField)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unknown directive", "check Item; expect title", types.ErrSyntax},
		{"dangling and", "check Item; and title equal_to x", types.ErrDanglingCombinator},
		{"and after has_required", "has_required title; and icpn equal_to x", types.ErrDanglingCombinator},
		{"short term", "has title equal_to", types.ErrSyntax},
		{"two tests", "has_required title; has_required icpn", types.ErrSyntax},
		{"unterminated quote", `has title equal_to "abc`, types.ErrSyntax},
		{"empty check", "check; on Save", types.ErrSyntax},
		{"to_complete with args", "to_complete now", types.ErrSyntax},
		{"quoted directive", `"check" Item`, types.ErrSyntax},
		{"trailing inline and", "with a equal_to x and", types.ErrSyntax},
		{"inline chain without combinator", "with a equal_to x b equal_to y", types.ErrSyntax},
		{"short inline term", "has a equal_to x or b equal_to", types.ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("r", tt.body)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParse_ErrorsCarryLineNumber(t *testing.T) {
	_, err := Parse("r", "check Item\non Save\nbogus")
	if err == nil || err.Error() != "rule syntax error: line 3: unknown directive \"bogus\"" {
		t.Errorf("Parse() error = %v", err)
	}
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		text   string
		quoted bool
		want   types.Literal
	}{
		{"42", true, types.StringLiteral("42")},
		{"42", false, types.NumberLiteral(42)},
		{"-1.5", false, types.NumberLiteral(-1.5)},
		{"2024-01-15", false, types.DateLiteral(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))},
		{"2024-01-15T10:00:00Z", false, types.DateLiteral(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))},
		{"single", false, types.StringLiteral("single")},
		{"", true, types.StringLiteral("")},
	}

	for _, tt := range tests {
		got := ParseLiteral(tt.text, tt.quoted)
		if got.Kind != tt.want.Kind || got.String != tt.want.String || got.Number != tt.want.Number || !got.Date.Equal(tt.want.Date) {
			t.Errorf("ParseLiteral(%q, %v) = %#v, want %#v", tt.text, tt.quoted, got, tt.want)
		}
	}
}

func TestParse_QuotedValues(t *testing.T) {
	def, err := Parse("r", `has title equal_to "a \"b\"; c"`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := def.Test.Terms[0].Value.String; got != `a "b"; c` {
		t.Errorf("value = %q", got)
	}
}

// Parsed and compiled rules must behave like the hand-built scenarios.
func TestParse_CompilesAndEvaluates(t *testing.T) {
	def, err := Parse("gate", `check Item
on Save
with title equal_to TestTitle
has artist_name equal_to TestArtist`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rule, err := rules.Compile(def)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if rule.Field() != "artist_name" {
		t.Errorf("Field() = %q, want artist_name", rule.Field())
	}
	if got := rule.Gate.String(); got != `title equal_to "TestTitle"` {
		t.Errorf("Gate = %s", got)
	}
}

func TestParseLiteral_SpecialFloatWordsStayStrings(t *testing.T) {
	for _, w := range []string{"NaN", "Inf", "infinity"} {
		if got := ParseLiteral(w, false); got.Kind != types.LiteralString {
			t.Errorf("ParseLiteral(%q) kind = %v, want string", w, got.Kind)
		}
	}
}

func TestParse_InlineChains(t *testing.T) {
	def, err := Parse("r", "check W\non Save\nwith a equal_to x and b equal_to y or c equal_to z\nhas_required t")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []types.Combinator{types.CombinatorNone, types.CombinatorAnd, types.CombinatorOr}
	if len(def.Gate) != len(want) {
		t.Fatalf("len(Gate) = %d, want %d", len(def.Gate), len(want))
	}
	for i, term := range def.Gate {
		if term.Combinator != want[i] {
			t.Errorf("Gate[%d].Combinator = %v, want %v", i, term.Combinator, want[i])
		}
	}
	if def.Gate[2].Field != "c" || def.Gate[2].Value.String != "z" {
		t.Errorf("Gate[2] = %+v", def.Gate[2])
	}

	rule, err := rules.Compile(def)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	// Left fold: (a and b) or c.
	for _, a := range []string{"x", "-"} {
		for _, b := range []string{"y", "-"} {
			for _, c := range []string{"z", "-"} {
				rec := entity.NewRecord("W", map[string]any{"a": a, "b": b, "c": c})
				want := (a == "x" && b == "y") || c == "z"
				if got := rule.PassesGate(context.Background(), rec); got != want {
					t.Errorf("PassesGate(a=%s b=%s c=%s) = %v, want %v", a, b, c, got, want)
				}
			}
		}
	}
}

func TestParse_InlineChainContinuesAcrossLines(t *testing.T) {
	def, err := Parse("r", "has a equal_to 1 or b equal_to 2\nand c equal_to 3")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []types.Combinator{types.CombinatorNone, types.CombinatorOr, types.CombinatorAnd}
	if len(def.Test.Terms) != len(want) {
		t.Fatalf("len(Terms) = %d, want %d", len(def.Test.Terms), len(want))
	}
	for i, term := range def.Test.Terms {
		if term.Combinator != want[i] {
			t.Errorf("Terms[%d].Combinator = %v, want %v", i, term.Combinator, want[i])
		}
	}
}
