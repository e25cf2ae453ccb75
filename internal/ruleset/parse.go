// internal/ruleset/parse.go
package ruleset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/commissar/internal/types"
)

/*
 * Rule body parser.
 *
 * A rule body is plain text with one directive per statement. Statements end
 * at a newline or a ';' outside quotes, and '#' starts a comment that runs to
 * the end of the line.
 *
 * Directives:
 *   check T1, T2         target entity types
 *   on E1, E2            trigger events
 *   with F OP V          start the gate chain
 *   has F OP V           start the test chain
 *                        (either may continue inline: with F OP V and F OP V or ...)
 *   and F OP V           extend the current chain with logical and
 *   or F OP V            extend the current chain with logical or
 *   has_required F       test: field present and non-empty
 *   has_unique F1, F2    test: no other persisted entity shares these values
 *   has_not_changed F    test: field matches the persisted value
 *   for_each CHILD       apply the test to every element of a collection
 *   for_outcome S1, S2   statuses the rule contributes to
 *   to_complete          failing aborts the triggering event
 *
 * The parser only checks shape. Operator names, literal kinds and chain
 * structure are validated by rules.Compile so every configuration error is
 * reported the same way regardless of where the definition came from.
 */

// section is the chain that and/or extend.
type section int

const (
	sectionNone section = iota
	sectionGate
	sectionTest
)

// token is one word of a statement.
type token struct {
	text   string
	quoted bool
}

// statement is one directive with its arguments.
type statement struct {
	line   int
	tokens []token
}

// Parse turns a rule body into a definition named name. The trimmed body
// becomes the definition's Source.
func Parse(name, body string) (*types.RuleDefinition, error) {
	stmts, err := split(body)
	if err != nil {
		return nil, err
	}

	def := &types.RuleDefinition{Name: name, Source: strings.TrimSpace(body)}
	current := sectionNone

	for _, st := range stmts {
		keyword := st.tokens[0]
		args := st.tokens[1:]
		if keyword.quoted {
			return nil, syntaxErr(st.line, "directive expected, found quoted text")
		}

		switch keyword.text {
		case "check":
			words, err := words(st.line, keyword.text, args)
			if err != nil {
				return nil, err
			}
			def.Targets = append(def.Targets, words...)

		case "on":
			words, err := words(st.line, keyword.text, args)
			if err != nil {
				return nil, err
			}
			def.Events = append(def.Events, words...)

		case "with":
			terms, err := parseTerms(st.line, types.CombinatorNone, args)
			if err != nil {
				return nil, err
			}
			def.Gate = append(def.Gate, terms...)
			current = sectionGate

		case "has":
			if def.Test.Kind != types.TestUnspecified {
				return nil, syntaxErr(st.line, "rule already has a test")
			}
			terms, err := parseTerms(st.line, types.CombinatorNone, args)
			if err != nil {
				return nil, err
			}
			def.Test = types.Test{Kind: types.TestCompare, Terms: terms}
			current = sectionTest

		case "and", "or":
			comb := types.CombinatorAnd
			if keyword.text == "or" {
				comb = types.CombinatorOr
			}
			terms, err := parseTerms(st.line, comb, args)
			if err != nil {
				return nil, err
			}
			switch current {
			case sectionGate:
				def.Gate = append(def.Gate, terms...)
			case sectionTest:
				def.Test.Terms = append(def.Test.Terms, terms...)
			default:
				return nil, fmt.Errorf("%w: line %d: %q must follow with or has",
					types.ErrDanglingCombinator, st.line, keyword.text)
			}

		case "has_required", "has_not_changed":
			if def.Test.Kind != types.TestUnspecified {
				return nil, syntaxErr(st.line, "rule already has a test")
			}
			field, err := single(st.line, keyword.text, args)
			if err != nil {
				return nil, err
			}
			kind := types.TestRequired
			if keyword.text == "has_not_changed" {
				kind = types.TestUnchanged
			}
			def.Test = types.Test{Kind: kind, Field: field}
			current = sectionNone

		case "has_unique":
			if def.Test.Kind != types.TestUnspecified {
				return nil, syntaxErr(st.line, "rule already has a test")
			}
			fields, err := words(st.line, keyword.text, args)
			if err != nil {
				return nil, err
			}
			def.Test = types.Test{Kind: types.TestUnique, Fields: fields}
			current = sectionNone

		case "for_each":
			if def.ChildField != "" {
				return nil, syntaxErr(st.line, "for_each given twice")
			}
			field, err := single(st.line, keyword.text, args)
			if err != nil {
				return nil, err
			}
			def.ChildField = field

		case "for_outcome":
			words, err := words(st.line, keyword.text, args)
			if err != nil {
				return nil, err
			}
			def.Outcomes = append(def.Outcomes, words...)

		case "to_complete":
			if len(args) != 0 {
				return nil, syntaxErr(st.line, "to_complete takes no arguments")
			}
			def.AbortOnFail = true

		default:
			return nil, syntaxErr(st.line, fmt.Sprintf("unknown directive %q", keyword.text))
		}
	}

	return def, nil
}

// parseTerms reads "FIELD OP VALUE" optionally followed by further
// "and|or FIELD OP VALUE" groups on the same statement. The first term gets
// comb; each later one gets the combinator that precedes it.
func parseTerms(line int, comb types.Combinator, args []token) ([]types.Term, error) {
	var terms []types.Term
	for {
		if len(args) < 3 {
			return nil, syntaxErr(line, "expected FIELD OPERATOR VALUE")
		}
		if args[0].quoted || args[1].quoted {
			return nil, syntaxErr(line, "field and operator must be bare words")
		}
		terms = append(terms, types.Term{
			Combinator: comb,
			Field:      args[0].text,
			Operator:   args[1].text,
			Value:      ParseLiteral(args[2].text, args[2].quoted),
		})
		args = args[3:]
		if len(args) == 0 {
			return terms, nil
		}

		switch next := args[0]; {
		case !next.quoted && next.text == "and":
			comb = types.CombinatorAnd
		case !next.quoted && next.text == "or":
			comb = types.CombinatorOr
		default:
			return nil, syntaxErr(line, fmt.Sprintf("expected \"and\" or \"or\", found %q", next.text))
		}
		args = args[1:]
	}
}

// ParseLiteral classifies a DSL value. Quoted text is always a string;
// bare words are tried as a number, then a date, then fall back to a string.
func ParseLiteral(text string, quoted bool) types.Literal {
	if quoted {
		return types.StringLiteral(text)
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return types.NumberLiteral(n)
	}
	if d, err := time.Parse(time.DateOnly, text); err == nil {
		return types.DateLiteral(d)
	}
	if d, err := time.Parse(time.RFC3339, text); err == nil {
		return types.DateLiteral(d)
	}
	return types.StringLiteral(text)
}

func words(line int, directive string, args []token) ([]string, error) {
	if len(args) == 0 {
		return nil, syntaxErr(line, directive+" needs at least one name")
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.text
	}
	return out, nil
}

func single(line int, directive string, args []token) (string, error) {
	if len(args) != 1 {
		return "", syntaxErr(line, directive+" takes exactly one field")
	}
	return args[0].text, nil
}

func syntaxErr(line int, msg string) error {
	return fmt.Errorf("%w: line %d: %s", types.ErrSyntax, line, msg)
}

// split tokenizes body into statements. Commas and whitespace separate
// words; quotes may be single or double, with backslash escapes in double
// quotes.
func split(body string) ([]statement, error) {
	var (
		stmts []statement
		cur   statement
		word  strings.Builder
		inTok bool
	)
	line := 1
	cur.line = line

	flushWord := func(quoted bool) {
		if inTok || quoted {
			cur.tokens = append(cur.tokens, token{text: word.String(), quoted: quoted})
		}
		word.Reset()
		inTok = false
	}
	flushStmt := func() {
		flushWord(false)
		if len(cur.tokens) > 0 {
			stmts = append(stmts, cur)
		}
		cur = statement{line: line}
	}

	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\n':
			flushStmt()
			line++
			cur.line = line
		case r == ';':
			flushStmt()
		case r == '#':
			flushStmt()
			for i+1 < len(runes) && runes[i+1] != '\n' {
				i++
			}
		case r == ',' || r == ' ' || r == '\t' || r == '\r':
			flushWord(false)
		case r == '"' || r == '\'':
			if inTok {
				return nil, syntaxErr(line, "quote inside a word")
			}
			end, text, err := readQuoted(runes, i)
			if err != nil {
				return nil, syntaxErr(line, err.Error())
			}
			word.WriteString(text)
			flushWord(true)
			i = end
		default:
			word.WriteRune(r)
			inTok = true
		}
	}
	flushStmt()
	return stmts, nil
}

// readQuoted reads a quoted string starting at runes[start] and returns the
// index of the closing quote.
func readQuoted(runes []rune, start int) (int, string, error) {
	quote := runes[start]
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if quote == '"' {
				i++
			}
		case '\n':
			return 0, "", fmt.Errorf("unterminated string")
		case quote:
			raw := string(runes[start : i+1])
			if quote == '\'' {
				return i, raw[1 : len(raw)-1], nil
			}
			text, err := strconv.Unquote(raw)
			if err != nil {
				return 0, "", fmt.Errorf("bad string %s", raw)
			}
			return i, text, nil
		}
	}
	return 0, "", fmt.Errorf("unterminated string")
}
