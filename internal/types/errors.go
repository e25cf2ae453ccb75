package types

import "errors"

// Sentinel errors for Commissar operations.
var (
	// ErrEmptyCondition indicates a condition was built with no terms.
	ErrEmptyCondition = errors.New("condition has no terms")

	// ErrDanglingCombinator indicates an and/or with no preceding term.
	ErrDanglingCombinator = errors.New("combinator has no preceding term")

	// ErrMissingCombinator indicates a second term was added without and/or.
	ErrMissingCombinator = errors.New("term must be joined with and/or")

	// ErrMissingTestField indicates a test directive names no field.
	ErrMissingTestField = errors.New("test directive has no field")

	// ErrMissingTest indicates a rule definition carries no test directive.
	ErrMissingTest = errors.New("rule has no test directive")

	// ErrInvalidOperator indicates an unknown or misplaced operator.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrInvalidPattern indicates a matching_pattern regex failed to compile.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrInvalidLiteral indicates a literal of the wrong kind for its operator.
	ErrInvalidLiteral = errors.New("invalid literal")

	// ErrNoTargets indicates a rule without target entity types.
	ErrNoTargets = errors.New("rule has no target types")

	// ErrNoEvents indicates a rule without trigger events.
	ErrNoEvents = errors.New("rule has no trigger events")

	// ErrPathTooDeep indicates a field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrTooManyUniqueFields indicates a unique check exceeds MaxUniqueFields.
	ErrTooManyUniqueFields = errors.New("unique check has too many fields")

	// ErrSyntax indicates a rule body that cannot be parsed.
	ErrSyntax = errors.New("rule syntax error")

	// ErrRuleBookSealed indicates registration after the book was sealed.
	ErrRuleBookSealed = errors.New("rule book is sealed")

	// ErrDuplicateRule indicates two rules registered under the same name.
	ErrDuplicateRule = errors.New("duplicate rule name")

	// ErrCoercionFailed indicates a field value does not match the literal's kind.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrFieldNotFound indicates a field path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrRecordNotFound indicates a lookup by identity found nothing.
	ErrRecordNotFound = errors.New("record not found")

	// ErrLookupUnsupported indicates an entity without a lookup capability.
	ErrLookupUnsupported = errors.New("entity does not support lookups")

	// ErrUnknownAssociation indicates a child collection the schema does not declare.
	ErrUnknownAssociation = errors.New("unknown association")

	// ErrSaveAborted indicates an abort-on-fail rule refused persistence.
	ErrSaveAborted = errors.New("save aborted by rule")
)
