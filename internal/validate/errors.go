package validate

import (
	"fmt"

	"github.com/0x4d5352/regaudit/internal/ast"
)

// Stable error codes. Existing values never change across versions; tests
// and tooling key off them.
const (
	CodeQuantifierInvalidRange     = "regex.quantifier.invalid_range"
	CodeRangeOutOfOrder            = "regex.range.out_of_order"
	CodeRangeInvalidEndpoint       = "regex.range.invalid_endpoint"
	CodeBackrefZero                = "regex.backref.zero"
	CodeBackrefMissingGroup        = "regex.backref.missing_group"
	CodeBackrefMissingName         = "regex.backref.missing_name"
	CodeBackrefRelativeOutOfRange  = "regex.backref.relative_out_of_range"
	CodeSubroutineMissingGroup     = "regex.subroutine.missing_group"
	CodeSubroutineMissingName      = "regex.subroutine.missing_name"
	CodeUnicodeOutOfRange          = "regex.unicode.out_of_range"
	CodeUnicodeInvalidOctal        = "regex.unicode.invalid_octal"
	CodeUnicodeOctalOutOfRange     = "regex.unicode.octal_out_of_range"
	CodeUnicodeUnknownNamed        = "regex.unicode.unknown_named"
	CodeUnicodeUnsupportedProperty = "regex.unicode.unsupported_property"
	CodePosixUnknownClass          = "regex.posix.unknown_class"
	CodePosixNegatedClass          = "regex.posix.negated_class"
	CodeAssertionUnknown           = "regex.assertion.unknown"
	CodeVerbUnknown                = "regex.verb.unknown"
	CodeLookbehindUnbounded        = "regex.lookbehind.unbounded"
	CodeLookbehindTooLong          = "regex.lookbehind.too_long"
	CodeKeepInLookbehind           = "regex.keep.in_lookbehind"
	CodeCalloutInvalidIdentifier   = "regex.callout.invalid_identifier"
	CodeControlOutOfRange          = "regex.control.out_of_range"
	CodeConditionalInvalid         = "regex.conditional.invalid_condition"
	CodeGroupDuplicateName         = "regex.group.duplicate_name"
)

// SemanticError is a fatal well-formedness failure. Code is a stable
// dot-separated identifier; Pos points into the original pattern source.
type SemanticError struct {
	Code    string
	Message string
	Pos     ast.Position
	Hint    string
	Snippet string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("%s at %d: %s", e.Code, e.Pos.Start, e.Message)
}

func semErr(code string, pos ast.Position, format string, args ...any) *SemanticError {
	return &SemanticError{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

func (e *SemanticError) withHint(hint string) *SemanticError {
	e.Hint = hint
	return e
}
