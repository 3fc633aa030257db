package abi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes codec errors.
type ErrorCode string

const (
	// CodeAddressOutOfBounds indicates a required memory word was never written.
	CodeAddressOutOfBounds ErrorCode = "ADDRESS_OUT_OF_BOUNDS"

	// CodeInvalidBoolean indicates a boolean limb other than 0 or 1.
	CodeInvalidBoolean ErrorCode = "INVALID_BOOLEAN"

	// CodeInvalidEnumValue indicates a public key enumerant outside its range.
	CodeInvalidEnumValue ErrorCode = "INVALID_ENUM_VALUE"

	// CodeInvalidText indicates a String payload that is not valid UTF-8.
	CodeInvalidText ErrorCode = "INVALID_TEXT"

	// CodeInvalidKeyEncoding indicates a public key coordinate that is not
	// URL-safe base64 of exactly 32 bytes, or not a point on the curve.
	CodeInvalidKeyEncoding ErrorCode = "INVALID_KEY_ENCODING"

	// CodeMissingMapValue indicates an odd number of map tokens.
	CodeMissingMapValue ErrorCode = "MISSING_MAP_VALUE"

	// CodeMalformedText indicates an unparsable literal.
	CodeMalformedText ErrorCode = "MALFORMED_TEXT"

	// CodeSizeOverflow indicates a numeric value that does not fit its type.
	CodeSizeOverflow ErrorCode = "SIZE_OVERFLOW"

	// CodeBudgetExceeded indicates a length header asked for more payload
	// than the decode call is allowed to read.
	CodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"

	// CodeTypeMismatch indicates a value whose shape does not match its type.
	CodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// CodeTapeExhausted indicates a tape that ended before the value did.
	CodeTapeExhausted ErrorCode = "TAPE_EXHAUSTED"

	// CodeTapeTrailing indicates limbs left over after the value was read.
	CodeTapeTrailing ErrorCode = "TAPE_TRAILING"
)

// Sentinels for errors.Is matching. Only the Code is compared.
var (
	ErrAddressOutOfBounds = &Error{Code: CodeAddressOutOfBounds}
	ErrInvalidBoolean     = &Error{Code: CodeInvalidBoolean}
	ErrInvalidEnumValue   = &Error{Code: CodeInvalidEnumValue}
	ErrInvalidText        = &Error{Code: CodeInvalidText}
	ErrInvalidKeyEncoding = &Error{Code: CodeInvalidKeyEncoding}
	ErrMissingMapValue    = &Error{Code: CodeMissingMapValue}
	ErrMalformedText      = &Error{Code: CodeMalformedText}
	ErrSizeOverflow       = &Error{Code: CodeSizeOverflow}
	ErrBudgetExceeded     = &Error{Code: CodeBudgetExceeded}
	ErrTypeMismatch       = &Error{Code: CodeTypeMismatch}
	ErrTapeExhausted      = &Error{Code: CodeTapeExhausted}
	ErrTapeTrailing       = &Error{Code: CodeTapeTrailing}
)

// Error is the structured error returned by every codec.
//
// Path names the field being decoded when the error occurred, e.g.
// ["this", "items", "[2]", "name"]. Address is set for memory errors.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Path is the field path from the root value to the failing element.
	Path []string

	// Address is the memory word involved, valid when HasAddress is true.
	Address    Address
	HasAddress bool

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if p := FormatPath(e.Path); p != "" {
		b.WriteString(" at ")
		b.WriteString(p)
	}
	if e.HasAddress {
		b.WriteString(" (address ")
		b.WriteString(e.Address.String())
		b.WriteByte(')')
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// NewError creates an Error. The path is copied so callers may keep
// mutating their path stack.
func NewError(code ErrorCode, path []string, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, Path: clonePath(path), Message: msg}
}

// OutOfBounds creates an AddressOutOfBounds error for addr.
func OutOfBounds(path []string, addr Address, what string) *Error {
	return &Error{
		Code:       CodeAddressOutOfBounds,
		Path:       clonePath(path),
		Address:    addr,
		HasAddress: true,
		Message:    what + " was never written",
	}
}

// WithCause attaches an underlying error and returns e.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// FormatPath renders a field path: names are joined with dots and index
// segments ("[3]") attach to the preceding name.
func FormatPath(path []string) string {
	var b strings.Builder
	for i, seg := range path {
		if i > 0 && !strings.HasPrefix(seg, "[") {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

// Index formats an element index as a path segment.
func Index(i int) string {
	return fmt.Sprintf("[%d]", i)
}

func clonePath(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}

// Within returns a copy of err with root prepended to its path, for
// errors raised while checking a value nested under root. Errors that are
// not an *Error are returned unchanged.
func Within(err error, root ...string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	out := *e
	out.Path = append(clonePath(root), e.Path...)
	return &out
}
