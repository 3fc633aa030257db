package compiler

import (
	"fmt"

	"github.com/roach88/zkabi/internal/abi"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedInput = "E100" // unsupported input type for validation

	// ABI errors (E101-E109)
	ErrAddressWithoutType = "E101" // addr and type must be set together
	ErrInvalidType        = "E102" // malformed type descriptor
	ErrRegionOverflow     = "E103" // region runs past the end of memory
	ErrRegionOverlap      = "E104" // this and result regions overlap
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled Schema or a bare ABI.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch in := v.(type) {
	case *Schema:
		errs := []ValidationError{}
		for _, t := range in.Types {
			errs = append(errs, validateType("types."+t.Name, t)...)
		}
		return append(errs, validateABI(in.ABI)...)
	case *abi.ABI:
		return validateABI(in)
	case abi.ABI:
		return validateABI(&in)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported input type: %T", v),
			Code:    ErrUnsupportedInput,
		}}
	}
}

func validateABI(a *abi.ABI) []ValidationError {
	errs := []ValidationError{}
	if a == nil {
		return errs
	}

	thisOK := validateRegion(&errs, "abi.this", a.ThisAddr, a.ThisType)
	for i, p := range a.ParamTypes {
		errs = append(errs, validateType(fmt.Sprintf("abi.params[%d]", i), p)...)
	}
	resultOK := validateRegion(&errs, "abi.result", a.ResultAddr, a.ResultType)

	// E104: only meaningful once both regions are well formed
	if thisOK && resultOK && a.ThisType != nil && a.ResultType != nil {
		thisStart, thisEnd := uint64(*a.ThisAddr), uint64(*a.ThisAddr)+a.ThisType.Width()
		resStart, resEnd := uint64(*a.ResultAddr), uint64(*a.ResultAddr)+a.ResultType.Width()
		if thisStart < resEnd && resStart < thisEnd {
			errs = append(errs, ValidationError{
				Field: "abi.result",
				Message: fmt.Sprintf("result region [%d, %d) overlaps this region [%d, %d)",
					resStart, resEnd, thisStart, thisEnd),
				Code: ErrRegionOverlap,
			})
		}
	}
	return errs
}

// validateRegion appends region errors and reports whether the region is
// usable for the overlap check.
func validateRegion(errs *[]ValidationError, field string, addr *abi.Address, t *abi.Type) bool {
	// E101: address and type are a pair
	if (addr == nil) != (t == nil) {
		*errs = append(*errs, ValidationError{
			Field:   field,
			Message: "addr and type must be set together",
			Code:    ErrAddressWithoutType,
		})
		return false
	}
	if t == nil {
		return true
	}

	typeErrs := validateType(field+".type", t)
	if len(typeErrs) > 0 {
		*errs = append(*errs, typeErrs...)
		return false
	}

	// E103: the last word must be addressable
	if _, ok := addr.Offset(t.Width()); !ok {
		*errs = append(*errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%d words at %s overflow the address space", t.Width(), addr),
			Code:    ErrRegionOverflow,
		})
		return false
	}
	return true
}

// validateType reports E102 for a malformed descriptor.
func validateType(field string, t *abi.Type) []ValidationError {
	if err := t.Validate(); err != nil {
		return []ValidationError{{
			Field:   field,
			Message: err.Error(),
			Code:    ErrInvalidType,
		}}
	}
	return nil
}
