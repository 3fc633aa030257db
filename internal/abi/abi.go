package abi

import (
	"encoding/json"
	"fmt"
)

// EmptyThisName is the struct name used for programs that declare no
// record state.
const EmptyThisName = "Empty"

// ABI describes where a compiled program keeps its record state and
// result in memory, and the types of its parameters in advice order.
type ABI struct {
	// ThisAddr is the memory address of the record state. Set exactly
	// when ThisType is set.
	ThisAddr *Address `json:"this_addr,omitempty"`
	ThisType *Type    `json:"this_type,omitempty"`

	// ParamTypes are the argument types, serialized onto the advice tape
	// after the record state.
	ParamTypes []*Type `json:"param_types"`

	// ResultAddr is the memory address of the return value. Set exactly
	// when ResultType is set.
	ResultAddr *Address `json:"result_addr,omitempty"`
	ResultType *Type    `json:"result_type,omitempty"`
}

// Addr returns a pointer to a, for building ABI literals.
func Addr(a uint64) *Address {
	addr := Address(a)
	return &addr
}

// Validate checks that every descriptor is well formed, that each
// address is paired with a type, and that the record state and result
// regions do not overlap.
func (a *ABI) Validate() error {
	if (a.ThisAddr == nil) != (a.ThisType == nil) {
		return fmt.Errorf("abi: this_addr and this_type must be set together")
	}
	if (a.ResultAddr == nil) != (a.ResultType == nil) {
		return fmt.Errorf("abi: result_addr and result_type must be set together")
	}
	if a.ThisType != nil {
		if err := a.ThisType.Validate(); err != nil {
			return fmt.Errorf("abi: this_type: %w", err)
		}
		if _, ok := a.ThisAddr.Offset(a.ThisType.Width()); !ok {
			return fmt.Errorf("abi: this region at %s overflows the address space", a.ThisAddr)
		}
	}
	for i, p := range a.ParamTypes {
		if p == nil {
			return fmt.Errorf("abi: param_types[%d]: missing type", i)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("abi: param_types[%d]: %w", i, err)
		}
	}
	if a.ResultType != nil {
		if err := a.ResultType.Validate(); err != nil {
			return fmt.Errorf("abi: result_type: %w", err)
		}
		if _, ok := a.ResultAddr.Offset(a.ResultType.Width()); !ok {
			return fmt.Errorf("abi: result region at %s overflows the address space", a.ResultAddr)
		}
	}
	if a.ThisType != nil && a.ResultType != nil && a.regionsOverlap() {
		return fmt.Errorf("abi: this region [%s, +%d) overlaps result region [%s, +%d)",
			a.ThisAddr, a.ThisType.Width(), a.ResultAddr, a.ResultType.Width())
	}
	return nil
}

func (a *ABI) regionsOverlap() bool {
	thisStart, thisEnd := uint64(*a.ThisAddr), uint64(*a.ThisAddr)+a.ThisType.Width()
	resStart, resEnd := uint64(*a.ResultAddr), uint64(*a.ResultAddr)+a.ResultType.Width()
	return thisStart < resEnd && resStart < thisEnd
}

// HasThis reports whether the program declares record state.
func (a *ABI) HasThis() bool {
	return a.ThisType != nil
}

// DefaultThis returns the zero value of the record state, or an empty
// struct if the program declares none.
func (a *ABI) DefaultThis() Value {
	if a.ThisType == nil {
		return Struct{}
	}
	return Zero(a.ThisType)
}

// WithEmptyThis returns a copy of the ABI in which a missing record state
// is replaced by an empty struct at address 0. Programs without state
// still read an (empty) record from the advice tape.
func (a *ABI) WithEmptyThis() *ABI {
	out := *a
	if out.ThisType == nil {
		out.ThisType = StructOf(EmptyThisName)
		out.ThisAddr = Addr(0)
	}
	return &out
}

// ID computes the content-addressed identity of the ABI.
func (a *ABI) ID() (string, error) {
	obj := map[string]any{}
	if a.ThisType != nil {
		obj["this_addr"] = uint64(*a.ThisAddr)
		obj["this_type"] = a.ThisType.jsonTree()
	}
	params := make([]any, len(a.ParamTypes))
	for i, p := range a.ParamTypes {
		params[i] = p.jsonTree()
	}
	obj["param_types"] = params
	if a.ResultType != nil {
		obj["result_addr"] = uint64(*a.ResultAddr)
		obj["result_type"] = a.ResultType.jsonTree()
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ABI.ID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainABI, canonical), nil
}

// ParseABI decodes and validates an ABI from its JSON interchange form.
func ParseABI(data []byte) (*ABI, error) {
	var a ABI
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	if a.ParamTypes == nil {
		a.ParamTypes = []*Type{}
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
