// Package prover assembles the advice tape a compiled program reads, hands
// it to an external proving engine, and decodes the record state and
// result the program left in memory.
//
// The proving engine itself is a black box behind the Prover interface.
package prover

import (
	"fmt"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/tape"
)

// TypeContextKey is the advice type of the caller's public key.
var TypeContextKey = abi.NullableOf(abi.TypePublicKey)

// Inputs are the values a program call reads from its advice tape, in
// order: caller key, record state, arguments.
type Inputs struct {
	// ABI is the call's ABI with an empty record state filled in when the
	// program declares none.
	ABI *abi.ABI

	// Key is the caller's public key, absent for anonymous calls.
	Key abi.Nullable

	This abi.Value
	Args []abi.Value
}

// Entry is one typed value on the advice tape.
type Entry struct {
	Name  string
	Type  *abi.Type
	Value abi.Value
}

// NewInputs checks every value against the ABI and returns the call
// inputs. A nil this is replaced by the zero record state. A non-nil key
// must be a valid point on secp256k1.
func NewInputs(a *abi.ABI, key *abi.PublicKey, this abi.Value, args []abi.Value) (*Inputs, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	a = a.WithEmptyThis()

	in := &Inputs{ABI: a, Key: abi.Null()}
	if key != nil {
		if _, err := key.ECDSA(); err != nil {
			return nil, abi.Within(err, "ctx", "public_key")
		}
		in.Key = abi.Some(*key)
	}

	if this == nil {
		this = a.DefaultThis()
	}
	if err := abi.Conforms(a.ThisType, this); err != nil {
		return nil, abi.Within(err, "this")
	}
	in.This = this

	if len(args) != len(a.ParamTypes) {
		return nil, abi.NewError(abi.CodeTypeMismatch, []string{"args"},
			"program takes %d arguments, got %d", len(a.ParamTypes), len(args))
	}
	for i, arg := range args {
		if err := abi.Conforms(a.ParamTypes[i], arg); err != nil {
			return nil, abi.Within(err, "args", abi.Index(i))
		}
	}
	in.Args = append([]abi.Value(nil), args...)
	return in, nil
}

// Entries lists the advice values in tape order.
func (in *Inputs) Entries() []Entry {
	out := make([]Entry, 0, 2+len(in.Args))
	out = append(out,
		Entry{Name: "ctx.public_key", Type: TypeContextKey, Value: in.Key},
		Entry{Name: "this", Type: in.ABI.ThisType, Value: in.This},
	)
	for i, arg := range in.Args {
		out = append(out, Entry{Name: fmt.Sprintf("args[%d]", i), Type: in.ABI.ParamTypes[i], Value: arg})
	}
	return out
}

// Tape serializes the inputs onto the advice tape:
//
//	[has_key, key..., this..., arg0..., arg1..., ...]
func (in *Inputs) Tape() []abi.Limb {
	var out []abi.Limb
	for _, e := range in.Entries() {
		out = tape.Append(out, e.Value)
	}
	return out
}
