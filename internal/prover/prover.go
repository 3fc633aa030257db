package prover

import (
	"context"
	"fmt"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/memory"
)

// Output is what the proving engine returns for one execution.
type Output struct {
	// Stack is the operand stack at program exit.
	Stack []abi.Limb

	// Memory is the VM memory at program exit.
	Memory memory.WordReader

	Proof []byte
}

// Prover executes a compiled program over an advice tape and proves the
// execution. Implementations must be safe for concurrent use.
type Prover interface {
	Prove(ctx context.Context, program []byte, advice []abi.Limb) (*Output, error)
}

// ProverFunc adapts a function to the Prover interface.
type ProverFunc func(ctx context.Context, program []byte, advice []abi.Limb) (*Output, error)

// Prove calls f.
func (f ProverFunc) Prove(ctx context.Context, program []byte, advice []abi.Limb) (*Output, error) {
	return f(ctx, program, advice)
}

// Result is a proved call with its record state before and after.
type Result struct {
	OldThis abi.Value
	NewThis abi.Value

	// Value is the decoded return value, nil when the ABI declares none.
	Value abi.Value

	Advice []abi.Limb
	Stack  []abi.Limb
	Proof  []byte
}

// Run proves one call and decodes its outputs from the returned memory.
// The decoder options bound each read-back.
func Run(ctx context.Context, p Prover, program []byte, in *Inputs, opts ...memory.Option) (*Result, error) {
	advice := in.Tape()
	out, err := p.Prove(ctx, program, advice)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	if out == nil || out.Memory == nil {
		return nil, fmt.Errorf("prove: engine returned no memory")
	}

	res := &Result{
		OldThis: in.This,
		Advice:  advice,
		Stack:   out.Stack,
		Proof:   out.Proof,
	}
	res.NewThis, res.Value, err = DecodeOutputs(in.ABI, out.Memory, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DecodeOutputs reads the record state and the result from memory. Either
// is nil when the ABI does not declare it.
func DecodeOutputs(a *abi.ABI, mem memory.WordReader, opts ...memory.Option) (this, result abi.Value, err error) {
	dec := memory.NewDecoder(opts...)
	if a.ThisType != nil {
		this, err = dec.DecodeAt(a.ThisType, mem, *a.ThisAddr, []string{"this"})
		if err != nil {
			return nil, nil, err
		}
	}
	if a.ResultType != nil {
		result, err = dec.DecodeAt(a.ResultType, mem, *a.ResultAddr, []string{"result"})
		if err != nil {
			return nil, nil, err
		}
	}
	return this, result, nil
}
