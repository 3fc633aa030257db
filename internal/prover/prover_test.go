package prover

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/memory"
	"github.com/roach88/zkabi/internal/tape"
)

var counterType = abi.StructOf("Counter",
	abi.F("count", abi.TypeUInt64),
	abi.F("label", abi.TypeString),
)

func counterABI() *abi.ABI {
	return &abi.ABI{
		ThisAddr:   abi.Addr(100),
		ThisType:   counterType,
		ParamTypes: []*abi.Type{abi.TypeUInt32},
		ResultAddr: abi.Addr(200),
		ResultType: abi.TypeBoolean,
	}
}

func counter(n uint64, label string) abi.Struct {
	return abi.Struct{abi.V("count", abi.UInt64(n)), abi.V("label", abi.String(label))}
}

func testKey(t *testing.T) abi.PublicKey {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	return abi.PublicKeyFromECDSA(&priv.PublicKey)
}

// counterProver stands in for the proving engine: it reads the advice
// tape, adds the argument to the count and writes the new record and
// whether a key was present into memory.
func counterProver(a *abi.ABI) Prover {
	return ProverFunc(func(ctx context.Context, program []byte, advice []abi.Limb) (*Output, error) {
		key, rest, err := tape.DecodePrefix(TypeContextKey, advice)
		if err != nil {
			return nil, err
		}
		this, rest, err := tape.DecodePrefix(a.ThisType, rest)
		if err != nil {
			return nil, err
		}
		arg, rest, err := tape.DecodePrefix(a.ParamTypes[0], rest)
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, fmt.Errorf("%d advice limbs unread", len(rest))
		}

		old := this.(abi.Struct)
		count := uint64(old[0].Value.(abi.UInt64)) + uint64(arg.(abi.UInt32))
		next := abi.Struct{abi.V("count", abi.UInt64(count)), old[1]}

		l := memory.NewLayout(1000)
		if err := l.Write(a.ThisType, next, *a.ThisAddr); err != nil {
			return nil, err
		}
		if err := l.Write(a.ResultType, abi.Boolean(key.(abi.Nullable).Present()), *a.ResultAddr); err != nil {
			return nil, err
		}
		return &Output{Stack: []abi.Limb{count}, Memory: l.Snapshot(), Proof: []byte(string(program) + "-proof")}, nil
	})
}

func TestNewInputsDefaults(t *testing.T) {
	in, err := NewInputs(counterABI(), nil, nil, []abi.Value{abi.UInt32(7)})
	require.NoError(t, err)

	assert.True(t, abi.Equal(counter(0, ""), in.This), "zero record state")
	assert.False(t, in.Key.Present())
	assert.Equal(t, []abi.Limb{0, 0, 0, 0, 7}, in.Tape())
}

func TestNewInputsWithKey(t *testing.T) {
	key := testKey(t)

	in, err := NewInputs(counterABI(), &key, counter(1, "a"), []abi.Value{abi.UInt32(2)})
	require.NoError(t, err)

	got := in.Tape()
	require.Len(t, got, 1+4+abi.PublicKeyPayloadWords+2+2+1)
	assert.Equal(t, []abi.Limb{1, 1, 1, 1, 1}, got[:5])
	assert.Equal(t, abi.Limb(key.X[0]), got[5])
	assert.Equal(t, []abi.Limb{0, 1, 1, 'a', 2}, got[len(got)-5:])
}

func TestNewInputsEmptyThis(t *testing.T) {
	a := &abi.ABI{ParamTypes: []*abi.Type{abi.TypeString}}

	in, err := NewInputs(a, nil, nil, []abi.Value{abi.String("hi")})
	require.NoError(t, err)

	assert.Equal(t, abi.EmptyThisName, in.ABI.ThisType.Name)
	assert.Equal(t, abi.Address(0), *in.ABI.ThisAddr)
	assert.Nil(t, a.ThisType, "caller's ABI untouched")
	assert.Equal(t, []abi.Limb{0, 2, 'h', 'i'}, in.Tape(), "empty record adds no limbs")
}

func TestEntriesConcatenateToTape(t *testing.T) {
	key := testKey(t)
	in, err := NewInputs(counterABI(), &key, counter(9, "xy"), []abi.Value{abi.UInt32(3)})
	require.NoError(t, err)

	var joined []abi.Limb
	var names []string
	for _, e := range in.Entries() {
		require.NoError(t, abi.Conforms(e.Type, e.Value))
		joined = append(joined, tape.Serialize(e.Value)...)
		names = append(names, e.Name)
	}
	assert.Equal(t, in.Tape(), joined)
	assert.Equal(t, []string{"ctx.public_key", "this", "args[0]"}, names)
}

func TestNewInputsErrors(t *testing.T) {
	offCurve := abi.PublicKey{Kty: abi.KtyEC, Crv: abi.CrvSecp256k1, Alg: abi.AlgES256K, Use: abi.UseSig}

	tests := []struct {
		name string
		key  *abi.PublicKey
		this abi.Value
		args []abi.Value
		code abi.ErrorCode
		path string
	}{
		{"arg count", nil, nil, nil, abi.CodeTypeMismatch, "args"},
		{"arg type", nil, nil, []abi.Value{abi.String("x")}, abi.CodeTypeMismatch, "args[0]"},
		{"this type", nil, abi.UInt32(1), []abi.Value{abi.UInt32(1)}, abi.CodeTypeMismatch, "this"},
		{"off curve key", &offCurve, nil, []abi.Value{abi.UInt32(1)}, abi.CodeInvalidKeyEncoding, "ctx.public_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := NewInputs(counterABI(), tt.key, tt.this, tt.args)
			require.Error(t, err)
			assert.Nil(t, in)

			var abiErr *abi.Error
			require.ErrorAs(t, err, &abiErr)
			assert.Equal(t, tt.code, abiErr.Code, "error: %v", err)
			assert.Equal(t, tt.path, abi.FormatPath(abiErr.Path))
		})
	}
}

func TestNewInputsInvalidABI(t *testing.T) {
	a := &abi.ABI{ThisAddr: abi.Addr(1)}
	_, err := NewInputs(a, nil, nil, nil)
	assert.ErrorContains(t, err, "this_addr and this_type must be set together")
}

func TestRun(t *testing.T) {
	a := counterABI()
	key := testKey(t)
	in, err := NewInputs(a, &key, counter(5, "visits"), []abi.Value{abi.UInt32(7)})
	require.NoError(t, err)

	res, err := Run(context.Background(), counterProver(a), []byte("prog"), in)
	require.NoError(t, err)

	assert.True(t, abi.Equal(counter(5, "visits"), res.OldThis))
	assert.True(t, abi.Equal(counter(12, "visits"), res.NewThis), "got %#v", res.NewThis)
	assert.Equal(t, abi.Boolean(true), res.Value)
	assert.Equal(t, []abi.Limb{12}, res.Stack)
	assert.Equal(t, []byte("prog-proof"), res.Proof)
	assert.Equal(t, in.Tape(), res.Advice)
}

func TestRunBudget(t *testing.T) {
	a := counterABI()
	in, err := NewInputs(a, nil, counter(0, "hello"), []abi.Value{abi.UInt32(1)})
	require.NoError(t, err)

	_, err = Run(context.Background(), counterProver(a), nil, in, memory.WithBudget(4))
	require.Error(t, err)

	var abiErr *abi.Error
	require.ErrorAs(t, err, &abiErr)
	assert.Equal(t, abi.CodeBudgetExceeded, abiErr.Code)
	assert.Equal(t, "this.label", abi.FormatPath(abiErr.Path))
}

func TestRunProverFailure(t *testing.T) {
	in, err := NewInputs(counterABI(), nil, nil, []abi.Value{abi.UInt32(1)})
	require.NoError(t, err)

	boom := errors.New("engine crashed")
	failing := ProverFunc(func(context.Context, []byte, []abi.Limb) (*Output, error) { return nil, boom })
	_, err = Run(context.Background(), failing, nil, in)
	assert.ErrorIs(t, err, boom)

	empty := ProverFunc(func(context.Context, []byte, []abi.Limb) (*Output, error) { return &Output{}, nil })
	_, err = Run(context.Background(), empty, nil, in)
	assert.ErrorContains(t, err, "no memory")
}

func TestDecodeOutputsMissingResult(t *testing.T) {
	a := &abi.ABI{ThisAddr: abi.Addr(0), ThisType: abi.TypeUInt32}
	mem := memory.Snapshot{0: {42}}

	this, result, err := DecodeOutputs(a, mem)
	require.NoError(t, err)
	assert.Equal(t, abi.UInt32(42), this)
	assert.Nil(t, result)

	_, _, err = DecodeOutputs(&abi.ABI{ResultAddr: abi.Addr(5), ResultType: abi.TypeUInt32}, mem)
	assert.True(t, abi.IsCode(err, abi.CodeAddressOutOfBounds))
}
