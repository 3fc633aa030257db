package tape_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/memory"
	"github.com/roach88/zkabi/internal/tape"
)

func fixture() (*abi.Type, abi.Value) {
	typ := abi.StructOf("Record",
		abi.F("id", abi.TypeString),
		abi.F("balance", abi.TypeUInt64),
		abi.F("tags", abi.ArrayOf(abi.NullableOf(abi.TypeString))),
		abi.F("index", abi.MapOf(abi.TypeString, abi.TypeInt32)),
		abi.F("owner", abi.NullableOf(abi.TypePublicKey)),
	)
	v := abi.Struct{
		abi.V("id", abi.String("r-1")),
		abi.V("balance", abi.UInt64(1<<40)),
		abi.V("tags", abi.Array{abi.Null(), abi.Some(abi.String("x"))}),
		abi.V("index", abi.Map{abi.E(abi.String("b"), abi.Int32(-2)), abi.E(abi.String("a"), abi.Int32(1))}),
		abi.V("owner", abi.Some(abi.Zero(abi.TypePublicKey))),
	}
	return typ, v
}

func TestTapeAndMemoryAgree(t *testing.T) {
	// A value decoded from memory serializes to the same tape as the
	// value it was laid out from.
	typ, v := fixture()

	mem, err := memory.Lay(typ, v, 64)
	require.NoError(t, err)
	fromMemory, err := memory.Decode(typ, mem, 64)
	require.NoError(t, err)

	assert.Equal(t, tape.Serialize(v), tape.Serialize(fromMemory))
}

