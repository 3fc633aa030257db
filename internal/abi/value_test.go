package abi

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time check that all value variants implement Value
var (
	_ Value = Nullable{}
	_ Value = Boolean(false)
	_ Value = UInt32(0)
	_ Value = Int32(0)
	_ Value = UInt64(0)
	_ Value = Float32(0)
	_ Value = Hash{}
	_ Value = String("")
	_ Value = Bytes(nil)
	_ Value = CollectionReference(nil)
	_ Value = Array(nil)
	_ Value = Map(nil)
	_ Value = Struct(nil)
	_ Value = PublicKey{}
)

func TestEqual(t *testing.T) {
	nan := Float32(math.Float32frombits(0x7fc00001))

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same uint32", UInt32(7), UInt32(7), true},
		{"different kinds", UInt32(7), Int32(7), false},
		{"nan by bits", nan, nan, true},
		{"negative zero differs", Float32(0), Float32(math.Copysign(0, -1)), false},
		{"bytes", Bytes{1, 2}, Bytes{1, 2}, true},
		{"bytes differ", Bytes{1, 2}, Bytes{1, 3}, false},
		{"null vs some", Null(), Some(Boolean(true)), false},
		{"some equal", Some(String("a")), Some(String("a")), true},
		{"map order matters", Map{E(String("a"), UInt32(1)), E(String("b"), UInt32(2))}, Map{E(String("b"), UInt32(2)), E(String("a"), UInt32(1))}, false},
		{"struct", Struct{V("x", UInt32(1))}, Struct{V("x", UInt32(1))}, true},
		{"struct field name", Struct{V("x", UInt32(1))}, Struct{V("y", UInt32(1))}, false},
		{"hash", Hash{1, 2, 3, 4}, Hash{1, 2, 3, 4}, true},
		{"nil", nil, nil, true},
		{"nil vs value", nil, Boolean(false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestConforms(t *testing.T) {
	account := StructOf("Account",
		F("id", TypeString),
		F("balances", MapOf(TypeString, ArrayOf(TypeUInt64))),
		F("owner", NullableOf(TypePublicKey)),
	)

	good := Struct{
		V("id", String("a")),
		V("balances", Map{E(String("usd"), Array{UInt64(1), UInt64(2)})}),
		V("owner", Null()),
	}
	require.NoError(t, Conforms(account, good))

	bad := Struct{
		V("id", String("a")),
		V("balances", Map{E(String("usd"), Array{UInt64(1), UInt32(2)})}),
		V("owner", Null()),
	}
	err := Conforms(account, bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	var abiErr *Error
	require.True(t, errors.As(err, &abiErr))
	assert.Equal(t, "balances[0].value[1]", FormatPath(abiErr.Path))
}

func TestConformsStructShape(t *testing.T) {
	typ := StructOf("P", F("x", TypeUInt32), F("y", TypeUInt32))

	err := Conforms(typ, Struct{V("x", UInt32(1))})
	assert.True(t, IsCode(err, CodeTypeMismatch))

	err = Conforms(typ, Struct{V("y", UInt32(1)), V("x", UInt32(2))})
	assert.True(t, IsCode(err, CodeTypeMismatch))

	err = Conforms(typ, Struct{V("x", UInt32(1)), V("y", nil)})
	assert.True(t, IsCode(err, CodeTypeMismatch))
}

func TestConformsPublicKeyEnums(t *testing.T) {
	key := PublicKey{Kty: KtyEC, Crv: CrvSecp256k1, Alg: AlgES256K, Use: 9}
	err := Conforms(TypePublicKey, key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidEnumValue))
	assert.Contains(t, err.Error(), "use")
}

func TestZero(t *testing.T) {
	typ := StructOf("Account",
		F("id", TypeString),
		F("active", TypeBoolean),
		F("balance", TypeUInt64),
		F("tags", ArrayOf(TypeString)),
		F("meta", MapOf(TypeString, TypeBytes)),
		F("owner", NullableOf(TypePublicKey)),
		F("key", TypePublicKey),
		F("digest", TypeHash),
	)

	zero := Zero(typ)
	require.NoError(t, Conforms(typ, zero))

	s := zero.(Struct)
	id, ok := s.Get("id")
	require.True(t, ok)
	assert.Equal(t, String(""), id)

	owner, _ := s.Get("owner")
	assert.False(t, owner.(Nullable).Present())

	key, _ := s.Get("key")
	assert.Equal(t, KtyEC, key.(PublicKey).Kty)
	assert.Equal(t, UseSig, key.(PublicKey).Use)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}
