package abi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidth(t *testing.T) {
	tests := []struct {
		name string
		typ  *Type
		want uint64
	}{
		{"boolean", TypeBoolean, 1},
		{"uint32", TypeUInt32, 1},
		{"int32", TypeInt32, 1},
		{"uint64", TypeUInt64, 1},
		{"float32", TypeFloat32, 1},
		{"hash", TypeHash, 1},
		{"string", TypeString, 2},
		{"bytes", TypeBytes, 2},
		{"collection reference", CollectionReferenceTo("User"), 2},
		{"array", ArrayOf(TypeString), 3},
		{"map", MapOf(TypeString, TypeUInt32), 6},
		{"public key", TypePublicKey, 5},
		{"nullable uint32", NullableOf(TypeUInt32), 2},
		{"nullable string", NullableOf(TypeString), 3},
		{"nested nullable", NullableOf(NullableOf(TypeBoolean)), 3},
		{"empty struct", StructOf("Empty"), 0},
		{"struct", StructOf("Account", F("id", TypeString), F("balance", TypeUInt64), F("tags", ArrayOf(TypeString))), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.Width())
			assert.Equal(t, tt.want, Width(tt.typ))
		})
	}
}

func TestWidthPanicsOnInvalidKind(t *testing.T) {
	assert.Panics(t, func() { (&Type{}).Width() })
	assert.Panics(t, func() { (&Type{Kind: KindArray}).Width() })
	assert.Panics(t, func() { NullableOf(nil).Width() })
	assert.Panics(t, func() { ArrayOf(nil).Width() })
	assert.Panics(t, func() { MapOf(nil, TypeString).Width() })
	assert.Panics(t, func() { MapOf(TypeString, nil).Width() })
	assert.NotPanics(t, func() { ArrayOf(ArrayOf(TypeBoolean)).Width() })
}

func TestMapHeaderWidthIsTwoArrayHeaders(t *testing.T) {
	assert.Equal(t, uint64(2*ArrayHeaderWidth), MapOf(TypeString, TypeString).Width())
	assert.Equal(t, ArrayHeaderWidth+ArrayDataOffset, MapValueDataOffset)
}

func TestFieldOffset(t *testing.T) {
	typ := StructOf("Account",
		F("id", TypeString),
		F("owner", NullableOf(TypePublicKey)),
		F("balance", TypeUInt64),
	)

	off, ok := typ.FieldOffset("id")
	require.True(t, ok)
	assert.Equal(t, uint64(0), off)

	off, ok = typ.FieldOffset("balance")
	require.True(t, ok)
	assert.Equal(t, uint64(8), off)

	_, ok = typ.FieldOffset("missing")
	assert.False(t, ok)

	_, ok = TypeString.FieldOffset("id")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		typ     *Type
		wantErr string
	}{
		{"valid struct", StructOf("A", F("x", TypeUInt32)), ""},
		{"invalid kind", &Type{}, "invalid type kind 0"},
		{"array missing elem", &Type{Kind: KindArray}, "[]: missing type"},
		{"map missing key", &Type{Kind: KindMap, Elem: TypeString}, "<key>: missing type"},
		{"duplicate field", StructOf("A", F("x", TypeUInt32), F("x", TypeString)), `declares field "x" twice`},
		{"unnamed field", StructOf("A", F("", TypeUInt32)), "field without a name"},
		{"nested path", StructOf("A", F("inner", ArrayOf(NullableOf(nil)))), "inner[].?: missing type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTypeEqual(t *testing.T) {
	a := StructOf("A", F("m", MapOf(TypeString, NullableOf(TypeUInt32))))
	b := StructOf("A", F("m", MapOf(TypeString, NullableOf(TypeUInt32))))
	c := StructOf("A", F("m", MapOf(TypeString, NullableOf(TypeInt32))))
	d := StructOf("B", F("m", MapOf(TypeString, NullableOf(TypeUInt32))))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, CollectionReferenceTo("x").Equal(CollectionReferenceTo("y")))
}

func TestTypeString(t *testing.T) {
	typ := StructOf("Account", F("id", TypeString), F("tags", MapOf(TypeString, NullableOf(TypeUInt32))))
	assert.Equal(t, "struct Account{id: string, tags: map<string, nullable<uint32>>}", typ.String())
	assert.Equal(t, "collection_reference<User>", CollectionReferenceTo("User").String())
}

func TestParseKind(t *testing.T) {
	for k := KindBoolean; k <= KindPublicKey; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("tuple")
	assert.Error(t, err)
}

func TestTypeJSON(t *testing.T) {
	typ := StructOf("Account",
		F("id", TypeString),
		F("owner", CollectionReferenceTo("User")),
		F("balances", MapOf(TypeString, ArrayOf(TypeUInt64))),
		F("key", NullableOf(TypePublicKey)),
	)

	data, err := json.Marshal(typ)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "struct",
		"name": "Account",
		"fields": [
			{"name": "id", "type": {"kind": "string"}},
			{"name": "owner", "type": {"kind": "collection_reference", "collection": "User"}},
			{"name": "balances", "type": {"kind": "map", "key": {"kind": "string"}, "value": {"kind": "array", "value": {"kind": "uint64"}}}},
			{"name": "key", "type": {"kind": "nullable", "value": {"kind": "public_key"}}}
		]
	}`, string(data))

	var back Type
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, typ.Equal(&back))
}

func TestTypeUnmarshalJSONValidates(t *testing.T) {
	var typ Type
	err := json.Unmarshal([]byte(`{"kind":"array"}`), &typ)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing type")

	err = json.Unmarshal([]byte(`{"kind":"tuple"}`), &typ)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type kind")
}
