package memory

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkabi/internal/abi"
)

func w(limb0 abi.Limb) abi.Word {
	return abi.Word{limb0}
}

func requireDecodeError(t *testing.T, err error, code abi.ErrorCode) *abi.Error {
	t.Helper()
	require.Error(t, err)
	var abiErr *abi.Error
	require.True(t, errors.As(err, &abiErr), "expected *abi.Error, got %T", err)
	assert.Equal(t, code, abiErr.Code, "error: %v", err)
	return abiErr
}

func TestDecodePrimitives(t *testing.T) {
	tests := []struct {
		name string
		typ  *abi.Type
		word abi.Word
		want abi.Value
	}{
		{"false", abi.TypeBoolean, w(0), abi.Boolean(false)},
		{"true", abi.TypeBoolean, w(1), abi.Boolean(true)},
		{"uint32 max", abi.TypeUInt32, w(math.MaxUint32), abi.UInt32(math.MaxUint32)},
		{"int32 negative", abi.TypeInt32, w(0xffffffff), abi.Int32(-1)},
		{"int32 min", abi.TypeInt32, w(0x80000000), abi.Int32(math.MinInt32)},
		{"uint64 high limb", abi.TypeUInt64, abi.Word{1, 0}, abi.UInt64(4294967296)},
		{"uint64 both limbs", abi.TypeUInt64, abi.Word{0xdeadbeef, 0xcafebabe}, abi.UInt64(0xdeadbeefcafebabe)},
		{"float32", abi.TypeFloat32, w(abi.Limb(math.Float32bits(1.5))), abi.Float32(1.5)},
		{"hash", abi.TypeHash, abi.Word{1, 2, 3, 4}, abi.Hash{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.typ, Snapshot{7: tt.word}, 7)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFieldErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  *abi.Type
		word abi.Word
		code abi.ErrorCode
	}{
		{"boolean 2", abi.TypeBoolean, w(2), abi.CodeInvalidBoolean},
		{"uint32 too wide", abi.TypeUInt32, w(1 << 32), abi.CodeSizeOverflow},
		{"int32 too wide", abi.TypeInt32, w(1 << 40), abi.CodeSizeOverflow},
		{"uint64 high too wide", abi.TypeUInt64, abi.Word{1 << 32, 0}, abi.CodeSizeOverflow},
		{"float32 too wide", abi.TypeFloat32, w(1 << 33), abi.CodeSizeOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.typ, Snapshot{3: tt.word}, 3)
			e := requireDecodeError(t, err, tt.code)
			assert.True(t, e.HasAddress)
			assert.Equal(t, abi.Address(3), e.Address)
		})
	}
}

func TestDecodeMissingWord(t *testing.T) {
	_, err := Decode(abi.TypeUInt32, Snapshot{}, 42)
	e := requireDecodeError(t, err, abi.CodeAddressOutOfBounds)
	assert.Equal(t, abi.Address(42), e.Address)
	assert.True(t, errors.Is(err, abi.ErrAddressOutOfBounds))
}

func TestDecodeNullable(t *testing.T) {
	typ := abi.NullableOf(abi.TypeUInt32)

	got, err := Decode(typ, Snapshot{10: w(0)}, 10)
	require.NoError(t, err)
	assert.Equal(t, abi.Null(), got)

	got, err = Decode(typ, Snapshot{10: w(1), 11: w(9)}, 10)
	require.NoError(t, err)
	assert.Equal(t, abi.Some(abi.UInt32(9)), got)

	// Any non-zero flag means present.
	got, err = Decode(typ, Snapshot{10: w(5), 11: w(9)}, 10)
	require.NoError(t, err)
	assert.True(t, got.(abi.Nullable).Present())
}

func TestDecodeString(t *testing.T) {
	mem := Snapshot{
		0:   w(3),
		1:   w(100),
		100: w('a'),
		101: w(0x162), // truncated to 0x62 'b'
		102: w('c'),
	}
	got, err := Decode(abi.TypeString, mem, 0)
	require.NoError(t, err)
	assert.Equal(t, abi.String("abc"), got)
}

func TestDecodeStringInvalidUTF8(t *testing.T) {
	mem := Snapshot{0: w(1), 1: w(50), 50: w(0xff)}
	_, err := Decode(abi.TypeString, mem, 0)
	requireDecodeError(t, err, abi.CodeInvalidText)

	got, err := Decode(abi.TypeBytes, mem, 0)
	require.NoError(t, err)
	assert.Equal(t, abi.Bytes{0xff}, got)
}

func TestDecodeTruncatedString(t *testing.T) {
	// Length header claims 10 bytes but only 5 payload words exist.
	const p = 200
	mem := Snapshot{0: w(10), 1: w(p)}
	for i := abi.Address(0); i < 5; i++ {
		mem[p+i] = w('x')
	}

	_, err := Decode(abi.TypeString, mem, 0)
	e := requireDecodeError(t, err, abi.CodeAddressOutOfBounds)
	assert.Equal(t, abi.Address(p+5), e.Address, "must reference the 6th byte")
}

func TestDecodeArray(t *testing.T) {
	// array<nullable<uint32>>: stride 2
	typ := abi.ArrayOf(abi.NullableOf(abi.TypeUInt32))
	mem := Snapshot{
		0:  w(0),
		1:  w(3),
		2:  w(20),
		20: w(1), 21: w(7),
		22: w(0),
		24: w(1), 25: w(9),
	}
	got, err := Decode(typ, mem, 0)
	require.NoError(t, err)
	assert.Equal(t, abi.Array{abi.Some(abi.UInt32(7)), abi.Null(), abi.Some(abi.UInt32(9))}, got)
}

func TestDecodeEmptyArrayReadsNoPayload(t *testing.T) {
	got, err := Decode(abi.ArrayOf(abi.TypeString), Snapshot{0: w(0), 1: w(0), 2: w(999)}, 0)
	require.NoError(t, err)
	assert.Equal(t, abi.Array{}, got)
}

func TestDecodeMapLayoutOrder(t *testing.T) {
	typ := abi.MapOf(abi.TypeString, abi.TypeUInt32)
	mem := Snapshot{
		// key header
		0: w(0), 1: w(2), 2: w(10),
		// value header
		3: w(0), 4: w(2), 5: w(30),
		// keys: "b", "a"
		10: w(1), 11: w(40),
		12: w(1), 13: w(41),
		40: w('b'), 41: w('a'),
		// values: 2, 1
		30: w(2), 31: w(1),
	}

	got, err := Decode(typ, mem, 0)
	require.NoError(t, err)
	assert.Equal(t, abi.Map{
		abi.E(abi.String("b"), abi.UInt32(2)),
		abi.E(abi.String("a"), abi.UInt32(1)),
	}, got)
}

func TestDecodeStructErrorPath(t *testing.T) {
	typ := abi.StructOf("Account",
		abi.F("id", abi.TypeUInt32),
		abi.F("items", abi.ArrayOf(abi.StructOf("Item", abi.F("name", abi.TypeString), abi.F("ok", abi.TypeBoolean)))),
	)
	mem := Snapshot{
		0: w(1),
		// items header at 1
		1: w(0), 2: w(2), 3: w(10),
		// item[0] at 10: name header, ok
		10: w(0), 11: w(0), 12: w(1),
		// item[1] at 13: name header, ok = 3
		13: w(0), 14: w(0), 15: w(3),
	}

	_, err := NewDecoder().DecodeAt(typ, mem, 0, []string{"this"})
	e := requireDecodeError(t, err, abi.CodeInvalidBoolean)
	assert.Equal(t, "this.items[1].ok", abi.FormatPath(e.Path))
	assert.Equal(t, abi.Address(15), e.Address)
}

func TestDecodePublicKey(t *testing.T) {
	key := abi.PublicKey{Kty: abi.KtyEC, Crv: abi.CrvSecp256k1, Alg: abi.AlgES256K, Use: abi.UseSig}
	for i := range key.X {
		key.X[i] = byte(i + 1)
		key.Y[i] = byte(200 + i)
	}
	mem, err := Lay(abi.TypePublicKey, key, 0)
	require.NoError(t, err)

	got, err := Decode(abi.TypePublicKey, mem, 0)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	mem[abi.PublicKeyAlgOffset] = w(7)
	_, err = Decode(abi.TypePublicKey, mem, 0)
	e := requireDecodeError(t, err, abi.CodeInvalidEnumValue)
	assert.Equal(t, "alg", abi.FormatPath(e.Path))
}

func TestDecodeBudget(t *testing.T) {
	mem, err := Lay(abi.TypeString, abi.String("hello world"), 0)
	require.NoError(t, err)

	_, err = NewDecoder(WithBudget(10)).Decode(abi.TypeString, mem, 0)
	requireDecodeError(t, err, abi.CodeBudgetExceeded)

	got, err := NewDecoder(WithBudget(11)).Decode(abi.TypeString, mem, 0)
	require.NoError(t, err)
	assert.Equal(t, abi.String("hello world"), got)
}

func TestDecodeBudgetStopsHugeLength(t *testing.T) {
	// A forged length must fail before any payload word is requested.
	reads := 0
	r := ReaderFunc(func(addr abi.Address) (abi.Word, bool) {
		reads++
		switch addr {
		case 1:
			return w(math.MaxUint64), true
		case 2:
			return w(1000), true
		}
		return abi.Word{}, addr == 0
	})

	_, err := Decode(abi.ArrayOf(abi.TypeUInt32), r, 0)
	requireDecodeError(t, err, abi.CodeBudgetExceeded)
	assert.Equal(t, 2, reads, "only the length and pointer slots are read")
}

func TestDecodeBudgetIsPerCall(t *testing.T) {
	mem, err := Lay(abi.TypeBytes, abi.Bytes{1, 2, 3, 4}, 0)
	require.NoError(t, err)

	d := NewDecoder(WithBudget(4))
	for i := 0; i < 3; i++ {
		_, err := d.Decode(abi.TypeBytes, mem, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(4), d.Budget())
}

func TestDecodeAddressOverflow(t *testing.T) {
	mem := Snapshot{0: w(2), 1: w(math.MaxUint64), math.MaxUint64: w('a')}
	_, err := Decode(abi.TypeBytes, mem, 0)
	requireDecodeError(t, err, abi.CodeAddressOutOfBounds)
}

func TestDecodeConcurrent(t *testing.T) {
	typ := abi.StructOf("S", abi.F("name", abi.TypeString), abi.F("tags", abi.ArrayOf(abi.TypeUInt64)))
	v := abi.Struct{
		abi.V("name", abi.String("concurrent")),
		abi.V("tags", abi.Array{abi.UInt64(1), abi.UInt64(1 << 40)}),
	}
	mem, err := Lay(typ, v, 100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Decode(typ, mem, 100)
			if err == nil && !abi.Equal(v, got) {
				err = errors.New("decoded value differs")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
