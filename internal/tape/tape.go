// Package tape converts ABI values to and from the canonical limb tape fed
// to the prover as advice input.
//
// The tape is pointer free: variable-length data is written inline behind
// its length, so the compiled program reads it sequentially.
//
//	nullable     [0] | [1, inner...]
//	boolean      [0|1]
//	uint32       [n]
//	int32        [32-bit two's complement pattern]
//	float32      [IEEE-754 bit pattern]
//	uint64       [high32, low32]
//	hash         [l0, l1, l2, l3]
//	string/bytes [len, b0, b1, ...]
//	array        [len, elem...]
//	map          [n, key..., n, value...]
//	public_key   [kty, crv, alg, use, x(32 bytes), y(32 bytes)]
//	struct       fields concatenated in declaration order
package tape

import (
	"math"

	"github.com/roach88/zkabi/internal/abi"
)

// Serialize appends the canonical encoding of v to a new tape. It is total
// over values that conform to their type.
func Serialize(v abi.Value) []abi.Limb {
	return Append(nil, v)
}

// Append appends the canonical encoding of v to dst and returns the
// extended tape.
func Append(dst []abi.Limb, v abi.Value) []abi.Limb {
	switch val := v.(type) {
	case abi.Nullable:
		if !val.Present() {
			return append(dst, 0)
		}
		return Append(append(dst, 1), val.Value)
	case abi.Boolean:
		if val {
			return append(dst, 1)
		}
		return append(dst, 0)
	case abi.UInt32:
		return append(dst, abi.Limb(val))
	case abi.Int32:
		return append(dst, abi.Limb(uint32(val)))
	case abi.Float32:
		return append(dst, abi.Limb(math.Float32bits(float32(val))))
	case abi.UInt64:
		return append(dst, abi.Limb(val)>>32, abi.Limb(val)&math.MaxUint32)
	case abi.Hash:
		return append(dst, val[:]...)
	case abi.String:
		return appendBytes(dst, []byte(val))
	case abi.Bytes:
		return appendBytes(dst, val)
	case abi.CollectionReference:
		return appendBytes(dst, val)
	case abi.Array:
		dst = append(dst, abi.Limb(len(val)))
		for _, e := range val {
			dst = Append(dst, e)
		}
		return dst
	case abi.Map:
		dst = append(dst, abi.Limb(len(val)))
		for _, e := range val {
			dst = Append(dst, e.Key)
		}
		dst = append(dst, abi.Limb(len(val)))
		for _, e := range val {
			dst = Append(dst, e.Value)
		}
		return dst
	case abi.PublicKey:
		dst = append(dst, abi.Limb(val.Kty), abi.Limb(val.Crv), abi.Limb(val.Alg), abi.Limb(val.Use))
		for _, b := range val.Payload() {
			dst = append(dst, abi.Limb(b))
		}
		return dst
	case abi.Struct:
		for _, f := range val {
			dst = Append(dst, f.Value)
		}
		return dst
	default:
		return dst
	}
}

func appendBytes(dst []abi.Limb, b []byte) []abi.Limb {
	dst = append(dst, abi.Limb(len(b)))
	for _, c := range b {
		dst = append(dst, abi.Limb(c))
	}
	return dst
}
