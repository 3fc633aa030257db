package tape

import (
	"math"
	"unicode/utf8"

	"github.com/roach88/zkabi/internal/abi"
)

// Decode reads one value of type t from the whole tape, the way the
// compiled program consumes its advice. Limbs left over after the value
// fail with TapeTrailing; a tape that ends early fails with TapeExhausted.
func Decode(t *abi.Type, limbs []abi.Limb) (abi.Value, error) {
	r := &reader{limbs: limbs}
	v, err := r.value(t)
	if err != nil {
		return nil, err
	}
	if r.pos != len(limbs) {
		return nil, abi.NewError(abi.CodeTapeTrailing, nil, "%d limbs left after value", len(limbs)-r.pos)
	}
	return v, nil
}

// DecodePrefix reads one value of type t from the front of the tape and
// returns the unread remainder.
func DecodePrefix(t *abi.Type, limbs []abi.Limb) (abi.Value, []abi.Limb, error) {
	r := &reader{limbs: limbs}
	v, err := r.value(t)
	if err != nil {
		return nil, nil, err
	}
	return v, limbs[r.pos:], nil
}

type reader struct {
	limbs []abi.Limb
	pos   int
	path  []string
}

func (r *reader) next(what string) (abi.Limb, error) {
	if r.pos >= len(r.limbs) {
		return 0, abi.NewError(abi.CodeTapeExhausted, r.path, "tape ended at limb %d reading %s", r.pos, what)
	}
	l := r.limbs[r.pos]
	r.pos++
	return l, nil
}

func (r *reader) u32(what string) (uint32, error) {
	l, err := r.next(what)
	if err != nil {
		return 0, err
	}
	if l > math.MaxUint32 {
		return 0, abi.NewError(abi.CodeSizeOverflow, r.path, "%s limb %d exceeds 32 bits", what, l)
	}
	return uint32(l), nil
}

// maxZeroWidthElements caps the count of a collection whose elements take
// no limbs, such as an array of empty structs. Such a count is not bounded
// by the tape length.
const maxZeroWidthElements = 1 << 20

// length reads a length prefix for n elements of at least minLimbs limbs
// each and checks that the tape can hold them, so a forged length never
// drives an allocation.
func (r *reader) length(what string, minLimbs int) (int, error) {
	l, err := r.next(what)
	if err != nil {
		return 0, err
	}
	left := uint64(len(r.limbs) - r.pos)
	if minLimbs == 0 {
		if l > maxZeroWidthElements {
			return 0, abi.NewError(abi.CodeBudgetExceeded, r.path, "%s %d exceeds %d empty elements", what, l, maxZeroWidthElements)
		}
		return int(l), nil
	}
	if l > left/uint64(minLimbs) {
		return 0, abi.NewError(abi.CodeTapeExhausted, r.path, "%s %d exceeds the %d limbs left", what, l, left)
	}
	return int(l), nil
}

// minLimbs is the fewest limbs a value of type t can take on the tape.
func minLimbs(t *abi.Type) int {
	switch t.Kind {
	case abi.KindUInt64:
		return 2
	case abi.KindHash:
		return abi.LimbsPerWord
	case abi.KindMap:
		return 2
	case abi.KindPublicKey:
		return 4 + abi.PublicKeyPayloadWords
	case abi.KindStruct:
		n := 0
		for _, f := range t.Fields {
			n += minLimbs(f.Type)
		}
		return n
	default:
		return 1
	}
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.length("length", 1)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		l, _ := r.next("byte")
		if l > math.MaxUint8 {
			return nil, abi.NewError(abi.CodeSizeOverflow, append(r.path, abi.Index(i)), "byte limb %d exceeds 8 bits", l)
		}
		out[i] = byte(l)
	}
	return out, nil
}

func (r *reader) elements(t *abi.Type, n int) ([]abi.Value, error) {
	out := make([]abi.Value, n)
	for i := range out {
		r.path = append(r.path, abi.Index(i))
		v, err := r.value(t)
		if err != nil {
			return nil, err
		}
		r.path = r.path[:len(r.path)-1]
		out[i] = v
	}
	return out, nil
}

func (r *reader) value(t *abi.Type) (abi.Value, error) {
	switch t.Kind {
	case abi.KindNullable:
		flag, err := r.next("nullable flag")
		if err != nil {
			return nil, err
		}
		switch flag {
		case 0:
			return abi.Null(), nil
		case 1:
			v, err := r.value(t.Elem)
			if err != nil {
				return nil, err
			}
			return abi.Some(v), nil
		}
		return nil, abi.NewError(abi.CodeInvalidBoolean, r.path, "nullable flag is %d", flag)

	case abi.KindBoolean:
		l, err := r.next("boolean")
		if err != nil {
			return nil, err
		}
		if l > 1 {
			return nil, abi.NewError(abi.CodeInvalidBoolean, r.path, "boolean limb is %d", l)
		}
		return abi.Boolean(l == 1), nil

	case abi.KindUInt32:
		v, err := r.u32("uint32")
		if err != nil {
			return nil, err
		}
		return abi.UInt32(v), nil

	case abi.KindInt32:
		v, err := r.u32("int32")
		if err != nil {
			return nil, err
		}
		return abi.Int32(int32(v)), nil

	case abi.KindFloat32:
		v, err := r.u32("float32")
		if err != nil {
			return nil, err
		}
		return abi.Float32(math.Float32frombits(v)), nil

	case abi.KindUInt64:
		high, err := r.u32("uint64 high")
		if err != nil {
			return nil, err
		}
		low, err := r.u32("uint64 low")
		if err != nil {
			return nil, err
		}
		return abi.UInt64(uint64(high)<<32 | uint64(low)), nil

	case abi.KindHash:
		var h abi.Hash
		for i := range h {
			l, err := r.next("hash")
			if err != nil {
				return nil, err
			}
			h[i] = l
		}
		return h, nil

	case abi.KindString:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, abi.NewError(abi.CodeInvalidText, r.path, "string payload is not valid UTF-8")
		}
		return abi.String(b), nil

	case abi.KindBytes:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return abi.Bytes(b), nil

	case abi.KindCollectionReference:
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return abi.CollectionReference(b), nil

	case abi.KindArray:
		n, err := r.length("array length", minLimbs(t.Elem))
		if err != nil {
			return nil, err
		}
		elems, err := r.elements(t.Elem, n)
		if err != nil {
			return nil, err
		}
		return abi.Array(elems), nil

	case abi.KindMap:
		n, err := r.length("map key count", minLimbs(t.Key)+minLimbs(t.Elem))
		if err != nil {
			return nil, err
		}
		r.path = append(r.path, "<keys>")
		keys, err := r.elements(t.Key, n)
		if err != nil {
			return nil, err
		}
		r.path[len(r.path)-1] = "<values>"
		m, err := r.length("map value count", minLimbs(t.Elem))
		if err != nil {
			return nil, err
		}
		if m != n {
			return nil, abi.NewError(abi.CodeMissingMapValue, r.path, "%d keys but %d values", n, m)
		}
		values, err := r.elements(t.Elem, m)
		if err != nil {
			return nil, err
		}
		r.path = r.path[:len(r.path)-1]
		out := make(abi.Map, n)
		for i := range out {
			out[i] = abi.MapEntry{Key: keys[i], Value: values[i]}
		}
		return out, nil

	case abi.KindPublicKey:
		return r.publicKey()

	case abi.KindStruct:
		out := make(abi.Struct, len(t.Fields))
		for i, f := range t.Fields {
			r.path = append(r.path, f.Name)
			v, err := r.value(f.Type)
			if err != nil {
				return nil, err
			}
			r.path = r.path[:len(r.path)-1]
			out[i] = abi.FieldValue{Name: f.Name, Value: v}
		}
		return out, nil

	default:
		return nil, abi.NewError(abi.CodeTypeMismatch, r.path, "cannot decode type %s", t.Kind)
	}
}

func (r *reader) publicKey() (abi.Value, error) {
	var key abi.PublicKey
	var limbs [4]abi.Limb
	names := [4]string{"kty", "crv", "alg", "use"}
	for i, name := range names {
		l, err := r.next(name)
		if err != nil {
			return nil, err
		}
		limbs[i] = l
	}
	var ok [4]bool
	key.Kty, ok[0] = abi.EnumFromLimb(limbs[0], abi.Kty.Valid)
	key.Crv, ok[1] = abi.EnumFromLimb(limbs[1], abi.Crv.Valid)
	key.Alg, ok[2] = abi.EnumFromLimb(limbs[2], abi.Alg.Valid)
	key.Use, ok[3] = abi.EnumFromLimb(limbs[3], abi.Use.Valid)
	for i, valid := range ok {
		if !valid {
			return nil, abi.NewError(abi.CodeInvalidEnumValue, append(r.path, names[i]), "undefined %s %d", names[i], limbs[i])
		}
	}

	var payload [abi.PublicKeyPayloadWords]byte
	for i := range payload {
		l, err := r.next("public key payload")
		if err != nil {
			return nil, err
		}
		if l > math.MaxUint8 {
			return nil, abi.NewError(abi.CodeSizeOverflow, r.path, "public key byte %d exceeds 8 bits", l)
		}
		payload[i] = byte(l)
	}
	copy(key.X[:], payload[:abi.PublicKeyCoordinateBytes])
	copy(key.Y[:], payload[abi.PublicKeyCoordinateBytes:])
	return key, nil
}
