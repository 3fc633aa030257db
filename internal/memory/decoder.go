package memory

import (
	"math"
	"unicode/utf8"

	"github.com/roach88/zkabi/internal/abi"
)

// Decoder reads values out of VM memory following the layout described by
// a type descriptor. A Decoder holds configuration only and is safe for
// concurrent use.
type Decoder struct {
	budget uint64
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithBudget sets the payload units (bytes plus elements) each decode call
// may read. Zero permits only fixed-width values and empty payloads.
func WithBudget(units uint64) Option {
	return func(d *Decoder) {
		d.budget = units
	}
}

// NewDecoder creates a Decoder with DefaultBudget unless overridden.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{budget: DefaultBudget}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Budget returns the per-call budget.
func (d *Decoder) Budget() uint64 {
	return d.budget
}

var defaultDecoder = NewDecoder()

// Decode reads a value of type t stored at addr using DefaultBudget.
func Decode(t *abi.Type, r WordReader, addr abi.Address) (abi.Value, error) {
	return defaultDecoder.Decode(t, r, addr)
}

// Decode reads a value of type t stored at addr.
//
// Errors are *abi.Error values carrying the field path and, for memory
// faults, the address involved. Decoding stops at the first failure; no
// partial value is returned.
func (d *Decoder) Decode(t *abi.Type, r WordReader, addr abi.Address) (abi.Value, error) {
	return d.DecodeAt(t, r, addr, nil)
}

// DecodeAt is like Decode but prefixes every error path with root, e.g.
// []string{"this"}.
func (d *Decoder) DecodeAt(t *abi.Type, r WordReader, addr abi.Address, root []string) (abi.Value, error) {
	s := &decodeState{
		r:      r,
		budget: budget{limit: d.budget},
		path:   append([]string(nil), root...),
	}
	return s.decode(t, addr)
}

// decodeState is the per-call state of one Decode.
type decodeState struct {
	r      WordReader
	budget budget
	path   []string
}

func (s *decodeState) push(seg string) { s.path = append(s.path, seg) }
func (s *decodeState) pop()            { s.path = s.path[:len(s.path)-1] }

// word reads the word at addr or reports AddressOutOfBounds.
func (s *decodeState) word(addr abi.Address, what string) (abi.Word, error) {
	w, ok := s.r.ReadWord(addr)
	if !ok {
		return abi.Word{}, abi.OutOfBounds(s.path, addr, what)
	}
	return w, nil
}

// limb reads limb0 of the word at addr.
func (s *decodeState) limb(addr abi.Address, what string) (abi.Limb, error) {
	w, err := s.word(addr, what)
	if err != nil {
		return 0, err
	}
	return w[0], nil
}

// offset computes addr+n, reporting AddressOutOfBounds on overflow.
func (s *decodeState) offset(addr abi.Address, n uint64) (abi.Address, error) {
	a, ok := addr.Offset(n)
	if !ok {
		err := abi.NewError(abi.CodeAddressOutOfBounds, s.path, "address %s + %d overflows", addr, n)
		err.Address, err.HasAddress = addr, true
		return 0, err
	}
	return a, nil
}

// field reads limb0 of the header slot at addr+off.
func (s *decodeState) field(addr abi.Address, off uint64, what string) (abi.Limb, error) {
	a, err := s.offset(addr, off)
	if err != nil {
		return 0, err
	}
	return s.limb(a, what)
}

func (s *decodeState) fault(code abi.ErrorCode, addr abi.Address, format string, args ...any) error {
	err := abi.NewError(code, s.path, format, args...)
	err.Address, err.HasAddress = addr, true
	return err
}

func (s *decodeState) u32(addr abi.Address, what string) (uint32, error) {
	l, err := s.limb(addr, what)
	if err != nil {
		return 0, err
	}
	if l > math.MaxUint32 {
		return 0, s.fault(abi.CodeSizeOverflow, addr, "%s limb %d exceeds 32 bits", what, l)
	}
	return uint32(l), nil
}

func (s *decodeState) decode(t *abi.Type, addr abi.Address) (abi.Value, error) {
	switch t.Kind {
	case abi.KindBoolean:
		l, err := s.limb(addr, "boolean")
		if err != nil {
			return nil, err
		}
		switch l {
		case 0:
			return abi.Boolean(false), nil
		case 1:
			return abi.Boolean(true), nil
		}
		return nil, s.fault(abi.CodeInvalidBoolean, addr, "boolean limb is %d", l)

	case abi.KindUInt32:
		v, err := s.u32(addr, "uint32")
		if err != nil {
			return nil, err
		}
		return abi.UInt32(v), nil

	case abi.KindInt32:
		v, err := s.u32(addr, "int32")
		if err != nil {
			return nil, err
		}
		return abi.Int32(int32(v)), nil

	case abi.KindUInt64:
		w, err := s.word(addr, "uint64")
		if err != nil {
			return nil, err
		}
		// limb0 = high 32 bits, limb1 = low 32 bits
		if w[0] > math.MaxUint32 || w[1] > math.MaxUint32 {
			return nil, s.fault(abi.CodeSizeOverflow, addr, "uint64 halves %d, %d exceed 32 bits", w[0], w[1])
		}
		return abi.UInt64(w[0]<<32 | w[1]), nil

	case abi.KindFloat32:
		bits, err := s.u32(addr, "float32")
		if err != nil {
			return nil, err
		}
		return abi.Float32(math.Float32frombits(bits)), nil

	case abi.KindHash:
		w, err := s.word(addr, "hash")
		if err != nil {
			return nil, err
		}
		return abi.Hash(w), nil

	case abi.KindNullable:
		flag, err := s.limb(addr, "nullable flag")
		if err != nil {
			return nil, err
		}
		if flag == 0 {
			return abi.Null(), nil
		}
		inner, err := s.offset(addr, abi.NullableFlagWidth)
		if err != nil {
			return nil, err
		}
		v, err := s.decode(t.Elem, inner)
		if err != nil {
			return nil, err
		}
		return abi.Some(v), nil

	case abi.KindStruct:
		return s.decodeStruct(t, addr)

	case abi.KindString, abi.KindBytes, abi.KindCollectionReference:
		b, err := s.decodeBytes(addr)
		if err != nil {
			return nil, err
		}
		switch t.Kind {
		case abi.KindString:
			if !utf8.Valid(b) {
				return nil, s.fault(abi.CodeInvalidText, addr, "string payload is not valid UTF-8")
			}
			return abi.String(b), nil
		case abi.KindBytes:
			return abi.Bytes(b), nil
		default:
			return abi.CollectionReference(b), nil
		}

	case abi.KindArray:
		return s.decodeArray(t, addr)

	case abi.KindMap:
		return s.decodeMap(t, addr)

	case abi.KindPublicKey:
		return s.decodePublicKey(addr)

	default:
		return nil, abi.NewError(abi.CodeTypeMismatch, s.path, "cannot decode type %s", t.Kind)
	}
}

func (s *decodeState) decodeStruct(t *abi.Type, addr abi.Address) (abi.Value, error) {
	out := make(abi.Struct, len(t.Fields))
	var off uint64
	for i, f := range t.Fields {
		s.push(f.Name)
		at, err := s.offset(addr, off)
		if err != nil {
			return nil, err
		}
		v, err := s.decode(f.Type, at)
		if err != nil {
			return nil, err
		}
		s.pop()
		out[i] = abi.FieldValue{Name: f.Name, Value: v}
		off += f.Type.Width()
	}
	return out, nil
}

// decodeBytes reads a [length, dataPtr] header and its out-of-line bytes.
func (s *decodeState) decodeBytes(addr abi.Address) ([]byte, error) {
	n, err := s.field(addr, abi.StringLengthOffset, "length")
	if err != nil {
		return nil, err
	}
	ptr, err := s.field(addr, abi.StringDataOffset, "data pointer")
	if err != nil {
		return nil, err
	}
	if err := s.budget.charge(s.path, addr, n); err != nil {
		return nil, err
	}
	return s.readBytes(abi.Address(ptr), n, "byte")
}

// readBytes reads n consecutive words from ptr, keeping the low byte of
// each limb0.
func (s *decodeState) readBytes(ptr abi.Address, n uint64, what string) ([]byte, error) {
	out := make([]byte, n)
	for i := uint64(0); i < n; i++ {
		a, err := s.offset(ptr, i)
		if err != nil {
			return nil, err
		}
		l, err := s.limb(a, what)
		if err != nil {
			return nil, err
		}
		out[i] = byte(l)
	}
	return out, nil
}

// elements decodes n values of type t packed at ptr with stride width(t).
func (s *decodeState) elements(t *abi.Type, ptr abi.Address, n uint64) ([]abi.Value, error) {
	out := make([]abi.Value, n)
	stride := t.Width()
	at := ptr
	for i := uint64(0); i < n; i++ {
		s.push(abi.Index(int(i)))
		v, err := s.decode(t, at)
		if err != nil {
			return nil, err
		}
		s.pop()
		out[i] = v
		if i+1 < n {
			if at, err = s.offset(at, stride); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (s *decodeState) decodeArray(t *abi.Type, addr abi.Address) (abi.Value, error) {
	n, err := s.field(addr, abi.ArrayLengthOffset, "array length")
	if err != nil {
		return nil, err
	}
	ptr, err := s.field(addr, abi.ArrayDataOffset, "array data pointer")
	if err != nil {
		return nil, err
	}
	if err := s.budget.charge(s.path, addr, n); err != nil {
		return nil, err
	}
	elems, err := s.elements(t.Elem, abi.Address(ptr), n)
	if err != nil {
		return nil, err
	}
	return abi.Array(elems), nil
}

func (s *decodeState) decodeMap(t *abi.Type, addr abi.Address) (abi.Value, error) {
	// The key count is authoritative; the value header's length slot is
	// not consulted.
	n, err := s.field(addr, abi.MapKeyLengthOffset, "map length")
	if err != nil {
		return nil, err
	}
	keyPtr, err := s.field(addr, abi.MapKeyDataOffset, "map key pointer")
	if err != nil {
		return nil, err
	}
	valuePtr, err := s.field(addr, abi.MapValueDataOffset, "map value pointer")
	if err != nil {
		return nil, err
	}
	// One unit per key and one per value.
	if err := s.budget.charge(s.path, addr, n); err != nil {
		return nil, err
	}
	if err := s.budget.charge(s.path, addr, n); err != nil {
		return nil, err
	}

	s.push("<keys>")
	keys, err := s.elements(t.Key, abi.Address(keyPtr), n)
	if err != nil {
		return nil, err
	}
	s.pop()

	s.push("<values>")
	values, err := s.elements(t.Elem, abi.Address(valuePtr), n)
	if err != nil {
		return nil, err
	}
	s.pop()

	out := make(abi.Map, n)
	for i := range out {
		out[i] = abi.MapEntry{Key: keys[i], Value: values[i]}
	}
	return out, nil
}

func (s *decodeState) decodePublicKey(addr abi.Address) (abi.Value, error) {
	var key abi.PublicKey
	var ok bool

	enum := func(off uint64, name string) (abi.Limb, abi.Address, error) {
		s.push(name)
		defer s.pop()
		a, err := s.offset(addr, off)
		if err != nil {
			return 0, 0, err
		}
		l, err := s.limb(a, name)
		return l, a, err
	}

	l, a, err := enum(abi.PublicKeyKtyOffset, "kty")
	if err != nil {
		return nil, err
	}
	if key.Kty, ok = abi.EnumFromLimb(l, abi.Kty.Valid); !ok {
		return nil, s.enumFault("kty", a, l)
	}
	l, a, err = enum(abi.PublicKeyCrvOffset, "crv")
	if err != nil {
		return nil, err
	}
	if key.Crv, ok = abi.EnumFromLimb(l, abi.Crv.Valid); !ok {
		return nil, s.enumFault("crv", a, l)
	}
	l, a, err = enum(abi.PublicKeyAlgOffset, "alg")
	if err != nil {
		return nil, err
	}
	if key.Alg, ok = abi.EnumFromLimb(l, abi.Alg.Valid); !ok {
		return nil, s.enumFault("alg", a, l)
	}
	l, a, err = enum(abi.PublicKeyUseOffset, "use")
	if err != nil {
		return nil, err
	}
	if key.Use, ok = abi.EnumFromLimb(l, abi.Use.Valid); !ok {
		return nil, s.enumFault("use", a, l)
	}

	ptr, err := s.field(addr, abi.PublicKeyExtraOffset, "public key payload pointer")
	if err != nil {
		return nil, err
	}
	if err := s.budget.charge(s.path, addr, abi.PublicKeyPayloadWords); err != nil {
		return nil, err
	}
	payload, err := s.readBytes(abi.Address(ptr), abi.PublicKeyPayloadWords, "public key payload")
	if err != nil {
		return nil, err
	}
	copy(key.X[:], payload[:abi.PublicKeyCoordinateBytes])
	copy(key.Y[:], payload[abi.PublicKeyCoordinateBytes:])
	return key, nil
}

func (s *decodeState) enumFault(name string, addr abi.Address, l abi.Limb) error {
	s.push(name)
	defer s.pop()
	return s.fault(abi.CodeInvalidEnumValue, addr, "undefined %s %d", name, l)
}
