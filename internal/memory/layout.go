package memory

import (
	"math"

	"github.com/roach88/zkabi/internal/abi"
)

// Layout writes values into a fresh Snapshot exactly as the target program
// lays them out, allocating out-of-line payloads from a bump pointer.
//
// Layout is the inverse of Decoder and is used to seed record state and
// to build fixtures. It is not safe for concurrent use.
type Layout struct {
	mem  Snapshot
	next abi.Address
}

// NewLayout creates a Layout whose payload allocations start at heap.
func NewLayout(heap abi.Address) *Layout {
	return &Layout{mem: make(Snapshot), next: heap}
}

// Snapshot returns the memory written so far. The Layout keeps writing
// into the same map.
func (l *Layout) Snapshot() Snapshot {
	return l.mem
}

// Next returns the address the next payload allocation will use.
func (l *Layout) Next() abi.Address {
	return l.next
}

// Alloc reserves n consecutive words and returns the first address.
func (l *Layout) Alloc(n uint64) (abi.Address, error) {
	start := l.next
	end, ok := start.Offset(n)
	if !ok {
		return 0, abi.NewError(abi.CodeSizeOverflow, nil, "allocating %d words at %s overflows", n, start)
	}
	l.next = end
	return start, nil
}

// Write lays v, which must conform to t, at addr. Headers go at addr and
// payloads are allocated from the heap.
func (l *Layout) Write(t *abi.Type, v abi.Value, addr abi.Address) error {
	if err := abi.Conforms(t, v); err != nil {
		return err
	}
	return l.write(t, v, addr)
}

// Lay writes v at base and allocates payloads right after it, returning
// the resulting memory.
func Lay(t *abi.Type, v abi.Value, base abi.Address) (Snapshot, error) {
	heap, ok := base.Offset(t.Width())
	if !ok {
		return nil, abi.NewError(abi.CodeSizeOverflow, nil, "value at %s overflows the address space", base)
	}
	l := NewLayout(heap)
	if err := l.Write(t, v, base); err != nil {
		return nil, err
	}
	return l.Snapshot(), nil
}

func (l *Layout) put(addr abi.Address, off uint64, limb0 abi.Limb) {
	a, _ := addr.Offset(off)
	l.mem[a] = abi.Word{limb0}
}

func (l *Layout) write(t *abi.Type, v abi.Value, addr abi.Address) error {
	switch val := v.(type) {
	case abi.Boolean:
		var b abi.Limb
		if val {
			b = 1
		}
		l.put(addr, 0, b)
	case abi.UInt32:
		l.put(addr, 0, abi.Limb(val))
	case abi.Int32:
		l.put(addr, 0, abi.Limb(uint32(val)))
	case abi.UInt64:
		l.mem[addr] = abi.Word{abi.Limb(val) >> 32, abi.Limb(val) & math.MaxUint32}
	case abi.Float32:
		l.put(addr, 0, abi.Limb(math.Float32bits(float32(val))))
	case abi.Hash:
		l.mem[addr] = abi.Word(val)
	case abi.Nullable:
		if !val.Present() {
			l.put(addr, 0, 0)
			return nil
		}
		l.put(addr, 0, 1)
		return l.write(t.Elem, val.Value, addr+abi.NullableFlagWidth)
	case abi.Struct:
		var off uint64
		for i, f := range t.Fields {
			if err := l.write(f.Type, val[i].Value, addr+abi.Address(off)); err != nil {
				return err
			}
			off += f.Type.Width()
		}
	case abi.String:
		return l.writeBytes([]byte(val), addr)
	case abi.Bytes:
		return l.writeBytes(val, addr)
	case abi.CollectionReference:
		return l.writeBytes(val, addr)
	case abi.Array:
		ptr, err := l.writeElements(t.Elem, []abi.Value(val))
		if err != nil {
			return err
		}
		l.put(addr, abi.ArrayReservedOffset, 0)
		l.put(addr, abi.ArrayLengthOffset, abi.Limb(len(val)))
		l.put(addr, abi.ArrayDataOffset, abi.Limb(ptr))
	case abi.Map:
		keys := make([]abi.Value, len(val))
		values := make([]abi.Value, len(val))
		for i, e := range val {
			keys[i], values[i] = e.Key, e.Value
		}
		keyPtr, err := l.writeElements(t.Key, keys)
		if err != nil {
			return err
		}
		valuePtr, err := l.writeElements(t.Elem, values)
		if err != nil {
			return err
		}
		l.put(addr, abi.ArrayReservedOffset, 0)
		l.put(addr, abi.MapKeyLengthOffset, abi.Limb(len(val)))
		l.put(addr, abi.MapKeyDataOffset, abi.Limb(keyPtr))
		l.put(addr, abi.ArrayHeaderWidth+abi.ArrayReservedOffset, 0)
		l.put(addr, abi.MapValueLengthOffset, abi.Limb(len(val)))
		l.put(addr, abi.MapValueDataOffset, abi.Limb(valuePtr))
	case abi.PublicKey:
		ptr, err := l.Alloc(abi.PublicKeyPayloadWords)
		if err != nil {
			return err
		}
		for i, b := range val.Payload() {
			l.put(ptr, uint64(i), abi.Limb(b))
		}
		l.put(addr, abi.PublicKeyKtyOffset, abi.Limb(val.Kty))
		l.put(addr, abi.PublicKeyCrvOffset, abi.Limb(val.Crv))
		l.put(addr, abi.PublicKeyAlgOffset, abi.Limb(val.Alg))
		l.put(addr, abi.PublicKeyUseOffset, abi.Limb(val.Use))
		l.put(addr, abi.PublicKeyExtraOffset, abi.Limb(ptr))
	default:
		return abi.NewError(abi.CodeTypeMismatch, nil, "cannot lay out %T", v)
	}
	return nil
}

func (l *Layout) writeBytes(b []byte, addr abi.Address) error {
	ptr, err := l.Alloc(uint64(len(b)))
	if err != nil {
		return err
	}
	for i, c := range b {
		l.put(ptr, uint64(i), abi.Limb(c))
	}
	l.put(addr, abi.StringLengthOffset, abi.Limb(len(b)))
	l.put(addr, abi.StringDataOffset, abi.Limb(ptr))
	return nil
}

// writeElements allocates len(elems) slots of width(t) and writes each
// element into its slot.
func (l *Layout) writeElements(t *abi.Type, elems []abi.Value) (abi.Address, error) {
	stride := t.Width()
	ptr, err := l.Alloc(stride * uint64(len(elems)))
	if err != nil {
		return 0, err
	}
	for i, e := range elems {
		if err := l.write(t, e, ptr+abi.Address(stride*uint64(i))); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}
