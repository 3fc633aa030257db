package abi

import (
	"bytes"
	"math"
)

// Value is a sealed interface holding one fully materialized instance of a
// Type. Only the variants in this file (and PublicKey) implement it.
// Values are never mutated after construction.
type Value interface {
	// Kind returns the type descriptor variant this value belongs to.
	Kind() Kind
	abiValue() // Sealed
}

// Nullable holds an optional value. A nil Value means absent.
type Nullable struct {
	Value Value
}

// Boolean is a boolean value.
type Boolean bool

// UInt32 is an unsigned 32-bit integer.
type UInt32 uint32

// Int32 is a signed 32-bit integer.
type Int32 int32

// UInt64 is an unsigned 64-bit integer, split into two 32-bit limbs in
// memory and on the tape.
type UInt64 uint64

// Float32 is an IEEE-754 single precision float carried by bit pattern.
type Float32 float32

// Hash is a four-limb digest.
type Hash [LimbsPerWord]Limb

// String is UTF-8 text.
type String string

// Bytes is an opaque byte string.
type Bytes []byte

// CollectionReference is the raw encoded reference to a collection record.
type CollectionReference []byte

// Array is an ordered list of values of one element type.
type Array []Value

// Map is an ordered list of entries. The order is layout order, never sorted.
type Map []MapEntry

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Struct is an ordered list of named field values in declaration order.
type Struct []FieldValue

// FieldValue is one named field of a Struct value.
type FieldValue struct {
	Name  string
	Value Value
}

func (Nullable) Kind() Kind            { return KindNullable }
func (Boolean) Kind() Kind             { return KindBoolean }
func (UInt32) Kind() Kind              { return KindUInt32 }
func (Int32) Kind() Kind               { return KindInt32 }
func (UInt64) Kind() Kind              { return KindUInt64 }
func (Float32) Kind() Kind             { return KindFloat32 }
func (Hash) Kind() Kind                { return KindHash }
func (String) Kind() Kind              { return KindString }
func (Bytes) Kind() Kind               { return KindBytes }
func (CollectionReference) Kind() Kind { return KindCollectionReference }
func (Array) Kind() Kind               { return KindArray }
func (Map) Kind() Kind                 { return KindMap }
func (Struct) Kind() Kind              { return KindStruct }

func (Nullable) abiValue()            {}
func (Boolean) abiValue()             {}
func (UInt32) abiValue()              {}
func (Int32) abiValue()               {}
func (UInt64) abiValue()              {}
func (Float32) abiValue()             {}
func (Hash) abiValue()                {}
func (String) abiValue()              {}
func (Bytes) abiValue()               {}
func (CollectionReference) abiValue() {}
func (Array) abiValue()               {}
func (Map) abiValue()                 {}
func (Struct) abiValue()              {}

// Null returns an absent Nullable.
func Null() Nullable {
	return Nullable{}
}

// Some returns a present Nullable wrapping v.
func Some(v Value) Nullable {
	return Nullable{Value: v}
}

// Present reports whether the Nullable holds a value.
func (n Nullable) Present() bool {
	return n.Value != nil
}

// E is a shorthand for MapEntry.
func E(key, value Value) MapEntry {
	return MapEntry{Key: key, Value: value}
}

// V is a shorthand for FieldValue.
// Example: Struct{V("id", String("a")), V("balance", UInt64(7))}
func V(name string, value Value) FieldValue {
	return FieldValue{Name: name, Value: value}
}

// Get returns the value of the named field.
func (s Struct) Get(name string) (Value, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Equal reports whether two values are identical. Float32 values compare by
// bit pattern so NaN payloads round-trip as equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Nullable:
		return Equal(av.Value, b.(Nullable).Value)
	case Float32:
		return math.Float32bits(float32(av)) == math.Float32bits(float32(b.(Float32)))
	case Bytes:
		return bytes.Equal(av, b.(Bytes))
	case CollectionReference:
		return bytes.Equal(av, b.(CollectionReference))
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv := b.(Map)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i].Key, bv[i].Key) || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case Struct:
		bv := b.(Struct)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Name != bv[i].Name || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case PublicKey:
		return av == b.(PublicKey)
	default:
		// Boolean, integers, Hash and String are comparable.
		return a == b
	}
}

// Conforms checks that v has exactly the shape described by t.
// The returned error carries CodeTypeMismatch and the failing path.
func Conforms(t *Type, v Value) error {
	return conforms(t, v, nil)
}

func conforms(t *Type, v Value, path []string) error {
	if v == nil {
		return NewError(CodeTypeMismatch, path, "missing value for %s", t)
	}
	if v.Kind() != t.Kind {
		return NewError(CodeTypeMismatch, path, "expected %s, got %s", t, v.Kind())
	}
	switch val := v.(type) {
	case Nullable:
		if !val.Present() {
			return nil
		}
		return conforms(t.Elem, val.Value, path)
	case Array:
		for i, elem := range val {
			if err := conforms(t.Elem, elem, append(path, Index(i))); err != nil {
				return err
			}
		}
	case Map:
		for i, entry := range val {
			p := append(path, Index(i))
			if err := conforms(t.Key, entry.Key, append(p, "key")); err != nil {
				return err
			}
			if err := conforms(t.Elem, entry.Value, append(p, "value")); err != nil {
				return err
			}
		}
	case Struct:
		if len(val) != len(t.Fields) {
			return NewError(CodeTypeMismatch, path, "struct %s has %d fields, got %d", t.Name, len(t.Fields), len(val))
		}
		for i, f := range t.Fields {
			if val[i].Name != f.Name {
				return NewError(CodeTypeMismatch, path, "field %d of struct %s is %q, got %q", i, t.Name, f.Name, val[i].Name)
			}
			if err := conforms(f.Type, val[i].Value, append(path, f.Name)); err != nil {
				return err
			}
		}
	case PublicKey:
		return val.validateEnums(path)
	}
	return nil
}

// Zero returns the default value of a type: false, zero numbers, empty
// text and collections, absent nullables, and a public key with the
// default enumerants and zero coordinates.
func Zero(t *Type) Value {
	switch t.Kind {
	case KindBoolean:
		return Boolean(false)
	case KindUInt32:
		return UInt32(0)
	case KindInt32:
		return Int32(0)
	case KindUInt64:
		return UInt64(0)
	case KindFloat32:
		return Float32(0)
	case KindHash:
		return Hash{}
	case KindNullable:
		return Null()
	case KindString:
		return String("")
	case KindBytes:
		return Bytes{}
	case KindCollectionReference:
		return CollectionReference{}
	case KindArray:
		return Array{}
	case KindMap:
		return Map{}
	case KindPublicKey:
		return PublicKey{Kty: KtyEC, Crv: CrvSecp256k1, Alg: AlgES256K, Use: UseSig}
	case KindStruct:
		fields := make(Struct, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = FieldValue{Name: f.Name, Value: Zero(f.Type)}
		}
		return fields
	default:
		panic("abi: Zero of invalid type " + t.Kind.String())
	}
}
