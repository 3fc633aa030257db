package abi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies a type descriptor variant.
type Kind uint8

// Type descriptor variants. The zero Kind is invalid.
const (
	KindBoolean Kind = iota + 1
	KindUInt32
	KindInt32
	KindUInt64
	KindFloat32
	KindHash
	KindNullable
	KindStruct
	KindString
	KindBytes
	KindCollectionReference
	KindArray
	KindMap
	KindPublicKey
)

var kindNames = map[Kind]string{
	KindBoolean:             "boolean",
	KindUInt32:              "uint32",
	KindInt32:               "int32",
	KindUInt64:              "uint64",
	KindFloat32:             "float32",
	KindHash:                "hash",
	KindNullable:            "nullable",
	KindStruct:              "struct",
	KindString:              "string",
	KindBytes:               "bytes",
	KindCollectionReference: "collection_reference",
	KindArray:               "array",
	KindMap:                 "map",
	KindPublicKey:           "public_key",
}

// String returns the interchange tag of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves an interchange tag to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown type kind %q", name)
}

// Type is an immutable, recursively defined schema describing the shape of
// a datum. Build types with the package-level leaf values and the *Of
// constructors; never modify a Type after it has been shared.
type Type struct {
	Kind Kind

	// Elem is the inner type of Nullable, the element type of Array and the
	// value type of Map.
	Elem *Type

	// Key is the key type of Map.
	Key *Type

	// Name is the declared name of a Struct.
	Name string

	// Collection names the collection a CollectionReference points into.
	Collection string

	// Fields are the Struct fields in declaration order.
	Fields []StructField
}

// StructField is a named field of a Struct type.
type StructField struct {
	Name string
	Type *Type
}

// Leaf types. They carry no children and are safe to share.
var (
	TypeBoolean   = &Type{Kind: KindBoolean}
	TypeUInt32    = &Type{Kind: KindUInt32}
	TypeInt32     = &Type{Kind: KindInt32}
	TypeUInt64    = &Type{Kind: KindUInt64}
	TypeFloat32   = &Type{Kind: KindFloat32}
	TypeHash      = &Type{Kind: KindHash}
	TypeString    = &Type{Kind: KindString}
	TypeBytes     = &Type{Kind: KindBytes}
	TypePublicKey = &Type{Kind: KindPublicKey}
)

// NullableOf creates a Nullable type wrapping inner.
func NullableOf(inner *Type) *Type {
	return &Type{Kind: KindNullable, Elem: inner}
}

// ArrayOf creates an Array type with the given element type.
func ArrayOf(elem *Type) *Type {
	return &Type{Kind: KindArray, Elem: elem}
}

// MapOf creates a Map type.
func MapOf(key, value *Type) *Type {
	return &Type{Kind: KindMap, Key: key, Elem: value}
}

// CollectionReferenceTo creates a reference into the named collection.
func CollectionReferenceTo(collection string) *Type {
	return &Type{Kind: KindCollectionReference, Collection: collection}
}

// StructOf creates a Struct type. The fields slice is copied.
func StructOf(name string, fields ...StructField) *Type {
	fs := make([]StructField, len(fields))
	copy(fs, fields)
	return &Type{Kind: KindStruct, Name: name, Fields: fs}
}

// F is a shorthand for StructField.
// Example: StructOf("Account", F("id", TypeString), F("balance", TypeUInt64))
func F(name string, t *Type) StructField {
	return StructField{Name: name, Type: t}
}

// Width returns the number of words the type occupies at its own address.
// Variable-length payloads are addressed indirectly and are not counted.
//
// Width panics on a Type with an unknown Kind or a missing child; such a
// descriptor is a programming defect, not bad input data.
func (t *Type) Width() uint64 {
	if t == nil {
		panic("abi: Width of nil type")
	}
	switch t.Kind {
	case KindBoolean, KindUInt32, KindInt32, KindUInt64, KindFloat32:
		return PrimitiveWidth
	case KindHash:
		return HashWidth
	case KindNullable:
		return NullableFlagWidth + t.child(t.Elem).Width()
	case KindStruct:
		var w uint64
		for _, f := range t.Fields {
			w += t.child(f.Type).Width()
		}
		return w
	case KindString, KindBytes, KindCollectionReference:
		return StringHeaderWidth
	case KindArray:
		t.child(t.Elem)
		return ArrayHeaderWidth
	case KindMap:
		t.child(t.Key)
		t.child(t.Elem)
		return MapHeaderWidth
	case KindPublicKey:
		return PublicKeyHeaderWidth
	default:
		panic(fmt.Sprintf("abi: Width of invalid type %s", t.Kind))
	}
}

func (t *Type) child(c *Type) *Type {
	if c == nil {
		panic(fmt.Sprintf("abi: %s type is missing a child type", t.Kind))
	}
	return c
}

// FieldOffset returns the word offset of the named field within a Struct.
func (t *Type) FieldOffset(name string) (uint64, bool) {
	if t.Kind != KindStruct {
		return 0, false
	}
	var off uint64
	for _, f := range t.Fields {
		if f.Name == name {
			return off, true
		}
		off += f.Type.Width()
	}
	return 0, false
}

// Validate checks that the descriptor is complete: known kinds, children
// present, struct field names unique and non-empty.
func (t *Type) Validate() error {
	return t.validate(nil)
}

func (t *Type) validate(path []string) error {
	where := FormatPath(path)
	if where == "" {
		where = "<root>"
	}
	if t == nil {
		return fmt.Errorf("%s: missing type", where)
	}
	switch t.Kind {
	case KindBoolean, KindUInt32, KindInt32, KindUInt64, KindFloat32,
		KindHash, KindString, KindBytes, KindCollectionReference, KindPublicKey:
		return nil
	case KindNullable:
		return t.Elem.validate(append(path, "?"))
	case KindArray:
		return t.Elem.validate(append(path, "[]"))
	case KindMap:
		if err := t.Key.validate(append(path, "<key>")); err != nil {
			return err
		}
		return t.Elem.validate(append(path, "<value>"))
	case KindStruct:
		seen := make(map[string]bool, len(t.Fields))
		for _, f := range t.Fields {
			if f.Name == "" {
				return fmt.Errorf("%s: struct %s has a field without a name", where, t.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("%s: struct %s declares field %q twice", where, t.Name, f.Name)
			}
			seen[f.Name] = true
			if err := f.Type.validate(append(path, f.Name)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%s: invalid type kind %d", where, uint8(t.Kind))
	}
}

// Equal reports whether two descriptors describe the same shape.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindNullable, KindArray:
		return t.Elem.Equal(o.Elem)
	case KindMap:
		return t.Key.Equal(o.Key) && t.Elem.Equal(o.Elem)
	case KindCollectionReference:
		return t.Collection == o.Collection
	case KindStruct:
		if t.Name != o.Name || len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the type in a compact source-like notation,
// e.g. "map<string, nullable<uint32>>" or "struct Account{id: string}".
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindNullable:
		return "nullable<" + t.Elem.String() + ">"
	case KindArray:
		return "array<" + t.Elem.String() + ">"
	case KindMap:
		return "map<" + t.Key.String() + ", " + t.Elem.String() + ">"
	case KindCollectionReference:
		return "collection_reference<" + t.Collection + ">"
	case KindStruct:
		var b strings.Builder
		b.WriteString("struct ")
		b.WriteString(t.Name)
		b.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(f.Type.String())
		}
		b.WriteByte('}')
		return b.String()
	default:
		return t.Kind.String()
	}
}

// typeJSON is the interchange form of a Type: one "kind" tag per variant
// with nested descriptors for Nullable, Array, Map and Struct.
type typeJSON struct {
	Kind       string            `json:"kind"`
	Value      *Type             `json:"value,omitempty"`
	Key        *Type             `json:"key,omitempty"`
	Name       string            `json:"name,omitempty"`
	Collection string            `json:"collection,omitempty"`
	Fields     []structFieldJSON `json:"fields,omitempty"`
}

type structFieldJSON struct {
	Name string `json:"name"`
	Type *Type  `json:"type"`
}

// MarshalJSON implements json.Marshaler.
func (t *Type) MarshalJSON() ([]byte, error) {
	if _, ok := kindNames[t.Kind]; !ok {
		return nil, fmt.Errorf("marshal type: invalid kind %d", uint8(t.Kind))
	}
	w := typeJSON{
		Kind:       t.Kind.String(),
		Value:      t.Elem,
		Key:        t.Key,
		Name:       t.Name,
		Collection: t.Collection,
	}
	if t.Kind == KindStruct {
		w.Fields = make([]structFieldJSON, len(t.Fields))
		for i, f := range t.Fields {
			w.Fields[i] = structFieldJSON{Name: f.Name, Type: f.Type}
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded descriptor is
// validated before it is returned.
func (t *Type) UnmarshalJSON(data []byte) error {
	var w typeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, err := ParseKind(w.Kind)
	if err != nil {
		return err
	}
	out := Type{Kind: kind, Elem: w.Value, Key: w.Key, Name: w.Name, Collection: w.Collection}
	if kind == KindStruct {
		out.Fields = make([]StructField, len(w.Fields))
		for i, f := range w.Fields {
			out.Fields[i] = StructField{Name: f.Name, Type: f.Type}
		}
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("unmarshal type: %w", err)
	}
	*t = out
	return nil
}

// jsonTree converts the descriptor into generic JSON values for canonical
// marshaling.
func (t *Type) jsonTree() map[string]any {
	m := map[string]any{"kind": t.Kind.String()}
	if t.Elem != nil {
		m["value"] = t.Elem.jsonTree()
	}
	if t.Key != nil {
		m["key"] = t.Key.jsonTree()
	}
	if t.Name != "" {
		m["name"] = t.Name
	}
	if t.Collection != "" {
		m["collection"] = t.Collection
	}
	if t.Kind == KindStruct {
		fields := make([]any, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = map[string]any{"name": f.Name, "type": f.Type.jsonTree()}
		}
		m["fields"] = fields
	}
	return m
}
