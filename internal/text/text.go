// Package text parses and renders the delimited text form of ABI values
// used for command-line arguments and fixtures.
//
// Grammar, by type:
//
//	boolean            true | false
//	uint32/int32/...   decimal literal
//	float32            decimal or exponent literal, NaN, Inf, -Inf
//	hash               four comma-separated decimal limbs
//	bytes, reference   comma-separated decimal bytes; empty text is empty
//	string             the text verbatim
//	nullable           null | inner
//	struct             fields in declaration order, comma-separated
//	array              elements separated by ';'
//	map                key;value;key;value...
//	public_key         kty,crv,alg,use,x,y with URL-safe base64 x and y
//
// Delimiters are not escaped, and array or map elements must not contain
// ';'. A struct takes one comma-separated token per field except the last,
// which takes the whole remainder of the text. So a trailing string, bytes,
// hash or nested struct field keeps its own commas, and a struct never
// rejects extra commas; they belong to the last field's value.
package text

import (
	"encoding/base64"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/zkabi/internal/abi"
)

const (
	// NullLiteral is the text of an absent nullable.
	NullLiteral = "null"

	fieldSep   = ","
	elementSep = ";"
)

// Parse decodes s as a value of type t. On failure it returns an
// *abi.Error and no partial value.
func Parse(t *abi.Type, s string) (abi.Value, error) {
	return parse(t, s, nil)
}

func parse(t *abi.Type, s string, path []string) (abi.Value, error) {
	switch t.Kind {
	case abi.KindBoolean:
		switch s {
		case "true":
			return abi.Boolean(true), nil
		case "false":
			return abi.Boolean(false), nil
		}
		return nil, abi.NewError(abi.CodeMalformedText, path, "%q is not a boolean", s)

	case abi.KindUInt32:
		n, err := parseUint(s, 32, path)
		if err != nil {
			return nil, err
		}
		return abi.UInt32(n), nil

	case abi.KindInt32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, numError(err, s, "int32", path)
		}
		return abi.Int32(n), nil

	case abi.KindUInt64:
		n, err := parseUint(s, 64, path)
		if err != nil {
			return nil, err
		}
		return abi.UInt64(n), nil

	case abi.KindFloat32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, numError(err, s, "float32", path)
		}
		return abi.Float32(f), nil

	case abi.KindHash:
		parts := strings.Split(s, fieldSep)
		if len(parts) != abi.LimbsPerWord {
			return nil, abi.NewError(abi.CodeMalformedText, path, "hash needs %d limbs, got %d", abi.LimbsPerWord, len(parts))
		}
		var h abi.Hash
		for i, p := range parts {
			n, err := parseUint(p, 64, append(path, abi.Index(i)))
			if err != nil {
				return nil, err
			}
			h[i] = n
		}
		return h, nil

	case abi.KindString:
		return abi.String(s), nil

	case abi.KindBytes, abi.KindCollectionReference:
		b, err := parseByteList(s, path)
		if err != nil {
			return nil, err
		}
		if t.Kind == abi.KindBytes {
			return abi.Bytes(b), nil
		}
		return abi.CollectionReference(b), nil

	case abi.KindNullable:
		if s == NullLiteral {
			return abi.Null(), nil
		}
		v, err := parse(t.Elem, s, path)
		if err != nil {
			return nil, err
		}
		return abi.Some(v), nil

	case abi.KindStruct:
		return parseStruct(t, s, path)

	case abi.KindArray:
		out := abi.Array{}
		if s == "" {
			return out, nil
		}
		for i, item := range strings.Split(s, elementSep) {
			v, err := parse(t.Elem, item, append(path, abi.Index(i)))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case abi.KindMap:
		out := abi.Map{}
		if s == "" {
			return out, nil
		}
		tokens := strings.Split(s, elementSep)
		if len(tokens)%2 != 0 {
			return nil, abi.NewError(abi.CodeMissingMapValue, append(path, abi.Index(len(tokens)/2)),
				"key %q has no value", tokens[len(tokens)-1])
		}
		for i := 0; i < len(tokens); i += 2 {
			p := append(path, abi.Index(i/2))
			k, err := parse(t.Key, tokens[i], append(p, "key"))
			if err != nil {
				return nil, err
			}
			v, err := parse(t.Elem, tokens[i+1], append(p, "value"))
			if err != nil {
				return nil, err
			}
			out = append(out, abi.E(k, v))
		}
		return out, nil

	case abi.KindPublicKey:
		return parsePublicKey(s, path)

	default:
		return nil, abi.NewError(abi.CodeMalformedText, path, "cannot parse type %s", t.Kind)
	}
}

// parseStruct splits off one field per comma; the last field takes the
// rest of the text.
func parseStruct(t *abi.Type, s string, path []string) (abi.Value, error) {
	out := make(abi.Struct, len(t.Fields))
	if len(t.Fields) == 0 {
		if s != "" {
			return nil, abi.NewError(abi.CodeMalformedText, path, "struct %s has no fields, got %q", t.Name, s)
		}
		return out, nil
	}
	rest := s
	for i, f := range t.Fields {
		field := rest
		if i < len(t.Fields)-1 {
			var ok bool
			field, rest, ok = strings.Cut(rest, fieldSep)
			if !ok {
				return nil, abi.NewError(abi.CodeMalformedText, append(path, t.Fields[i+1].Name), "missing field")
			}
		}
		v, err := parse(f.Type, field, append(path, f.Name))
		if err != nil {
			return nil, err
		}
		out[i] = abi.FieldValue{Name: f.Name, Value: v}
	}
	return out, nil
}

func parsePublicKey(s string, path []string) (abi.Value, error) {
	parts := strings.Split(s, fieldSep)
	if len(parts) != 6 {
		return nil, abi.NewError(abi.CodeMalformedText, path, "public key needs kty,crv,alg,use,x,y, got %d parts", len(parts))
	}
	var key abi.PublicKey
	var ok bool
	if key.Kty, ok = abi.ParseKty(parts[0]); !ok {
		return nil, abi.NewError(abi.CodeInvalidEnumValue, append(path, "kty"), "undefined kty %q", parts[0])
	}
	if key.Crv, ok = abi.ParseCrv(parts[1]); !ok {
		return nil, abi.NewError(abi.CodeInvalidEnumValue, append(path, "crv"), "undefined crv %q", parts[1])
	}
	if key.Alg, ok = abi.ParseAlg(parts[2]); !ok {
		return nil, abi.NewError(abi.CodeInvalidEnumValue, append(path, "alg"), "undefined alg %q", parts[2])
	}
	if key.Use, ok = abi.ParseUse(parts[3]); !ok {
		return nil, abi.NewError(abi.CodeInvalidEnumValue, append(path, "use"), "undefined use %q", parts[3])
	}
	x, err := abi.DecodeCoordinate(parts[4])
	if err != nil {
		return nil, abi.NewError(abi.CodeInvalidKeyEncoding, append(path, "x"), "%v", err)
	}
	y, err := abi.DecodeCoordinate(parts[5])
	if err != nil {
		return nil, abi.NewError(abi.CodeInvalidKeyEncoding, append(path, "y"), "%v", err)
	}
	key.X, key.Y = x, y
	return key, nil
}

func parseByteList(s string, path []string) ([]byte, error) {
	out := []byte{}
	if s == "" {
		return out, nil
	}
	for i, p := range strings.Split(s, fieldSep) {
		n, err := parseUint(p, 8, append(path, abi.Index(i)))
		if err != nil {
			return nil, err
		}
		out = append(out, byte(n))
	}
	return out, nil
}

func parseUint(s string, bits int, path []string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, numError(err, s, "uint"+strconv.Itoa(bits), path)
	}
	return n, nil
}

// numError maps strconv failures: out-of-range literals are SizeOverflow,
// anything else is MalformedText.
func numError(err error, s, what string, path []string) error {
	if errors.Is(err, strconv.ErrRange) {
		return abi.NewError(abi.CodeSizeOverflow, path, "%q does not fit %s", s, what)
	}
	return abi.NewError(abi.CodeMalformedText, path, "%q is not a valid %s", s, what)
}

// Render produces the text form of v. For values whose strings contain
// no delimiters, Parse(t, Render(v)) reproduces v.
func Render(v abi.Value) string {
	var b strings.Builder
	render(&b, v)
	return b.String()
}

func render(b *strings.Builder, v abi.Value) {
	switch val := v.(type) {
	case abi.Nullable:
		if !val.Present() {
			b.WriteString(NullLiteral)
			return
		}
		render(b, val.Value)
	case abi.Boolean:
		b.WriteString(strconv.FormatBool(bool(val)))
	case abi.UInt32:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case abi.Int32:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case abi.UInt64:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case abi.Float32:
		f := float64(val)
		if math.IsNaN(f) {
			b.WriteString("NaN")
			return
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 32))
	case abi.Hash:
		for i, l := range val {
			if i > 0 {
				b.WriteString(fieldSep)
			}
			b.WriteString(strconv.FormatUint(l, 10))
		}
	case abi.String:
		b.WriteString(string(val))
	case abi.Bytes:
		renderBytes(b, val)
	case abi.CollectionReference:
		renderBytes(b, val)
	case abi.Array:
		for i, e := range val {
			if i > 0 {
				b.WriteString(elementSep)
			}
			render(b, e)
		}
	case abi.Map:
		for i, e := range val {
			if i > 0 {
				b.WriteString(elementSep)
			}
			render(b, e.Key)
			b.WriteString(elementSep)
			render(b, e.Value)
		}
	case abi.Struct:
		for i, f := range val {
			if i > 0 {
				b.WriteString(fieldSep)
			}
			render(b, f.Value)
		}
	case abi.PublicKey:
		b.WriteString(strings.Join([]string{
			val.Kty.String(),
			val.Crv.String(),
			val.Alg.String(),
			val.Use.String(),
			base64.URLEncoding.EncodeToString(val.X[:]),
			base64.URLEncoding.EncodeToString(val.Y[:]),
		}, fieldSep))
	}
}

func renderBytes(b *strings.Builder, data []byte) {
	for i, c := range data {
		if i > 0 {
			b.WriteString(fieldSep)
		}
		b.WriteString(strconv.FormatUint(uint64(c), 10))
	}
}
