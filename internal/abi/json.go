package abi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ToJSON converts a value into generic JSON values (map[string]any, []any,
// string, bool, json.Number, nil) suitable for encoding/json.
//
// Mapping:
//   - Nullable: null or the inner value
//   - integers and floats: numbers (Float32 NaN/Inf as "NaN", "Infinity", "-Infinity")
//   - Hash: array of four numbers
//   - Bytes, CollectionReference: standard base64 string
//   - Map: array of [key, value] pairs in layout order
//   - PublicKey: {"kty","crv","alg","use","x","y"} with base64url coordinates
//   - Struct: object keyed by field name
func ToJSON(v Value) any {
	switch val := v.(type) {
	case Nullable:
		if !val.Present() {
			return nil
		}
		return ToJSON(val.Value)
	case Boolean:
		return bool(val)
	case UInt32:
		return json.Number(strconv.FormatUint(uint64(val), 10))
	case Int32:
		return json.Number(strconv.FormatInt(int64(val), 10))
	case UInt64:
		return json.Number(strconv.FormatUint(uint64(val), 10))
	case Float32:
		f := float64(val)
		switch {
		case math.IsNaN(f):
			return "NaN"
		case math.IsInf(f, 1):
			return "Infinity"
		case math.IsInf(f, -1):
			return "-Infinity"
		}
		return json.Number(strconv.FormatFloat(f, 'g', -1, 32))
	case Hash:
		out := make([]any, len(val))
		for i, l := range val {
			out[i] = json.Number(strconv.FormatUint(l, 10))
		}
		return out
	case String:
		return string(val)
	case Bytes:
		return base64.StdEncoding.EncodeToString(val)
	case CollectionReference:
		return base64.StdEncoding.EncodeToString(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToJSON(elem)
		}
		return out
	case Map:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = []any{ToJSON(e.Key), ToJSON(e.Value)}
		}
		return out
	case PublicKey:
		return map[string]any{
			"kty": val.Kty.String(),
			"crv": val.Crv.String(),
			"alg": val.Alg.String(),
			"use": val.Use.String(),
			"x":   base64.URLEncoding.EncodeToString(val.X[:]),
			"y":   base64.URLEncoding.EncodeToString(val.Y[:]),
		}
	case Struct:
		out := make(map[string]any, len(val))
		for _, f := range val {
			out[f.Name] = ToJSON(f.Value)
		}
		return out
	default:
		return nil
	}
}

// MarshalValueJSON encodes a value as JSON text.
func MarshalValueJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ToJSON(v)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalValueJSON decodes JSON text into a value of type t.
// Numbers are decoded with UseNumber so 64-bit integers keep full precision.
func UnmarshalValueJSON(t *Type, data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, NewError(CodeMalformedText, nil, "invalid JSON").WithCause(err)
	}
	return FromJSON(t, raw)
}

// FromJSON converts generic JSON (or YAML) values into a value of type t,
// accepting the forms produced by ToJSON. Decoded YAML integers and
// integral float64 values are accepted for numeric fields.
func FromJSON(t *Type, data any) (Value, error) {
	return fromJSON(t, data, nil)
}

func fromJSON(t *Type, data any, path []string) (Value, error) {
	switch t.Kind {
	case KindNullable:
		if data == nil {
			return Null(), nil
		}
		inner, err := fromJSON(t.Elem, data, path)
		if err != nil {
			return nil, err
		}
		return Some(inner), nil
	case KindBoolean:
		b, ok := data.(bool)
		if !ok {
			return nil, mismatch(path, "boolean", data)
		}
		return Boolean(b), nil
	case KindUInt32:
		n, err := jsonUint(data, math.MaxUint32, path)
		if err != nil {
			return nil, err
		}
		return UInt32(n), nil
	case KindInt32:
		n, err := jsonInt(data, path)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, NewError(CodeSizeOverflow, path, "%d does not fit int32", n)
		}
		return Int32(n), nil
	case KindUInt64:
		n, err := jsonUint(data, math.MaxUint64, path)
		if err != nil {
			return nil, err
		}
		return UInt64(n), nil
	case KindFloat32:
		return jsonFloat(data, path)
	case KindHash:
		list, ok := data.([]any)
		if !ok || len(list) != LimbsPerWord {
			return nil, mismatch(path, "array of 4 limbs", data)
		}
		var h Hash
		for i, item := range list {
			n, err := jsonUint(item, math.MaxUint64, append(path, Index(i)))
			if err != nil {
				return nil, err
			}
			h[i] = n
		}
		return h, nil
	case KindString:
		s, ok := data.(string)
		if !ok {
			return nil, mismatch(path, "string", data)
		}
		return String(s), nil
	case KindBytes, KindCollectionReference:
		s, ok := data.(string)
		if !ok {
			return nil, mismatch(path, "base64 string", data)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, NewError(CodeMalformedText, path, "invalid base64").WithCause(err)
		}
		if t.Kind == KindBytes {
			return Bytes(b), nil
		}
		return CollectionReference(b), nil
	case KindArray:
		list, ok := data.([]any)
		if !ok {
			return nil, mismatch(path, "array", data)
		}
		out := make(Array, len(list))
		for i, item := range list {
			v, err := fromJSON(t.Elem, item, append(path, Index(i)))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindMap:
		list, ok := data.([]any)
		if !ok {
			return nil, mismatch(path, "array of [key, value] pairs", data)
		}
		out := make(Map, len(list))
		for i, item := range list {
			p := append(path, Index(i))
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return nil, mismatch(p, "[key, value] pair", item)
			}
			k, err := fromJSON(t.Key, pair[0], append(p, "key"))
			if err != nil {
				return nil, err
			}
			v, err := fromJSON(t.Elem, pair[1], append(p, "value"))
			if err != nil {
				return nil, err
			}
			out[i] = MapEntry{Key: k, Value: v}
		}
		return out, nil
	case KindPublicKey:
		return publicKeyFromJSON(data, path)
	case KindStruct:
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, mismatch(path, "object", data)
		}
		out := make(Struct, len(t.Fields))
		for i, f := range t.Fields {
			raw, present := obj[f.Name]
			if !present && f.Type.Kind != KindNullable {
				return nil, NewError(CodeTypeMismatch, append(path, f.Name), "missing field")
			}
			v, err := fromJSON(f.Type, raw, append(path, f.Name))
			if err != nil {
				return nil, err
			}
			out[i] = FieldValue{Name: f.Name, Value: v}
		}
		return out, nil
	default:
		return nil, NewError(CodeTypeMismatch, path, "invalid type %s", t.Kind)
	}
}

func publicKeyFromJSON(data any, path []string) (Value, error) {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, mismatch(path, "public key object", data)
	}
	str := func(name string) (string, error) {
		s, ok := obj[name].(string)
		if !ok {
			return "", mismatch(append(path, name), "string", obj[name])
		}
		return s, nil
	}

	var k PublicKey
	names := []string{"kty", "crv", "alg", "use"}
	for _, name := range names {
		s, err := str(name)
		if err != nil {
			return nil, err
		}
		var valid bool
		switch name {
		case "kty":
			k.Kty, valid = ParseKty(s)
		case "crv":
			k.Crv, valid = ParseCrv(s)
		case "alg":
			k.Alg, valid = ParseAlg(s)
		case "use":
			k.Use, valid = ParseUse(s)
		}
		if !valid {
			return nil, NewError(CodeInvalidEnumValue, append(path, name), "undefined %s %q", name, s)
		}
	}
	for _, name := range []string{"x", "y"} {
		s, err := str(name)
		if err != nil {
			return nil, err
		}
		coord, err := DecodeCoordinate(s)
		if err != nil {
			return nil, NewError(CodeInvalidKeyEncoding, append(path, name), "%v", err)
		}
		if name == "x" {
			k.X = coord
		} else {
			k.Y = coord
		}
	}
	return k, nil
}

// DecodeCoordinate decodes a URL-safe base64 public key coordinate, padded
// or unpadded, that must be exactly 32 bytes long.
func DecodeCoordinate(s string) ([PublicKeyCoordinateBytes]byte, error) {
	var out [PublicKeyCoordinateBytes]byte
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(s)
		if err != nil {
			return out, fmt.Errorf("invalid base64url: %w", err)
		}
	}
	if len(b) != PublicKeyCoordinateBytes {
		return out, fmt.Errorf("coordinate is %d bytes, want %d", len(b), PublicKeyCoordinateBytes)
	}
	copy(out[:], b)
	return out, nil
}

func mismatch(path []string, want string, got any) *Error {
	return NewError(CodeTypeMismatch, path, "expected %s, got %T", want, got)
}

func jsonUint(data any, max uint64, path []string) (uint64, error) {
	var n uint64
	switch v := data.(type) {
	case json.Number:
		u, err := strconv.ParseUint(string(v), 10, 64)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return 0, NewError(CodeSizeOverflow, path, "%s out of range", v)
			}
			return 0, NewError(CodeTypeMismatch, path, "%s is not an unsigned integer", v)
		}
		n = u
	case int:
		if v < 0 {
			return 0, NewError(CodeSizeOverflow, path, "%d is negative", v)
		}
		n = uint64(v)
	case int64:
		if v < 0 {
			return 0, NewError(CodeSizeOverflow, path, "%d is negative", v)
		}
		n = uint64(v)
	case uint64:
		n = v
	case float64:
		if v < 0 || v != math.Trunc(v) || v >= math.MaxUint64 {
			return 0, NewError(CodeTypeMismatch, path, "%v is not an unsigned integer", v)
		}
		n = uint64(v)
	default:
		return 0, mismatch(path, "number", data)
	}
	if n > max {
		return 0, NewError(CodeSizeOverflow, path, "%d exceeds %d", n, max)
	}
	return n, nil
}

func jsonInt(data any, path []string) (int64, error) {
	switch v := data.(type) {
	case json.Number:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, NewError(CodeTypeMismatch, path, "%s is not an integer", v)
		}
		return n, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, NewError(CodeSizeOverflow, path, "%d out of range", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, NewError(CodeTypeMismatch, path, "%v is not an integer", v)
		}
		return int64(v), nil
	default:
		return 0, mismatch(path, "number", data)
	}
}

func jsonFloat(data any, path []string) (Value, error) {
	switch v := data.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 32)
		if err != nil {
			return nil, NewError(CodeTypeMismatch, path, "%s is not a float", v)
		}
		return Float32(f), nil
	case float64:
		return Float32(v), nil
	case int:
		return Float32(v), nil
	case string:
		switch v {
		case "NaN":
			return Float32(math.NaN()), nil
		case "Infinity":
			return Float32(math.Inf(1)), nil
		case "-Infinity":
			return Float32(math.Inf(-1)), nil
		}
	}
	return nil, mismatch(path, "number", data)
}
