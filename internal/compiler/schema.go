package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/zkabi/internal/abi"
)

// Schema is a compiled ABI schema: the named struct types it declares and
// the ABI of the program that uses them.
type Schema struct {
	// Types holds the named struct types in declaration order.
	Types []*abi.Type

	ABI *abi.ABI
}

// Lookup returns the named struct type.
func (s *Schema) Lookup(name string) (*abi.Type, bool) {
	for _, t := range s.Types {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// CompileSchema parses a CUE value into a Schema.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the schema root:
//
//	types: {
//		Account: {
//			id:      "string"
//			balance: "uint64"
//			owner:   {nullable: "public_key"}
//			tags:    {array: "string"}
//			limits:  {map: {key: "string", value: "uint32"}}
//			parent:  {collection: "accounts"}
//		}
//	}
//	abi: {
//		this:   {addr: 100, type: "Account"}
//		params: ["uint64", {nullable: "string"}]
//		result: {addr: 200, type: "boolean"}
//	}
//
// A type expression is a primitive kind name, the name of a declared
// struct type, or a single-field constructor object. Struct fields keep
// their CUE declaration order. Recursive struct types are rejected since a
// struct is laid out inline and would have unbounded width.
//
// CompileSchema does not check memory regions; run Validate on the result.
func CompileSchema(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &schemaCompiler{decls: make(map[string]cue.Value), resolved: make(map[string]*abi.Type)}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if typesVal.Exists() {
		if err := c.declare(typesVal); err != nil {
			return nil, err
		}
		if err := c.checkCycles(typesVal.Pos()); err != nil {
			return nil, err
		}
	}

	schema := &Schema{}
	for _, name := range c.order {
		t, err := c.resolve(name)
		if err != nil {
			return nil, err
		}
		schema.Types = append(schema.Types, t)
	}

	abiVal := v.LookupPath(cue.ParsePath("abi"))
	if !abiVal.Exists() {
		return nil, &CompileError{
			Field:   "abi",
			Message: "abi is required",
			Pos:     v.Pos(),
		}
	}
	a, err := c.compileABI(abiVal)
	if err != nil {
		return nil, err
	}
	schema.ABI = a
	return schema, nil
}

// CompileTypeExpr compiles a single type expression with no named types in
// scope. It is what the CLI uses for --type flags.
func CompileTypeExpr(v cue.Value) (*abi.Type, error) {
	return (&Schema{}).TypeExpr(v)
}

// TypeExpr compiles a type expression that may name the schema's struct
// types.
func (s *Schema) TypeExpr(v cue.Value) (*abi.Type, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	c := &schemaCompiler{decls: make(map[string]cue.Value), resolved: make(map[string]*abi.Type)}
	for _, t := range s.Types {
		c.decls[t.Name] = cue.Value{}
		c.resolved[t.Name] = t
	}
	return c.typeExpr(v, "type")
}

type schemaCompiler struct {
	decls    map[string]cue.Value
	order    []string
	resolved map[string]*abi.Type

	// refs is set while collecting the dependency graph; it records named
	// references instead of resolving them.
	refs *[]string
}

func (c *schemaCompiler) declare(typesVal cue.Value) error {
	iter, err := typesVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		val := iter.Value()
		if val.IncompleteKind() != cue.StructKind {
			return &CompileError{
				Field:   "types." + name,
				Message: "a named type must be a struct of fields",
				Pos:     val.Pos(),
			}
		}
		if _, err := abi.ParseKind(name); err == nil {
			return &CompileError{
				Field:   "types." + name,
				Message: fmt.Sprintf("type name %q shadows a built-in kind", name),
				Pos:     val.Pos(),
			}
		}
		c.decls[name] = val
		c.order = append(c.order, name)
	}
	return nil
}

// checkCycles builds the struct reference graph and rejects any cycle.
func (c *schemaCompiler) checkCycles(pos token.Pos) error {
	graph := make(dependencyGraph, len(c.order))
	for _, name := range c.order {
		var refs []string
		c.refs = &refs
		_, err := c.structType(name, c.decls[name])
		c.refs = nil
		if err != nil {
			return err
		}
		graph[name] = refs
	}

	cycles := AnalyzeCycles(graph)
	if len(cycles) == 0 {
		return nil
	}
	first := cycles[0]
	return &CompileError{
		Field:   "types." + first.Path[0],
		Message: first.Message,
		Pos:     c.decls[first.Path[0]].Pos(),
	}
}

func (c *schemaCompiler) resolve(name string) (*abi.Type, error) {
	if t, ok := c.resolved[name]; ok {
		return t, nil
	}
	t, err := c.structType(name, c.decls[name])
	if err != nil {
		return nil, err
	}
	c.resolved[name] = t
	return t, nil
}

func (c *schemaCompiler) structType(name string, v cue.Value) (*abi.Type, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var fields []abi.StructField
	for iter.Next() {
		fieldName := iter.Label()
		ft, err := c.typeExpr(iter.Value(), "types."+name+"."+fieldName)
		if err != nil {
			return nil, err
		}
		fields = append(fields, abi.F(fieldName, ft))
	}
	return abi.StructOf(name, fields...), nil
}

// leafTypes are the kinds a bare name compiles to.
var leafTypes = map[abi.Kind]*abi.Type{
	abi.KindBoolean:   abi.TypeBoolean,
	abi.KindUInt32:    abi.TypeUInt32,
	abi.KindInt32:     abi.TypeInt32,
	abi.KindUInt64:    abi.TypeUInt64,
	abi.KindFloat32:   abi.TypeFloat32,
	abi.KindHash:      abi.TypeHash,
	abi.KindString:    abi.TypeString,
	abi.KindBytes:     abi.TypeBytes,
	abi.KindPublicKey: abi.TypePublicKey,
}

func (c *schemaCompiler) typeExpr(v cue.Value, field string) (*abi.Type, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		name, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return c.named(name, field, v.Pos())
	case cue.StructKind:
		return c.constructor(v, field)
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported type expression kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func (c *schemaCompiler) named(name, field string, pos token.Pos) (*abi.Type, error) {
	if k, err := abi.ParseKind(name); err == nil {
		if t, ok := leafTypes[k]; ok {
			return t, nil
		}
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s needs a constructor, e.g. {%s: ...}", name, constructorFor(k)),
			Pos:     pos,
		}
	}
	if _, ok := c.decls[name]; !ok {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown type %q", name),
			Pos:     pos,
		}
	}
	if c.refs != nil {
		*c.refs = append(*c.refs, name)
		return abi.StructOf(name), nil
	}
	return c.resolve(name)
}

func constructorFor(k abi.Kind) string {
	switch k {
	case abi.KindCollectionReference:
		return "collection"
	case abi.KindStruct:
		return "types"
	default:
		return k.String()
	}
}

func (c *schemaCompiler) constructor(v cue.Value, field string) (*abi.Type, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var labels []string
	var inner cue.Value
	for iter.Next() {
		labels = append(labels, iter.Label())
		inner = iter.Value()
	}
	if len(labels) != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("type constructor needs exactly one of nullable, array, map, collection; got [%s]", strings.Join(labels, ", ")),
			Pos:     v.Pos(),
		}
	}

	switch labels[0] {
	case "nullable":
		t, err := c.typeExpr(inner, field)
		if err != nil {
			return nil, err
		}
		return abi.NullableOf(t), nil

	case "array":
		t, err := c.typeExpr(inner, field+"[]")
		if err != nil {
			return nil, err
		}
		return abi.ArrayOf(t), nil

	case "map":
		keyVal := inner.LookupPath(cue.ParsePath("key"))
		valueVal := inner.LookupPath(cue.ParsePath("value"))
		if !keyVal.Exists() || !valueVal.Exists() {
			return nil, &CompileError{
				Field:   field,
				Message: "map needs both key and value",
				Pos:     inner.Pos(),
			}
		}
		k, err := c.typeExpr(keyVal, field+"<key>")
		if err != nil {
			return nil, err
		}
		val, err := c.typeExpr(valueVal, field+"<value>")
		if err != nil {
			return nil, err
		}
		return abi.MapOf(k, val), nil

	case "collection":
		name, err := inner.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if name == "" {
			return nil, &CompileError{
				Field:   field,
				Message: "collection name must not be empty",
				Pos:     inner.Pos(),
			}
		}
		return abi.CollectionReferenceTo(name), nil

	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unknown type constructor %q", labels[0]),
			Pos:     v.Pos(),
		}
	}
}

func (c *schemaCompiler) compileABI(v cue.Value) (*abi.ABI, error) {
	a := &abi.ABI{ParamTypes: []*abi.Type{}}

	thisVal := v.LookupPath(cue.ParsePath("this"))
	if thisVal.Exists() {
		addr, t, err := c.region(thisVal, "abi.this")
		if err != nil {
			return nil, err
		}
		a.ThisAddr, a.ThisType = addr, t
	}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		iter, err := paramsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			t, err := c.typeExpr(iter.Value(), fmt.Sprintf("abi.params[%d]", i))
			if err != nil {
				return nil, err
			}
			a.ParamTypes = append(a.ParamTypes, t)
		}
	}

	resultVal := v.LookupPath(cue.ParsePath("result"))
	if resultVal.Exists() {
		addr, t, err := c.region(resultVal, "abi.result")
		if err != nil {
			return nil, err
		}
		a.ResultAddr, a.ResultType = addr, t
	}
	return a, nil
}

// region compiles an {addr, type} pair.
func (c *schemaCompiler) region(v cue.Value, field string) (*abi.Address, *abi.Type, error) {
	addrVal := v.LookupPath(cue.ParsePath("addr"))
	if !addrVal.Exists() {
		return nil, nil, &CompileError{
			Field:   field + ".addr",
			Message: "addr is required",
			Pos:     v.Pos(),
		}
	}
	n, err := addrVal.Uint64()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, nil, &CompileError{
			Field:   field + ".type",
			Message: "type is required",
			Pos:     v.Pos(),
		}
	}
	t, err := c.typeExpr(typeVal, field+".type")
	if err != nil {
		return nil, nil, err
	}
	return abi.Addr(n), t, nil
}

// CompileError represents a compilation error with source location.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
