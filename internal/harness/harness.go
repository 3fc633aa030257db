package harness

import (
	"errors"
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/compiler"
	"github.com/roach88/zkabi/internal/memory"
	"github.com/roach88/zkabi/internal/tape"
	"github.com/roach88/zkabi/internal/text"
)

// Harness runs cases against one compiled schema.
type Harness struct {
	cue    *cue.Context
	schema *compiler.Schema
}

// New compiles the scenario schema.
func New(scenario *Scenario) (*Harness, error) {
	h := &Harness{cue: cuecontext.New(), schema: &compiler.Schema{}}
	if scenario.Schema == "" {
		return h, nil
	}

	v := h.cue.CompileString(scenario.Schema, cue.Filename(scenario.Name+".cue"))
	// Scenarios only need types; supply an empty ABI when none is given.
	v = v.FillPath(cue.ParsePath("abi"), map[string]any{})
	schema, err := compiler.CompileSchema(v)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	h.schema = schema
	return h, nil
}

// Run executes a scenario and returns the result. Case failures are
// reported in the result; the error is for scenarios that cannot run.
func Run(scenario *Scenario) (*Result, error) {
	h, err := New(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i := range scenario.Cases {
		c := &scenario.Cases[i]
		cr, errs := h.RunCase(c)
		result.Cases = append(result.Cases, cr)
		for _, msg := range errs {
			result.AddError(fmt.Sprintf("%s: %s", c.Name, msg))
		}
	}
	return result, nil
}

// RunCase decodes one case from its source and checks every round trip.
// It returns the case result and one message per failed expectation.
func (h *Harness) RunCase(c *Case) (CaseResult, []string) {
	cr := CaseResult{Name: c.Name, Source: c.Source()}

	t, err := h.compileType(c)
	if err != nil {
		return cr, []string{err.Error()}
	}
	cr.Type = t

	v, err := h.decodeSource(t, c)
	if c.Error != nil {
		return cr, checkExpectedError(&cr, c.Error, err)
	}
	if err != nil {
		return cr, []string{fmt.Sprintf("decode %s: %v", cr.Source, err)}
	}

	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	cr.Tape = tape.Serialize(v)
	if c.Tape != nil && !slices.Equal(cr.Tape, c.Tape) {
		fail("tape = %v, want %v", cr.Tape, c.Tape)
	}
	if back, err := tape.Decode(t, cr.Tape); err != nil {
		fail("tape round trip: %v", err)
	} else if !abi.Equal(v, back) {
		fail("tape round trip changed the value")
	}

	mem, err := memory.Lay(t, v, abi.Address(c.Addr))
	if err != nil {
		fail("memory layout: %v", err)
	} else {
		cr.MemoryWords = len(mem)
		if back, err := memory.Decode(t, mem, abi.Address(c.Addr)); err != nil {
			fail("memory round trip: %v", err)
		} else if !abi.Equal(v, back) {
			fail("memory round trip changed the value")
		}
	}

	cr.Text = text.Render(v)
	if c.Render != nil && cr.Text != *c.Render {
		fail("render = %q, want %q", cr.Text, *c.Render)
	}
	if cr.Source == SourceText {
		if back, err := text.Parse(t, cr.Text); err != nil {
			fail("text round trip: %v", err)
		} else if !abi.Equal(v, back) {
			fail("text round trip changed the value")
		}
	}

	data, err := abi.MarshalValueJSON(v)
	if err != nil {
		fail("json: %v", err)
	} else {
		cr.JSON = string(data)
		if back, err := abi.UnmarshalValueJSON(t, data); err != nil {
			fail("json round trip: %v", err)
		} else if !abi.Equal(v, back) {
			fail("json round trip changed the value")
		}
	}
	return cr, errs
}

func (h *Harness) compileType(c *Case) (*abi.Type, error) {
	var raw any
	if err := c.Type.Decode(&raw); err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	t, err := h.schema.TypeExpr(h.cue.Encode(raw))
	if err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	return t, nil
}

func (h *Harness) decodeSource(t *abi.Type, c *Case) (abi.Value, error) {
	switch c.Source() {
	case SourceText:
		return text.Parse(t, *c.Text)
	case SourceValue:
		var raw any
		if err := c.Value.Decode(&raw); err != nil {
			return nil, err
		}
		return abi.FromJSON(t, raw)
	case SourceMemory:
		var opts []memory.Option
		if c.Budget != 0 {
			opts = append(opts, memory.WithBudget(c.Budget))
		}
		return memory.NewDecoder(opts...).Decode(t, snapshot(c.Memory), abi.Address(c.Addr))
	default:
		return tape.Decode(t, c.Tape)
	}
}

func snapshot(words map[uint64][]uint64) memory.Snapshot {
	s := make(memory.Snapshot, len(words))
	for addr, limbs := range words {
		var w abi.Word
		copy(w[:], limbs)
		s[abi.Address(addr)] = w
	}
	return s
}

func checkExpectedError(cr *CaseResult, want *ExpectError, err error) []string {
	if err == nil {
		return []string{fmt.Sprintf("expected %s error, decoded successfully", want.Code)}
	}
	code, ok := abi.CodeOf(err)
	if !ok {
		return []string{fmt.Sprintf("expected %s error, got %v", want.Code, err)}
	}
	var path string
	var abiErr *abi.Error
	if errors.As(err, &abiErr) {
		path = abi.FormatPath(abiErr.Path)
	}
	cr.ErrorCode, cr.ErrorPath = string(code), path

	var errs []string
	if string(code) != want.Code {
		errs = append(errs, fmt.Sprintf("error code = %s, want %s (%v)", code, want.Code, err))
	}
	if want.Path != "" && path != want.Path {
		errs = append(errs, fmt.Sprintf("error path = %q, want %q", path, want.Path))
	}
	return errs
}
