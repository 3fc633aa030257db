package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/compiler"
	"github.com/roach88/zkabi/internal/memory"
	"github.com/roach88/zkabi/internal/tape"
	"github.com/roach88/zkabi/internal/text"
)

// TypeOptions are the flags shared by commands that take a value of a
// single type.
type TypeOptions struct {
	Type   string // CUE type expression
	Schema string // optional schema dir for named struct types
}

func (o *TypeOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Type, "type", "t", "", `value type, e.g. uint64, Account or '{array: "string"}'`)
	cmd.Flags().StringVar(&o.Schema, "schema", "", "schema dir declaring named struct types")
	_ = cmd.MarkFlagRequired("type")
}

// resolve compiles the --type flag against the optional schema.
func (o *TypeOptions) resolve() (*abi.Type, error) {
	var schema *compiler.Schema
	if o.Schema != "" {
		loaded, err := LoadSchema(o.Schema)
		if err != nil {
			return nil, err
		}
		schema = loaded.Schema
	}
	return CompileTypeFlag(schema, o.Type)
}

// ValueReport shows one value in every representation.
type ValueReport struct {
	Type   string      `json:"type"`
	TypeID string      `json:"type_id"`
	Value  any         `json:"value"`
	Text   string      `json:"text"`
	Tape   []abi.Limb  `json:"tape"`
	ID     string      `json:"id"`
	Memory *MemoryView `json:"memory,omitempty"`
}

// MemoryView is a value laid out in VM memory.
type MemoryView struct {
	Addr  abi.Address     `json:"addr"`
	Words int             `json:"words"`
	Dump  memory.Snapshot `json:"dump"`
}

func newValueReport(t *abi.Type, v abi.Value) (*ValueReport, error) {
	limbs := tape.Serialize(v)
	typeID, err := abi.TypeID(t)
	if err != nil {
		return nil, err
	}
	id, err := abi.ArtifactID(t, limbs)
	if err != nil {
		return nil, err
	}
	return &ValueReport{
		Type:   t.String(),
		TypeID: typeID,
		Value:  abi.ToJSON(v),
		Text:   text.Render(v),
		Tape:   limbs,
		ID:     id,
	}, nil
}

// layOut adds the memory image of v at addr to the report.
func (r *ValueReport) layOut(t *abi.Type, v abi.Value, addr abi.Address) error {
	dump, err := memory.Lay(t, v, addr)
	if err != nil {
		return err
	}
	r.Memory = &MemoryView{Addr: addr, Words: len(dump), Dump: dump}
	return nil
}

func (r *ValueReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "type:  %s\n", r.Type)
	fmt.Fprintf(&b, "text:  %s\n", r.Text)
	fmt.Fprintf(&b, "tape:  %v\n", r.Tape)
	fmt.Fprintf(&b, "id:    %s", r.ID)
	if r.Memory != nil {
		fmt.Fprintf(&b, "\nmemory: %d word(s) at %s", r.Memory.Words, r.Memory.Addr)
		for _, addr := range r.Memory.Dump.Addresses() {
			w, _ := r.Memory.Dump.ReadWord(addr)
			fmt.Fprintf(&b, "\n  %s: %v", addr, w)
		}
	}
	return b.String()
}

// readArg returns the argument, or stdin when it is "-".
func readArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
