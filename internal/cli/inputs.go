package cli

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/prover"
	"github.com/roach88/zkabi/internal/tape"
	"github.com/roach88/zkabi/internal/text"
)

// InputsOptions holds flags for the inputs command.
type InputsOptions struct {
	*RootOptions
	Key  string // hex secp256k1 public key, compressed or uncompressed
	This string // record state text literal; zero state when empty
}

// InputEntry is one value on the advice tape.
type InputEntry struct {
	Name  string     `json:"name"`
	Type  string     `json:"type"`
	Text  string     `json:"text"`
	Tape  []abi.Limb `json:"tape"`
	Start int        `json:"start"` // offset of the entry on the full tape
}

// InputsResult is an assembled advice tape.
type InputsResult struct {
	ABIID   string       `json:"abi_id"`
	Entries []InputEntry `json:"entries"`
	Tape    []abi.Limb   `json:"tape"`
	TapeID  string       `json:"tape_id"`
}

func (r *InputsResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Advice tape: %d limb(s)\n\n", len(r.Tape))
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "  %-16s %s = %s\n", e.Name, e.Type, e.Text)
		fmt.Fprintf(&b, "  %-16s @%d %v\n", "", e.Start, e.Tape)
	}
	fmt.Fprintf(&b, "\ntape_id: %s", r.TapeID)
	return b.String()
}

// NewInputsCommand creates the inputs command.
func NewInputsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InputsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inputs <schema-dir> [args...]",
		Short: "Assemble the advice tape for a program call",
		Long: `Assemble the advice tape a program reads: the caller's public key
(or null), the record state, then each argument in parameter order.

Arguments and --this are text literals of the ABI's types. Without
--this the record state is the zero value of its type.

Examples:
  zkabi inputs ./schema 7
  zkabi inputs ./schema --this '5,visits' --key 0x04... 7`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInputs(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Key, "key", "", "caller public key (hex, secp256k1)")
	cmd.Flags().StringVar(&opts.This, "this", "", "record state text literal")

	return cmd
}

func runInputs(opts *InputsOptions, schemaDir string, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	schema, err := LoadABI(schemaDir)
	if err != nil {
		return loadFail(formatter, err)
	}
	a := schema.ABI

	var key *abi.PublicKey
	if opts.Key != "" {
		pub, err := parsePublicKeyHex(opts.Key)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, fmt.Sprintf("--key: %v", err))
		}
		k := abi.PublicKeyFromECDSA(pub)
		key = &k
	}

	var this abi.Value
	if cmd.Flags().Changed("this") {
		if a.ThisType == nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, "--this given but the abi declares no record state")
		}
		this, err = text.Parse(a.ThisType, opts.This)
		if err != nil {
			return formatter.CodecFail(abi.Within(err, "this"))
		}
	}

	if len(args) != len(a.ParamTypes) {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput,
			fmt.Sprintf("abi takes %d argument(s), got %d", len(a.ParamTypes), len(args)))
	}
	values := make([]abi.Value, len(args))
	for i, arg := range args {
		values[i], err = text.Parse(a.ParamTypes[i], arg)
		if err != nil {
			return formatter.CodecFail(abi.Within(err, "args", abi.Index(i)))
		}
	}

	in, err := prover.NewInputs(a, key, this, values)
	if err != nil {
		return formatter.CodecFail(err)
	}

	result, err := buildInputsResult(in)
	if err != nil {
		return formatter.CodecFail(err)
	}
	return formatter.Success(result)
}

func buildInputsResult(in *prover.Inputs) (*InputsResult, error) {
	abiID, err := in.ABI.ID()
	if err != nil {
		return nil, err
	}
	full := in.Tape()
	tapeID, err := abi.TapeID(full)
	if err != nil {
		return nil, err
	}

	result := &InputsResult{ABIID: abiID, Tape: full, TapeID: tapeID}
	start := 0
	for _, e := range in.Entries() {
		// Entries concatenate to the full tape.
		n := len(tape.Serialize(e.Value))
		result.Entries = append(result.Entries, InputEntry{
			Name:  e.Name,
			Type:  e.Type.String(),
			Text:  text.Render(e.Value),
			Tape:  full[start : start+n],
			Start: start,
		})
		start += n
	}
	return result, nil
}

// parsePublicKeyHex accepts a 33-byte compressed or 65-byte uncompressed
// SEC1 key, with or without 0x.
func parsePublicKeyHex(s string) (*ecdsa.PublicKey, error) {
	raw := common.FromHex(strings.TrimSpace(s))
	switch len(raw) {
	case 33:
		return crypto.DecompressPubkey(raw)
	case 65:
		return crypto.UnmarshalPubkey(raw)
	default:
		return nil, fmt.Errorf("expected 33 or 65 bytes, got %d", len(raw))
	}
}
