package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/tape"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	TypeOptions
	FromTape bool  // argument is a tape, not a JSON value
	Addr     int64 // lay the value out at this address when >= 0
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <json>",
		Short: "Encode a JSON value to its canonical tape",
		Long: `Encode a JSON value of the given type to the canonical limb tape.

With --from-tape the argument is a JSON array of limbs instead, and the
tape is decoded back into a value. Pass "-" to read from stdin.

JSON forms: nullable as null, hash as four numbers, bytes and collection
references as base64, maps as [key, value] pairs, public keys as
{"kty","crv","alg","use","x","y"} with base64url coordinates.

Examples:
  zkabi encode --type '{array: "uint32"}' '[1, 2, 3]'
  zkabi encode --type string --from-tape '[2, 104, 105]'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, args[0], cmd)
		},
	}

	opts.TypeOptions.register(cmd)
	cmd.Flags().BoolVar(&opts.FromTape, "from-tape", false, "decode a tape instead of encoding a value")
	cmd.Flags().Int64Var(&opts.Addr, "addr", -1, "also lay the value out in memory at this address")

	return cmd
}

func runEncode(opts *EncodeOptions, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	t, err := opts.resolve()
	if err != nil {
		return loadFail(formatter, err)
	}

	input, err := readArg(cmd, arg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, err.Error())
	}

	var v abi.Value
	if opts.FromTape {
		var limbs []abi.Limb
		if err := json.Unmarshal([]byte(input), &limbs); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, fmt.Sprintf("tape must be a JSON array of limbs: %v", err))
		}
		formatter.VerboseLog("Decoding %d limb(s) as %s", len(limbs), t)
		v, err = tape.Decode(t, limbs)
	} else {
		formatter.VerboseLog("Encoding %s", t)
		v, err = abi.UnmarshalValueJSON(t, []byte(input))
	}
	if err != nil {
		return formatter.CodecFail(err)
	}
	return outputValue(formatter, t, v, opts.Addr)
}
