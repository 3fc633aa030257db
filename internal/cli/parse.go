package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/text"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	TypeOptions
	Addr int64 // lay the value out at this address when >= 0
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <text>",
		Short: "Parse a text literal into a typed value",
		Long: `Parse a text literal and print the value, its canonical tape and
its content ID. Pass "-" to read the literal from stdin.

Literal forms:
  boolean        true | false
  integers       decimal
  hash           four comma-separated limbs
  string         the text verbatim
  bytes          comma-separated decimal bytes
  array          elements separated by ';'
  map            key;value;key;value...
  nullable       null or the inner literal
  struct         fields in declaration order, comma-separated
  public_key     kty,crv,alg,use,x,y with base64url x and y

Examples:
  zkabi parse --type uint64 4294967296
  zkabi parse --type '{map: {key: "string", value: "uint32"}}' 'a;1;b;2'
  zkabi parse --schema ./schema --type Counter --addr 100 '7,visits'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	opts.TypeOptions.register(cmd)
	cmd.Flags().Int64Var(&opts.Addr, "addr", -1, "also lay the value out in memory at this address")

	return cmd
}

func runParse(opts *ParseOptions, arg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	t, err := opts.resolve()
	if err != nil {
		return loadFail(formatter, err)
	}
	formatter.VerboseLog("Parsing %s", t)

	literal, err := readArg(cmd, arg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, err.Error())
	}

	v, err := text.Parse(t, literal)
	if err != nil {
		return formatter.CodecFail(err)
	}
	return outputValue(formatter, t, v, opts.Addr)
}

// outputValue prints the value report, laying the value out at addr when
// addr is not negative.
func outputValue(formatter *OutputFormatter, t *abi.Type, v abi.Value, addr int64) error {
	report, err := newValueReport(t, v)
	if err != nil {
		return formatter.CodecFail(err)
	}
	if addr >= 0 {
		if err := report.layOut(t, v, abi.Address(addr)); err != nil {
			return formatter.CodecFail(err)
		}
	}
	return formatter.Success(report)
}
