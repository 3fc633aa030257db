package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/zkabi/internal/abi"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled schema.
type CompilationResult struct {
	ID    string      `json:"id"`
	Types []*abi.Type `json:"types"`
	ABI   *abi.ABI    `json:"abi"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema-dir>",
		Short: "Compile a CUE schema to an ABI",
		Long: `Compile a CUE ABI schema to the JSON ABI interchange format.

The schema declares named struct types and the program ABI: where the
record state and result live in memory, and the parameter types in
advice order. The compiled ABI must also pass validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the ABI JSON to a file")

	return cmd
}

func runCompile(opts *CompileOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadSchema(schemaDir)
	if err != nil {
		return loadFail(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, schemaDir)

	if len(loaded.Invalid) > 0 {
		return outputValidationErrors(formatter, loaded.Invalid)
	}

	schema := loaded.Schema
	id, err := schema.ABI.ID()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("hashing abi: %v", err))
	}
	result := &CompilationResult{ID: id, Types: schema.Types, ABI: schema.ABI}
	if result.Types == nil {
		result.Types = []*abi.Type{}
	}

	if opts.Output != "" {
		if err := writeABIToFile(schema.ABI, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d type(s), %d param(s)\n\n", len(result.Types), len(result.ABI.ParamTypes))

	if len(result.Types) > 0 {
		fmt.Fprintln(w, "Types:")
		for _, t := range result.Types {
			fmt.Fprintf(w, "  %s: %d word(s)\n", t, t.Width())
		}
		fmt.Fprintln(w)
	}

	a := result.ABI
	fmt.Fprintln(w, "ABI:")
	if a.ThisType != nil {
		fmt.Fprintf(w, "  this:   %s @ %s\n", a.ThisType, a.ThisAddr)
	}
	for i, p := range a.ParamTypes {
		fmt.Fprintf(w, "  args[%d]: %s\n", i, p)
	}
	if a.ResultType != nil {
		fmt.Fprintf(w, "  result: %s @ %s\n", a.ResultType, a.ResultAddr)
	}
	fmt.Fprintf(w, "  id:     %s\n", result.ID)

	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote ABI to %s\n", outputFile)
	}

	return nil
}

// writeABIToFile writes the ABI interchange JSON to a file.
func writeABIToFile(a *abi.ABI, filename string) error {
	// Indented for readability; content IDs come from the canonical form.
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling abi: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
