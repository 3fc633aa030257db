package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/compiler"
)

// LoadResult contains a schema loaded from a directory of CUE files.
type LoadResult struct {
	Schema    *compiler.Schema
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found

	// Invalid holds the validation errors of the compiled schema. A schema
	// with validation errors still compiles.
	Invalid []compiler.ValidationError
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema loads, compiles and validates the CUE schema in dir. All CUE
// files in dir must belong to one package.
func LoadSchema(dir string) (*LoadResult, error) {
	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	schema, err := compiler.CompileSchema(value)
	if err != nil {
		return nil, convertCompileError(err, ErrCodeSchema)
	}

	return &LoadResult{
		Schema:    schema,
		CUEValue:  value,
		FileCount: len(cueFiles),
		Invalid:   compiler.Validate(schema),
	}, nil
}

// LoadABI loads a schema that must also pass validation.
func LoadABI(dir string) (*compiler.Schema, error) {
	res, err := LoadSchema(dir)
	if err != nil {
		return nil, err
	}
	if len(res.Invalid) > 0 {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: res.Invalid[0].Error()}
	}
	return res.Schema, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// CompileTypeFlag compiles a --type flag. The flag is a CUE type
// expression; a bare name such as uint64 or Account needs no quotes.
// Struct names resolve against schema, which may be nil.
func CompileTypeFlag(schema *compiler.Schema, expr string) (*abi.Type, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, &LoadError{Code: ErrCodeType, Message: "--type is required"}
	}
	if !strings.HasPrefix(expr, "{") && !strings.HasPrefix(expr, `"`) {
		expr = strconv.Quote(expr)
	}
	if schema == nil {
		schema = &compiler.Schema{}
	}

	v := cuecontext.New().CompileString(expr, cue.Filename("--type"))
	t, err := schema.TypeExpr(v)
	if err != nil {
		return nil, convertCompileError(err, ErrCodeType)
	}
	return t, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, code string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// loadFail reports a loader error through the formatter.
func loadFail(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		msg := loadErr.Message
		if loadErr.Pos.IsValid() {
			msg = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), msg)
		}
		return f.Fail(ExitCommandError, loadErr.Code, msg)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
}
