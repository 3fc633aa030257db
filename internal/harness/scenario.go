package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/zkabi/internal/abi"
)

// Scenario defines a codec conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is CUE source declaring named struct types under `types`.
	// An `abi` section is optional here.
	Schema string `yaml:"schema,omitempty"`

	Cases []Case `yaml:"cases"`
}

// Case is one typed value and its expected encodings.
type Case struct {
	Name string `yaml:"name"`

	// Type is a type expression, in the same form as the schema's:
	// "uint32", "Account", {array: "string"}, ...
	Type yaml.Node `yaml:"type"`

	// Sources. At most one may be set; with none, Tape is the source.
	// Value stays a raw node. It must not be a *yaml.Node, which yaml.v3
	// decodes field by field.
	Text   *string             `yaml:"text,omitempty"`
	Value  yaml.Node           `yaml:"value,omitempty"`
	Memory map[uint64][]uint64 `yaml:"memory,omitempty"`

	// Addr is where the value sits in Memory and where the round trip
	// lays it out.
	Addr uint64 `yaml:"addr,omitempty"`

	// Budget bounds decoding from Memory. Zero uses the decoder default.
	Budget uint64 `yaml:"budget,omitempty"`

	Tape   []uint64     `yaml:"tape,omitempty"`
	Render *string      `yaml:"render,omitempty"`
	Error  *ExpectError `yaml:"error,omitempty"`
}

// ExpectError is the failure a case's source must produce.
type ExpectError struct {
	Code string `yaml:"code"`

	// Path is matched against abi.FormatPath when set.
	Path string `yaml:"path,omitempty"`
}

// Source names used in results and messages.
const (
	SourceText   = "text"
	SourceValue  = "value"
	SourceMemory = "memory"
	SourceTape   = "tape"
)

// HasValue reports whether the case has a value source.
func (c *Case) HasValue() bool {
	return c.Value.Kind != 0
}

// Source reports which input the case decodes from.
func (c *Case) Source() string {
	switch {
	case c.Text != nil:
		return SourceText
	case c.HasValue():
		return SourceValue
	case c.Memory != nil:
		return SourceMemory
	default:
		return SourceTape
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "tapes:" vs "tape:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i := range s.Cases {
		c := &s.Cases[i]
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		seen[c.Name] = true

		if c.Type.Kind == 0 {
			return fmt.Errorf("cases[%d]: type is required", i)
		}

		sources := 0
		for _, set := range []bool{c.Text != nil, c.HasValue(), c.Memory != nil} {
			if set {
				sources++
			}
		}
		if sources > 1 {
			return fmt.Errorf("cases[%d]: text, value and memory are mutually exclusive", i)
		}
		if sources == 0 && c.Tape == nil {
			return fmt.Errorf("cases[%d]: a source (text, value, memory or tape) is required", i)
		}
		for addr, words := range c.Memory {
			if len(words) > abi.LimbsPerWord {
				return fmt.Errorf("cases[%d]: memory word %d has %d limbs, max %d", i, addr, len(words), abi.LimbsPerWord)
			}
		}
		if c.Budget != 0 && c.Memory == nil {
			return fmt.Errorf("cases[%d]: budget applies only to memory sources", i)
		}
		if c.Error != nil && c.Error.Code == "" {
			return fmt.Errorf("cases[%d].error: code is required", i)
		}
	}
	return nil
}
