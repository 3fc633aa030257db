package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/zkabi/internal/abi"
)

// Snapshot renders a result as canonical JSON for golden comparison.
// Values appear as their text and JSON forms so floats and nulls never
// reach the canonical encoder.
func Snapshot(name string, result *Result) ([]byte, error) {
	cases := make([]any, len(result.Cases))
	for i, c := range result.Cases {
		m := map[string]any{
			"name":   c.Name,
			"source": c.Source,
		}
		if c.Type != nil {
			m["type"] = c.Type
		}
		if c.ErrorCode != "" {
			m["error"] = map[string]any{"code": c.ErrorCode, "path": c.ErrorPath}
		} else {
			limbs := make([]any, len(c.Tape))
			for j, l := range c.Tape {
				limbs[j] = l
			}
			m["tape"] = limbs
			m["text"] = c.Text
			m["json"] = c.JSON
			m["memory_words"] = c.MemoryWords
		}
		cases[i] = m
	}
	return abi.MarshalCanonical(map[string]any{
		"scenario": name,
		"cases":    cases,
	})
}

// RunWithGolden executes a scenario and compares the result against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also assert on Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden
// file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
