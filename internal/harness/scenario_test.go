package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/basic.yaml")
	require.NoError(t, err)

	assert.Equal(t, "basic", s.Name)
	require.Len(t, s.Cases, 5)
	assert.Equal(t, SourceText, s.Cases[0].Source())
	assert.Equal(t, SourceValue, s.Cases[2].Source())
	assert.Equal(t, SourceTape, s.Cases[3].Source())
	assert.Equal(t, SourceMemory, s.Cases[4].Source())
	assert.Equal(t, []uint64{2}, s.Cases[4].Memory[0])
	assert.Equal(t, "INVALID_BOOLEAN", s.Cases[4].Error.Code)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: one
description: a single case
cases:
  - name: n
    type: uint32
    text: "7"
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "one", s.Name)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: a\ndescription: b\ncases: []\ntapes: []\n",
			want: "field tapes not found",
		},
		{
			name: "missing name",
			yaml: "description: b\ncases: [{name: c, type: boolean, text: \"true\"}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: a\ncases: [{name: c, type: boolean, text: \"true\"}]\n",
			want: "description is required",
		},
		{
			name: "no cases",
			yaml: "name: a\ndescription: b\n",
			want: "cases list is required",
		},
		{
			name: "case without type",
			yaml: "name: a\ndescription: b\ncases: [{name: c, text: \"1\"}]\n",
			want: "cases[0]: type is required",
		},
		{
			name: "case without source",
			yaml: "name: a\ndescription: b\ncases: [{name: c, type: boolean}]\n",
			want: "a source (text, value, memory or tape) is required",
		},
		{
			name: "two sources",
			yaml: "name: a\ndescription: b\ncases: [{name: c, type: boolean, text: \"true\", value: true}]\n",
			want: "mutually exclusive",
		},
		{
			name: "duplicate case",
			yaml: "name: a\ndescription: b\ncases: [{name: c, type: boolean, tape: [1]}, {name: c, type: boolean, tape: [0]}]\n",
			want: `duplicate case name "c"`,
		},
		{
			name: "oversized word",
			yaml: "name: a\ndescription: b\ncases: [{name: c, type: boolean, memory: {0: [1, 2, 3, 4, 5]}}]\n",
			want: "memory word 0 has 5 limbs",
		},
		{
			name: "budget without memory",
			yaml: "name: a\ndescription: b\ncases: [{name: c, type: string, text: x, budget: 1}]\n",
			want: "budget applies only to memory sources",
		},
		{
			name: "error without code",
			yaml: "name: a\ndescription: b\ncases: [{name: c, type: boolean, text: x, error: {path: p}}]\n",
			want: "cases[0].error: code is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_RawNodes(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: nodes
description: mapping types and values stay raw under strict fields
cases:
  - name: nested
    type: {map: {key: string, value: {nullable: uint32}}}
    value: [["a", 1], ["b", null]]
  - name: record
    type: {array: uint32}
    value: {left: 1}
  - name: scalar
    type: boolean
    value: true
`))
	require.NoError(t, err)
	require.Len(t, s.Cases, 3)

	for _, c := range s.Cases {
		assert.True(t, c.HasValue(), c.Name)
		assert.Equal(t, SourceValue, c.Source(), c.Name)
	}
	assert.Equal(t, yaml.MappingNode, s.Cases[0].Type.Kind)
	assert.Equal(t, yaml.MappingNode, s.Cases[1].Value.Kind)
	assert.Equal(t, yaml.ScalarNode, s.Cases[2].Value.Kind)

	var raw map[string]any
	require.NoError(t, s.Cases[1].Value.Decode(&raw))
	assert.Equal(t, map[string]any{"left": 1}, raw)

	_, err = ParseScenario([]byte("name: a\ndescription: b\ncases: [{name: c, type: boolean, tape: [1], tapes: [1]}]\n"))
	assert.ErrorContains(t, err, "field tapes not found")
}
