package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runYAML(t *testing.T, src string) *Result {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_Basic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/basic.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Cases, 5)

	point := result.Cases[2]
	assert.Equal(t, "Point", point.Type.Name)
	assert.Equal(t, []uint64{4294967295, 2}, point.Tape)
	assert.Equal(t, `{"x":-1,"y":2}`, point.JSON)

	bad := result.Cases[4]
	assert.Equal(t, "INVALID_BOOLEAN", bad.ErrorCode)
	assert.Empty(t, bad.Tape)
}

func TestRun_Composites(t *testing.T) {
	result := runYAML(t, `
name: composites
description: containers and keys
schema: |
  types: {
  	Entry: {tags: {array: "string"}, owner: {nullable: "public_key"}}
  }
cases:
  - name: array
    type: {array: uint32}
    text: "1;2;3"
    tape: [3, 1, 2, 3]
    render: "1;2;3"
  - name: map
    type: {map: {key: string, value: boolean}}
    value: [["b", true], ["a", false]]
    tape: [2, 1, 98, 1, 97, 2, 1, 0]
  - name: hash
    type: hash
    text: "1,2,3,18446744073709551615"
    tape: [1, 2, 3, 18446744073709551615]
  - name: reference
    type: {collection: accounts}
    text: "7,8"
    tape: [2, 7, 8]
  - name: entry
    type: Entry
    addr: 100
    value:
      tags: ["x"]
      owner:
        kty: EC
        crv: secp256k1
        alg: ES256K
        use: sig
        x: eb5mfvncu6xVoGKVzocLBwKb_NstzijZWfKBWxb4F5g=
        y: SDradyajxGVdpPv8DhEIqP0XtEimhVQZnEfQj_sQ1Lg=
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	entry := result.Cases[4]
	// tags [1, 1, 'x'] then owner [1, kty, crv, alg, use, x..., y...]
	require.Len(t, entry.Tape, 3+1+4+64)
	assert.Equal(t, []uint64{1, 1, 'x', 1, 1, 1, 1, 1, 0x79}, entry.Tape[:9])
	// tags header, element header, payload, owner flag, key header, key payload
	assert.Equal(t, 3+2+1+1+5+64, entry.MemoryWords)
}

func TestRun_ExpectedErrors(t *testing.T) {
	result := runYAML(t, `
name: errors
description: every source rejects bad input with a code and path
schema: |
  types: Pair: {left: "uint32", right: "boolean"}
cases:
  - name: overflow
    type: uint32
    text: "4294967296"
    error: {code: SIZE_OVERFLOW}
  - name: bad_struct_field
    type: Pair
    value: {left: 1, right: "yes"}
    error: {code: TYPE_MISMATCH, path: right}
  - name: short_tape
    type: uint64
    tape: [1]
    error: {code: TAPE_EXHAUSTED}
  - name: missing_word
    type: Pair
    memory: {0: [1]}
    error: {code: ADDRESS_OUT_OF_BOUNDS, path: right}
  - name: over_budget
    type: string
    memory: {0: [3], 1: [2], 2: [97], 3: [98], 4: [99]}
    budget: 2
    error: {code: BUDGET_EXCEEDED}
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	for _, c := range result.Cases {
		assert.NotEmpty(t, c.ErrorCode, c.Name)
	}
}

func TestRun_ReportsMismatches(t *testing.T) {
	result := runYAML(t, `
name: mismatches
description: wrong expectations are reported per case
cases:
  - name: wrong_tape
    type: uint32
    text: "5"
    tape: [6]
  - name: wrong_render
    type: {nullable: uint32}
    tape: [0]
    render: "none"
  - name: unexpected_success
    type: boolean
    text: "true"
    error: {code: MALFORMED_TEXT}
  - name: wrong_code
    type: boolean
    text: "maybe"
    error: {code: INVALID_BOOLEAN}
  - name: unknown_type
    type: Nope
    text: "1"
  - name: decode_failure
    type: boolean
    text: "maybe"
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Equal(t, "wrong_tape: tape = [5], want [6]", result.Errors[0])
	assert.Equal(t, `wrong_render: render = "null", want "none"`, result.Errors[1])
	assert.Equal(t, "unexpected_success: expected MALFORMED_TEXT error, decoded successfully", result.Errors[2])
	assert.Contains(t, result.Errors[3], "wrong_code: error code = MALFORMED_TEXT, want INVALID_BOOLEAN")
	assert.Contains(t, result.Errors[4], `unknown_type: type: `)
	assert.Contains(t, result.Errors[4], `unknown type "Nope"`)
	assert.Contains(t, result.Errors[5], "decode_failure: decode text: MALFORMED_TEXT")
}

func TestNew_BadSchema(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: cyclic
description: recursive types do not compile
schema: |
  types: {A: {b: "B"}, B: {a: "A"}}
cases:
  - name: c
    type: boolean
    tape: [1]
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile schema")
	assert.Contains(t, err.Error(), "recursive types")
}
