// Package harness runs codec conformance scenarios.
//
// A scenario lists typed values and what each one must encode to. Every
// case is pushed through all codecs: it is decoded from its source, then
// serialized onto the tape, laid out in memory and read back, rendered as
// text, and written as JSON, and each round trip must reproduce the value.
//
// # Scenario Format
//
//	name: account_codecs
//	description: "Account records survive every codec"
//	schema: |
//	  types: Account: {id: "string", balance: "uint64"}
//	cases:
//	  - name: basic
//	    type: Account
//	    value: {id: "a1", balance: 7}
//	    tape: [2, 97, 49, 0, 7]
//	  - name: bad_flag
//	    type: boolean
//	    memory: {0: [2]}
//	    error: {code: INVALID_BOOLEAN}
//
// Each case has exactly one source: text, value (YAML in the JSON value
// form), memory (words keyed by address, read at addr) or, when none of
// those is given, tape. Expectations are tape, render (the text form) and
// error (the code, and optionally the path, the source must fail with).
//
// # Deterministic Output
//
// Case results contain no addresses or timestamps, so RunWithGolden can
// compare them byte for byte against testdata/golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/basic.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
