package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnalyzeCycles_Empty tests that empty input produces no cycles.
func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
}

// TestAnalyzeCycles_DAG tests that a directed acyclic graph produces no cycles.
func TestAnalyzeCycles_DAG(t *testing.T) {
	graph := dependencyGraph{
		"Order":   {"Item", "Address"},
		"Item":    {"Price"},
		"Address": {},
		"Price":   {},
	}
	assert.Empty(t, AnalyzeCycles(graph))
}

// TestAnalyzeCycles_SelfLoop tests detection of a self-containing type.
func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	graph := dependencyGraph{"Node": {"Node"}}

	cycles := AnalyzeCycles(graph)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"Node", "Node"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "Node contains itself")
}

// TestAnalyzeCycles_ThreeNode tests a cycle through three types.
func TestAnalyzeCycles_ThreeNode(t *testing.T) {
	graph := dependencyGraph{
		"A": {"B"},
		"B": {"C"},
		"C": {"A"},
		"D": {"A"},
	}

	cycles := AnalyzeCycles(graph)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, cycles[0].Path)
	assert.Equal(t, "recursive types: A → B → C → A", cycles[0].Message)
}

// TestAnalyzeCycles_Multiple tests that disjoint cycles are reported in
// name order.
func TestAnalyzeCycles_Multiple(t *testing.T) {
	graph := dependencyGraph{
		"Y": {"Z"},
		"Z": {"Y"},
		"B": {"A"},
		"A": {"B"},
		"S": {"S"},
	}

	cycles := AnalyzeCycles(graph)
	require.Len(t, cycles, 3)
	assert.Equal(t, "A", cycles[0].Path[0])
	assert.Equal(t, "S", cycles[1].Path[0])
	assert.Equal(t, "Y", cycles[2].Path[0])
}

// TestAnalyzeCycles_Deterministic runs the analysis repeatedly over a map
// whose iteration order varies.
func TestAnalyzeCycles_Deterministic(t *testing.T) {
	graph := dependencyGraph{
		"P": {"Q", "R"},
		"Q": {"R"},
		"R": {"P"},
	}

	first := AnalyzeCycles(graph)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AnalyzeCycles(graph))
	}
}

func TestReconstructCyclePath_Empty(t *testing.T) {
	assert.Empty(t, reconstructCyclePath(nil, dependencyGraph{}))
}
