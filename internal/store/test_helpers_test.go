package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/zkabi/internal/abi"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testABI is a small ABI with record state, one parameter and a result.
func testABI() *abi.ABI {
	return &abi.ABI{
		ThisAddr:   abi.Addr(100),
		ThisType:   abi.StructOf("Counter", abi.F("count", abi.TypeUInt64), abi.F("label", abi.TypeString)),
		ParamTypes: []*abi.Type{abi.TypeUInt32},
		ResultAddr: abi.Addr(200),
		ResultType: abi.TypeBoolean,
	}
}

// createTestJob stores testABI and a pending job referencing it.
func createTestJob(t *testing.T, s *Store, id string, seq int64) Job {
	t.Helper()
	ctx := context.Background()
	abiID, err := s.WriteABI(ctx, testABI())
	if err != nil {
		t.Fatalf("WriteABI() failed: %v", err)
	}
	job := Job{ID: id, ABIID: abiID, Seq: seq}
	if err := s.WriteJob(ctx, job); err != nil {
		t.Fatalf("WriteJob() failed: %v", err)
	}
	job.Status = JobPending
	return job
}
