package store

import (
	"context"
	"fmt"

	"github.com/roach88/zkabi/internal/abi"
)

// GetLastSeq returns the highest seq number used in the store.
// Used for recovery to resume the logical clock from the correct position.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var jobSeq, artSeq int64

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM jobs
	`).Scan(&jobSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from jobs: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM artifacts
	`).Scan(&artSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from artifacts: %w", err)
	}

	return max(jobSeq, artSeq), nil
}

// FindIncompleteJobs returns jobs that never reached a terminal status,
// oldest first. A non-empty result after a restart means a crash.
func (s *Store) FindIncompleteJobs(ctx context.Context) ([]Job, error) {
	return s.queryJobs(ctx, `
		SELECT id, abi_id, seq, status, error_code, error
		FROM jobs
		WHERE status = 'pending'
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// Mismatch is an artifact whose stored ID no longer matches its content.
type Mismatch struct {
	Kind     ArtifactKind `json:"kind"`
	Seq      int64        `json:"seq"`
	Stored   string       `json:"stored"`
	Computed string       `json:"computed"`
}

// VerifyJob recomputes the content ID of every artifact of a job from its
// stored type and tape. It returns the artifacts whose IDs differ.
func (s *Store) VerifyJob(ctx context.Context, jobID string) ([]Mismatch, error) {
	if _, err := s.ReadJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("verify job: %w", err)
	}
	arts, err := s.ReadArtifacts(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("verify job: %w", err)
	}

	mismatches := []Mismatch{}
	for _, art := range arts {
		computed, err := abi.ArtifactID(art.Type, art.Tape)
		if err != nil {
			return nil, fmt.Errorf("verify job: %s/%d: %w", art.Kind, art.Seq, err)
		}
		if computed != art.ID {
			mismatches = append(mismatches, Mismatch{
				Kind:     art.Kind,
				Seq:      art.Seq,
				Stored:   art.ID,
				Computed: computed,
			})
		}
	}
	return mismatches, nil
}
