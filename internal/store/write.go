package store

import (
	"context"
	"fmt"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/tape"
)

// ArtifactKind names what an artifact holds.
type ArtifactKind string

const (
	// KindInput is a serialized advice tape handed to the prover.
	KindInput ArtifactKind = "input"

	// KindThis is record state decoded from prover memory.
	KindThis ArtifactKind = "this"

	// KindResult is a return value decoded from prover memory.
	KindResult ArtifactKind = "result"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is one unit of codec work against an ABI.
type Job struct {
	ID        string
	ABIID     string
	Seq       int64
	Status    JobStatus
	ErrorCode string
	Error     string
}

// Artifact is a typed value produced by a job. Tape is the stored source
// of truth; Value is rebuilt from it on read.
type Artifact struct {
	ID    string
	JobID string
	Kind  ArtifactKind
	Seq   int64
	Type  *abi.Type
	Tape  []abi.Limb
	Value abi.Value
}

// WriteABI stores an ABI under its content ID and returns the ID.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteABI(ctx context.Context, a *abi.ABI) (string, error) {
	id, err := a.ID()
	if err != nil {
		return "", fmt.Errorf("write abi: %w", err)
	}
	data, err := marshalABI(a)
	if err != nil {
		return "", fmt.Errorf("write abi: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO abis (id, abi)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, data)
	if err != nil {
		return "", fmt.Errorf("write abi: %w", err)
	}
	return id, nil
}

// WriteJob inserts a job record. Duplicate IDs are silently ignored.
//
// Note: The ABI referenced by ABIID must exist (foreign key constraint).
func (s *Store) WriteJob(ctx context.Context, job Job) error {
	if job.Status == "" {
		job.Status = JobPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, abi_id, seq, status, error_code, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, job.ID, job.ABIID, job.Seq, string(job.Status), job.ErrorCode, job.Error)
	if err != nil {
		return fmt.Errorf("write job: %w", err)
	}
	return nil
}

// FinishJob records the terminal status of a job. A job that already
// finished keeps its first outcome.
func (s *Store) FinishJob(ctx context.Context, id string, status JobStatus, code, message string) error {
	if status == JobPending {
		return fmt.Errorf("finish job %s: status must be terminal", id)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error_code = ?, error = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), code, message, id)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if n == 0 {
		if _, err := s.ReadJob(ctx, id); err != nil {
			return fmt.Errorf("finish job: %w", err)
		}
	}
	return nil
}

// WriteArtifact serializes the artifact value onto its tape and inserts
// it. The artifact ID, tape and type ID are derived here; any values set
// by the caller are overwritten.
//
// Uses ON CONFLICT(job_id, kind, seq) DO NOTHING for idempotency.
// Returns the artifact with its derived fields.
func (s *Store) WriteArtifact(ctx context.Context, art Artifact) (Artifact, error) {
	if art.Type == nil || art.Value == nil {
		return Artifact{}, fmt.Errorf("write artifact: type and value are required")
	}
	if err := abi.Conforms(art.Type, art.Value); err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}

	art.Tape = tape.Serialize(art.Value)
	id, err := abi.ArtifactID(art.Type, art.Tape)
	if err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	art.ID = id

	typeID, err := abi.TypeID(art.Type)
	if err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	typeJSON, err := marshalType(art.Type)
	if err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	tapeJSON, err := marshalTape(art.Tape)
	if err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	valueJSON, err := marshalValue(art.Value)
	if err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (job_id, kind, seq, id, type_id, type, tape, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, kind, seq) DO NOTHING
	`, art.JobID, string(art.Kind), art.Seq, art.ID, typeID, typeJSON, tapeJSON, valueJSON)
	if err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	return art, nil
}
