package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/tape"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ReadABI retrieves an ABI by content ID.
// Returns ErrNotFound if missing.
func (s *Store) ReadABI(ctx context.Context, id string) (*abi.ABI, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT abi FROM abis WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read abi %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read abi: %w", err)
	}
	a, err := abi.ParseABI([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("read abi %s: %w", id, err)
	}
	return a, nil
}

// ReadJob retrieves a single job by ID.
// Returns ErrNotFound if missing.
func (s *Store) ReadJob(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, abi_id, seq, status, error_code, error
		FROM jobs
		WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("read job %s: %w", id, ErrNotFound)
	}
	return job, err
}

// ReadJobs returns every job ordered by seq ASC, id ASC COLLATE BINARY.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadJobs(ctx context.Context) ([]Job, error) {
	return s.queryJobs(ctx, `
		SELECT id, abi_id, seq, status, error_code, error
		FROM jobs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// ReadArtifacts returns all artifacts of a job with deterministic
// ordering: kind, then seq.
// Returns an empty slice (not nil) if the job has none.
func (s *Store) ReadArtifacts(ctx context.Context, jobID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, kind, seq, id, type, tape
		FROM artifacts
		WHERE job_id = ?
		ORDER BY kind COLLATE BINARY ASC, seq ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	arts := []Artifact{}
	for rows.Next() {
		art, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		arts = append(arts, art)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return arts, nil
}

// ReadArtifact retrieves an artifact by content ID. The same content may
// belong to several jobs; the earliest job's copy is returned.
// Returns ErrNotFound if missing.
func (s *Store) ReadArtifact(ctx context.Context, id string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT a.job_id, a.kind, a.seq, a.id, a.type, a.tape
		FROM artifacts a
		JOIN jobs j ON a.job_id = j.id
		WHERE a.id = ?
		ORDER BY j.seq ASC, a.job_id COLLATE BINARY ASC, a.kind COLLATE BINARY ASC, a.seq ASC
		LIMIT 1
	`, id)

	art, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, fmt.Errorf("read artifact %s: %w", id, ErrNotFound)
	}
	return art, err
}

// ReadArtifactValueJSON returns the stored value JSON of one artifact.
func (s *Store) ReadArtifactValueJSON(ctx context.Context, jobID string, kind ArtifactKind, seq int64) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM artifacts WHERE job_id = ? AND kind = ? AND seq = ?
	`, jobID, string(kind), seq).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read artifact %s/%s/%d: %w", jobID, kind, seq, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact value: %w", err)
	}
	return json.RawMessage(data), nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (Job, error) {
	var job Job
	var status string
	if err := row.Scan(&job.ID, &job.ABIID, &job.Seq, &status, &job.ErrorCode, &job.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, err
		}
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.Status = JobStatus(status)
	return job, nil
}

// scanArtifact rebuilds the value from the stored tape. The stored ID is
// returned as is; VerifyJob recomputes it.
func scanArtifact(row scanner) (Artifact, error) {
	var art Artifact
	var kind, typeJSON, tapeJSON string
	if err := row.Scan(&art.JobID, &kind, &art.Seq, &art.ID, &typeJSON, &tapeJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Artifact{}, err
		}
		return Artifact{}, fmt.Errorf("scan artifact: %w", err)
	}
	art.Kind = ArtifactKind(kind)

	t, err := unmarshalType(typeJSON)
	if err != nil {
		return Artifact{}, err
	}
	art.Type = t

	limbs, err := unmarshalTape(tapeJSON)
	if err != nil {
		return Artifact{}, err
	}
	art.Tape = limbs

	v, err := tape.Decode(t, limbs)
	if err != nil {
		return Artifact{}, fmt.Errorf("scan artifact %s: stored tape does not decode: %w", art.ID, err)
	}
	art.Value = v
	return art, nil
}
