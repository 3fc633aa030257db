// Package store provides SQLite-backed durable storage for codec artifacts.
//
// The store keeps:
//   - ABIs: program ABIs, keyed by their content ID
//   - Jobs: one prover input build or output decode, with its status
//   - Artifacts: the typed tapes a job produced (advice input, decoded
//     record state, decoded result)
//
// # Critical Patterns
//
// Idempotent writes
//   - Every insert uses ON CONFLICT DO NOTHING
//   - Artifacts are keyed by (job_id, kind, seq), so a retried job never
//     duplicates output
//
// Logical time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Reads include ORDER BY seq ASC, id ASC COLLATE BINARY
//
// The tape is the stored source of truth. Values are rebuilt from it on
// read, and artifact IDs are recomputed by VerifyJob.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
