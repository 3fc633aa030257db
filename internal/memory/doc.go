// Package memory decodes ABI values out of a snapshot of VM memory and,
// in the other direction, lays values into fresh memory.
//
// VM memory is word addressed. A value of type T occupies T.Width() words
// at its own address; variable-length payloads (text, bytes, array
// elements, public key coordinates) live out of line behind a data
// pointer stored in the value's header.
//
// Decoding is read-only and keeps all state in the call, so a single
// snapshot may be decoded from many goroutines at once. Every call
// carries a budget of payload units (bytes plus elements). Length headers
// are charged against the budget before any payload word is read, which
// bounds the work an adversarial length can cause.
//
// Key types:
//   - WordReader: read access to memory, satisfied by Snapshot, Words and ReaderFunc
//   - Decoder: type-directed memory decoder with a configurable budget
//   - Layout: bump-allocating writer that produces a Snapshot
package memory
