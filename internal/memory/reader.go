package memory

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/zkabi/internal/abi"
)

// WordReader gives read access to VM memory. ReadWord reports false for a
// word that was never written.
//
// Implementations must be safe for concurrent reads.
type WordReader interface {
	ReadWord(addr abi.Address) (abi.Word, bool)
}

// ReaderFunc adapts a function to the WordReader interface.
type ReaderFunc func(addr abi.Address) (abi.Word, bool)

// ReadWord calls f(addr).
func (f ReaderFunc) ReadWord(addr abi.Address) (abi.Word, bool) {
	return f(addr)
}

// Snapshot is a sparse, map-backed copy of memory captured after
// execution. Its JSON form is an object keyed by decimal address:
//
//	{"100": [1, 0, 0, 0], "101": [7, 0, 0, 0]}
type Snapshot map[abi.Address]abi.Word

// ReadWord implements WordReader.
func (s Snapshot) ReadWord(addr abi.Address) (abi.Word, bool) {
	w, ok := s[addr]
	return w, ok
}

// Addresses returns the written addresses in ascending order.
func (s Snapshot) Addresses() []abi.Address {
	addrs := make([]abi.Address, 0, len(s))
	for a := range s {
		addrs = append(addrs, a)
	}
	slices.Sort(addrs)
	return addrs
}

// Merge copies every word of other into s, overwriting on conflict.
func (s Snapshot) Merge(other Snapshot) {
	for a, w := range other {
		s[a] = w
	}
}

// MarshalJSON implements json.Marshaler.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	obj := make(map[string]abi.Word, len(s))
	for a, w := range s {
		obj[a.String()] = w
	}
	return json.Marshal(obj)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var obj map[string]abi.Word
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	out := make(Snapshot, len(obj))
	for k, w := range obj {
		a, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return fmt.Errorf("snapshot: invalid address %q", k)
		}
		out[abi.Address(a)] = w
	}
	*s = out
	return nil
}

// Words is a dense, slice-backed region of memory starting at Base.
type Words struct {
	Base abi.Address
	Data []abi.Word
}

// ReadWord implements WordReader.
func (w Words) ReadWord(addr abi.Address) (abi.Word, bool) {
	if addr < w.Base || uint64(addr-w.Base) >= uint64(len(w.Data)) {
		return abi.Word{}, false
	}
	return w.Data[addr-w.Base], true
}
