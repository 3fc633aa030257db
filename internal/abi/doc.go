// Package abi provides the type descriptors, values and memory layout
// constants shared by every codec in zkabi.
//
// This package contains definitions only. The codecs (internal/memory,
// internal/text, internal/tape) import abi; abi imports nothing internal,
// and no codec imports another codec.
//
// Key design constraints:
//   - Type descriptors are immutable once built and may be shared freely
//   - A Value always has the shape of the Type that produced it
//   - Widths are measured in VM words; a word holds four limbs
//   - Layout constants (ArrayHeaderWidth, public key field order) live in
//     layout.go and nowhere else
package abi
