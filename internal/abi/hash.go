package abi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainType     = "zkabi/type/v1"
	DomainTape     = "zkabi/tape/v1"
	DomainArtifact = "zkabi/artifact/v1"
	DomainABI      = "zkabi/abi/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TypeID computes the content-addressed ID of a type descriptor.
// Two descriptors have the same ID exactly when they are Equal.
func TypeID(t *Type) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("TypeID: %w", err)
	}
	canonical, err := MarshalCanonical(t)
	if err != nil {
		return "", fmt.Errorf("TypeID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainType, canonical), nil
}

// TapeID computes the content-addressed ID of a limb sequence. Limbs are
// rendered as decimal strings so the full uint64 range survives canonical
// JSON.
func TapeID(limbs []Limb) (string, error) {
	return hashWithDomain(DomainTape, tapeCanonical(limbs)), nil
}

// ArtifactID computes the ID of a value of type t, given its serialized
// tape. The same value under a different type gets a different ID.
func ArtifactID(t *Type, limbs []Limb) (string, error) {
	typeID, err := TypeID(t)
	if err != nil {
		return "", fmt.Errorf("ArtifactID: %w", err)
	}
	obj := map[string]any{
		"type_id": typeID,
		"tape":    tapeTree(limbs),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ArtifactID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainArtifact, canonical), nil
}

func tapeTree(limbs []Limb) []any {
	out := make([]any, len(limbs))
	for i, l := range limbs {
		out[i] = strconv.FormatUint(l, 10)
	}
	return out
}

func tapeCanonical(limbs []Limb) []byte {
	// Decimal strings never need escaping, so this cannot fail.
	b, _ := marshalCanonicalArray(tapeTree(limbs))
	return b
}

// MustTypeID is like TypeID but panics on error.
// Use only in tests or when the descriptor is known to be valid.
func MustTypeID(t *Type) string {
	id, err := TypeID(t)
	if err != nil {
		panic(fmt.Sprintf("MustTypeID: %v", err))
	}
	return id
}

// MustArtifactID is like ArtifactID but panics on error.
// Use only in tests or when the descriptor is known to be valid.
func MustArtifactID(t *Type, limbs []Limb) string {
	id, err := ArtifactID(t, limbs)
	if err != nil {
		panic(fmt.Sprintf("MustArtifactID: %v", err))
	}
	return id
}
