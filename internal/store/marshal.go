package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/zkabi/internal/abi"
)

// marshalType converts a descriptor to canonical JSON TEXT for storage.
func marshalType(t *abi.Type) (string, error) {
	data, err := abi.MarshalCanonical(t)
	if err != nil {
		return "", fmt.Errorf("marshal type: %w", err)
	}
	return string(data), nil
}

func unmarshalType(data string) (*abi.Type, error) {
	var t abi.Type
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("unmarshal type: %w", err)
	}
	return &t, nil
}

// marshalTape converts limbs to a canonical JSON array of integers.
// Limbs are full 64-bit values, so they are never read back as float64.
func marshalTape(limbs []abi.Limb) (string, error) {
	arr := make([]any, len(limbs))
	for i, l := range limbs {
		arr[i] = l
	}
	data, err := abi.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal tape: %w", err)
	}
	return string(data), nil
}

// unmarshalTape parses the stored tape. encoding/json decodes integers
// into uint64 targets without going through float64.
func unmarshalTape(data string) ([]abi.Limb, error) {
	limbs := []abi.Limb{}
	if err := json.Unmarshal([]byte(data), &limbs); err != nil {
		return nil, fmt.Errorf("unmarshal tape: %w", err)
	}
	return limbs, nil
}

func marshalValue(v abi.Value) (string, error) {
	data, err := abi.MarshalValueJSON(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

func marshalABI(a *abi.ABI) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal abi: %w", err)
	}
	return string(data), nil
}
