package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSnapshot = "vmform/snapshot/v1"
	DomainPayload  = "vmform/payload/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the content-addressed identity of a set of form values.
// Two snapshots with deep-equal values always hash identically, regardless
// of map iteration order or Unicode normalization form.
func SnapshotHash(values IRObject) (string, error) {
	canonical, err := MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// PayloadHash identifies the persisted payload of one save cycle: the merged
// values together with the override payload that produced them. The store
// uses it to recognise a repeated save of the same payload.
func PayloadHash(merged, overrides IRObject) (string, error) {
	obj := IRObject{
		"merged":    merged,
		"overrides": overrides,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("PayloadHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPayload, canonical), nil
}

// MustSnapshotHash is like SnapshotHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSnapshotHash(values IRObject) string {
	h, err := SnapshotHash(values)
	if err != nil {
		panic(err)
	}
	return h
}
