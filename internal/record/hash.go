package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecord prefixes record fingerprints. The version suffix allows a
// future change of the canonical form without colliding with old values.
const DomainRecord = "recsync/record/v1"

// DomainSync prefixes import fingerprints, which tie a record fingerprint to
// the live state saved from it.
const DomainSync = "recsync/sync/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content hash of a record's canonical form.
// The live store keeps the fingerprint of the last imported file so an
// unchanged file can be skipped on re-import.
func Fingerprint(r *SerializedRecord) (string, error) {
	canonical, err := MarshalCanonical(r.Canonical())
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", r.Identity, err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// HashCanonical computes the domain-separated hash of the canonical JSON of v.
func HashCanonical(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return hashWithDomain(domain, canonical), nil
}

// SyncFingerprint combines the fingerprint of an imported record with the
// content hash of the live state the import saved. A re-import may skip
// the record only while both halves still match.
func SyncFingerprint(recordFingerprint, liveHash string) string {
	return hashWithDomain(DomainSync, []byte(recordFingerprint+"\x00"+liveHash))
}
