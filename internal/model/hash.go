package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainDocument prefixes document content hashes. The version suffix
// allows the algorithm to change without colliding with old hashes.
const DomainDocument = "shiftguard/document/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash identifies the content of doc. The lastUpdated stamp is not
// part of the content; nil and empty collections hash the same.
func ContentHash(doc Document) (string, error) {
	d := doc.Clone()
	d.Normalize()
	d.LastUpdated = 0

	canonical, err := MarshalCanonical(d)
	if err != nil {
		return "", fmt.Errorf("ContentHash: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when the document is known to be valid.
func MustContentHash(doc Document) string {
	h, err := ContentHash(doc)
	if err != nil {
		panic(err)
	}
	return h
}
