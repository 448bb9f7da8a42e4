package domain

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
)

// Fingerprint is the sha256 digest of a certificate's DER encoding. Two
// identical certificates always produce the same fingerprint, so the trust
// cache is content-addressed.
type Fingerprint = common.Hash

// ParseFingerprint decodes a 0x-optional hex string into a Fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != common.HashLength {
		return Fingerprint{}, ErrInvalidFingerprint
	}
	return common.BytesToHash(raw), nil
}

// CertChain is an ordered sequence of fingerprints from the root certificate
// down to the leaf, as presented by a report.
type CertChain []Fingerprint
