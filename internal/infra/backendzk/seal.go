// Package backendzk implements the proof-backend capability for the two
// supported zk coprocessors. The proving systems themselves are external
// collaborators; what lives here is the seal check that binds a proof blob
// to a program identity and a journal payload. Seals follow Groth16
// conventions: a 4-byte selector followed by [A, B, C] points derived from
// the claim digest.
package backendzk

import (
	"crypto/sha256"
	"errors"
)

var (
	ErrBadSealLength    = errors.New("backendzk: invalid seal length")
	ErrSelectorMismatch = errors.New("backendzk: seal selector mismatch")
)

const (
	selectorSize = 4
	pointASize   = 32
	pointBSize   = 64
	pointCSize   = 32
	sealSize     = selectorSize + pointASize + pointBSize + pointCSize
)

// claimDigest binds a program identity to the payload digest it committed.
func claimDigest(programID [32]byte, payloadDigest [32]byte) [32]byte {
	h := sha256.New()
	h.Write(programID[:])
	h.Write(payloadDigest[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func computePointA(claim [32]byte) [32]byte {
	h := sha256.New()
	h.Write(claim[:])
	h.Write([]byte("ProofPointA"))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func computePointB(pointA [32]byte, claim [32]byte) [64]byte {
	var out [64]byte
	for i := 0; i < 2; i++ {
		h := sha256.New()
		h.Write(pointA[:])
		h.Write(claim[:])
		h.Write([]byte{byte(i)})
		h.Write([]byte("ProofPointB"))
		copy(out[i*32:], h.Sum(nil))
	}
	return out
}

func computePointC(pointA [32]byte, pointB [64]byte) [32]byte {
	h := sha256.New()
	h.Write(pointA[:])
	h.Write(pointB[:])
	h.Write([]byte("ProofPointC"))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// buildSeal assembles selector || A || B || C for a claim.
func buildSeal(selector [selectorSize]byte, claim [32]byte) []byte {
	pointA := computePointA(claim)
	pointB := computePointB(pointA, claim)
	pointC := computePointC(pointA, pointB)

	seal := make([]byte, 0, sealSize)
	seal = append(seal, selector[:]...)
	seal = append(seal, pointA[:]...)
	seal = append(seal, pointB[:]...)
	seal = append(seal, pointC[:]...)
	return seal
}

// checkSeal recomputes the expected seal for a claim and compares.
func checkSeal(seal []byte, selector [selectorSize]byte, claim [32]byte) error {
	if len(seal) != sealSize {
		return ErrBadSealLength
	}
	var got [selectorSize]byte
	copy(got[:], seal[:selectorSize])
	if got != selector {
		return ErrSelectorMismatch
	}

	expected := buildSeal(selector, claim)
	for i := selectorSize; i < sealSize; i++ {
		if seal[i] != expected[i] {
			return errSealMismatch
		}
	}
	return nil
}

var errSealMismatch = errors.New("backendzk: seal does not match claim")
