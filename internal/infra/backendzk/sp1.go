package backendzk

import (
	"context"
	"fmt"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/codec"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

// SP1Checker verifies Succinct SP1 proofs. SP1 proofs carry the first four
// bytes of the program's verifying-key hash as their selector and commit to
// the raw public values, which are hashed internally here rather than by the
// caller.
type SP1Checker struct{}

func NewSP1Checker() *SP1Checker { return &SP1Checker{} }

func (c *SP1Checker) Verify(_ context.Context, proof []byte, programID domain.Fingerprint, payload []byte) error {
	var selector [selectorSize]byte
	copy(selector[:], programID[:selectorSize])

	claim := claimDigest(programID, codec.Digest(payload))
	if err := checkSeal(proof, selector, claim); err != nil {
		return fmt.Errorf("%w: sp1: %v", domain.ErrProofRejected, err)
	}
	return nil
}

// SealPublicValues builds a seal over raw public values. Test and tooling
// helper standing in for the external prover.
func (c *SP1Checker) SealPublicValues(programID domain.Fingerprint, payload []byte) []byte {
	var selector [selectorSize]byte
	copy(selector[:], programID[:selectorSize])
	return buildSeal(selector, claimDigest(programID, codec.Digest(payload)))
}

// CheckerFor returns the proof checker for a backend kind.
func CheckerFor(kind domain.ZkCoProcessorType) (domain.ProofChecker, error) {
	switch kind {
	case domain.ZkTypeRiscZero:
		return NewRisc0Checker(), nil
	case domain.ZkTypeSuccinct:
		return NewSP1Checker(), nil
	default:
		return nil, domain.ErrUnknownBackend
	}
}
