package backendzk

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/codec"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

// risc0Selector is the seal selector for the RISC Zero Groth16 verifier
// route, derived from its verifying-key identity.
var risc0Selector = deriveSelector("risc0-groth16-vk")

func deriveSelector(tag string) [selectorSize]byte {
	sum := sha256.Sum256([]byte(tag))
	var sel [selectorSize]byte
	copy(sel[:], sum[:selectorSize])
	return sel
}

// Risc0Checker verifies RISC Zero receipts. RISC Zero claims commit to the
// pre-hashed sha256 digest of the journal, so the raw payload is digested
// here before the seal check.
type Risc0Checker struct{}

func NewRisc0Checker() *Risc0Checker { return &Risc0Checker{} }

func (c *Risc0Checker) Verify(ctx context.Context, proof []byte, programID domain.Fingerprint, payload []byte) error {
	return c.VerifyDigest(ctx, proof, programID, codec.Digest(payload))
}

// VerifyDigest checks a seal against an already-hashed journal digest.
func (c *Risc0Checker) VerifyDigest(_ context.Context, proof []byte, programID domain.Fingerprint, journalDigest [32]byte) error {
	claim := claimDigest(programID, journalDigest)
	if err := checkSeal(proof, risc0Selector, claim); err != nil {
		return fmt.Errorf("%w: risc0: %v", domain.ErrProofRejected, err)
	}
	return nil
}

// SealClaim builds a seal for a claim. Test and tooling helper standing in
// for the external prover.
func (c *Risc0Checker) SealClaim(programID domain.Fingerprint, payload []byte) []byte {
	return buildSeal(risc0Selector, claimDigest(programID, codec.Digest(payload)))
}
