package backendzk

import (
	"context"
	"errors"
	"testing"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/codec"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

var (
	programID = domain.Fingerprint{0xab, 0xcd}
	payload   = []byte("abi-encoded-journal")
)

func TestRisc0AcceptsOwnSeal(t *testing.T) {
	checker := NewRisc0Checker()
	proof := checker.SealClaim(programID, payload)
	if err := checker.Verify(context.Background(), proof, programID, payload); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestRisc0RejectsWrongProgram(t *testing.T) {
	checker := NewRisc0Checker()
	proof := checker.SealClaim(programID, payload)
	other := domain.Fingerprint{0x99}
	if err := checker.Verify(context.Background(), proof, other, payload); !errors.Is(err, domain.ErrProofRejected) {
		t.Fatalf("got %v, want ErrProofRejected", err)
	}
}

func TestRisc0VerifyDigestAgreesWithVerify(t *testing.T) {
	checker := NewRisc0Checker()
	proof := checker.SealClaim(programID, payload)
	// Callers holding a pre-hashed journal digest must land on the same
	// claim as the raw-payload path.
	if err := checker.VerifyDigest(context.Background(), proof, programID, codec.Digest(payload)); err != nil {
		t.Fatalf("verify digest: %v", err)
	}
}

func TestRisc0RejectsTamperedPayload(t *testing.T) {
	checker := NewRisc0Checker()
	proof := checker.SealClaim(programID, payload)
	if err := checker.Verify(context.Background(), proof, programID, []byte("tampered")); !errors.Is(err, domain.ErrProofRejected) {
		t.Fatalf("got %v, want ErrProofRejected", err)
	}
}

func TestRisc0RejectsTruncatedSeal(t *testing.T) {
	checker := NewRisc0Checker()
	proof := checker.SealClaim(programID, payload)
	if err := checker.Verify(context.Background(), proof[:len(proof)-1], programID, payload); !errors.Is(err, domain.ErrProofRejected) {
		t.Fatalf("got %v, want ErrProofRejected", err)
	}
}

func TestSP1AcceptsOwnSeal(t *testing.T) {
	checker := NewSP1Checker()
	proof := checker.SealPublicValues(programID, payload)
	if err := checker.Verify(context.Background(), proof, programID, payload); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSP1SelectorIsBoundToProgram(t *testing.T) {
	checker := NewSP1Checker()
	proof := checker.SealPublicValues(programID, payload)
	// A program id differing in its first bytes changes the expected
	// selector, so the same seal must fail early.
	other := domain.Fingerprint{0x01, 0x02, 0x03, 0x04}
	if err := checker.Verify(context.Background(), proof, other, payload); !errors.Is(err, domain.ErrProofRejected) {
		t.Fatalf("got %v, want ErrProofRejected", err)
	}
}

func TestSP1RejectsRisc0Seal(t *testing.T) {
	sp1 := NewSP1Checker()
	risc0 := NewRisc0Checker()
	proof := risc0.SealClaim(programID, payload)
	if err := sp1.Verify(context.Background(), proof, programID, payload); !errors.Is(err, domain.ErrProofRejected) {
		t.Fatalf("got %v, want ErrProofRejected", err)
	}
}

func TestCheckerFor(t *testing.T) {
	if _, err := CheckerFor(domain.ZkTypeRiscZero); err != nil {
		t.Fatalf("risc0: %v", err)
	}
	if _, err := CheckerFor(domain.ZkTypeSuccinct); err != nil {
		t.Fatalf("sp1: %v", err)
	}
	if _, err := CheckerFor(domain.ZkTypeUnknown); !errors.Is(err, domain.ErrUnknownBackend) {
		t.Fatalf("unknown: got %v, want ErrUnknownBackend", err)
	}
}
