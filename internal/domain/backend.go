package domain

import "context"

// ZkCoProcessorType identifies which proving system produced a proof.
type ZkCoProcessorType uint8

const (
	ZkTypeUnknown ZkCoProcessorType = iota
	ZkTypeRiscZero
	ZkTypeSuccinct
)

func (t ZkCoProcessorType) String() string {
	switch t {
	case ZkTypeRiscZero:
		return "risc0"
	case ZkTypeSuccinct:
		return "sp1"
	default:
		return "unknown"
	}
}

// ParseZkCoProcessorType maps the wire names used by provers to a backend
// kind.
func ParseZkCoProcessorType(s string) (ZkCoProcessorType, error) {
	switch s {
	case "risc0", "risczero":
		return ZkTypeRiscZero, nil
	case "sp1", "succinct":
		return ZkTypeSuccinct, nil
	default:
		return ZkTypeUnknown, ErrUnknownBackend
	}
}

// ProofChecker is the opaque proof-backend capability: it decides whether a
// proof blob is an authentic execution of the program identified by
// programID over the given public payload. Implementations differ in how
// they bind the payload (RISC Zero receipts commit to a pre-hashed journal
// digest, SP1 proofs commit to the raw public values); callers always pass
// the raw encoded journal and the implementation normalizes.
type ProofChecker interface {
	Verify(ctx context.Context, proof []byte, programID Fingerprint, payload []byte) error
}

// BackendConfig holds the per-backend program identities. VerifierID checks
// single-report proofs, AggregatorID checks batch proofs, and VerifierProofID
// is the circuit identity a batch journal must declare as its aggregation
// input. Exactly one config exists per backend kind; last write wins.
type BackendConfig struct {
	VerifierID      Fingerprint
	VerifierProofID Fingerprint
	AggregatorID    Fingerprint
	Checker         ProofChecker
}
