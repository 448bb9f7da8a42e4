package domain

// VerificationResult is the per-report outcome of trust-chain and timestamp
// validation. It is set by the verification engine, never by the proof
// backend: the backend only guarantees that the decoded journal bytes are an
// authentic output of the claimed program.
type VerificationResult uint8

const (
	ResultSuccess VerificationResult = iota
	ResultRootNotTrusted
	ResultIntermediateNotTrusted
	ResultInvalidTimestamp
)

func (r VerificationResult) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultRootNotTrusted:
		return "root_not_trusted"
	case ResultIntermediateNotTrusted:
		return "intermediate_not_trusted"
	case ResultInvalidTimestamp:
		return "invalid_timestamp"
	default:
		return "unknown"
	}
}

// PCR is one platform measurement register from the attestation document.
// Zero-valued registers are omitted from the journal.
type PCR struct {
	Index uint64
	Value []byte
}

// ReportJournal is the decoded public output of the single-report verifier
// program for one attestation document. Certs is ordered root first;
// TrustedCertsLen is the prefix the prover declared as already trusted, so
// only Certs[TrustedCertsLen:] had their signatures checked inside the
// circuit.
type ReportJournal struct {
	Result          VerificationResult
	Certs           CertChain
	TrustedCertsLen uint64
	UserData        []byte
	Nonce           []byte
	PublicKey       []byte
	PCRs            []PCR
	ModuleID        string
	// Timestamp is the attestation document's observation time in
	// milliseconds since the Unix epoch.
	Timestamp uint64
}

// BatchJournal is the decoded public output of the aggregator program.
// VerifierVK identifies the per-report verifier circuit the aggregation was
// built over; it must match the configured expectation before any entry in
// Outputs may be trusted.
type BatchJournal struct {
	VerifierVK Fingerprint
	Outputs    []ReportJournal
}
