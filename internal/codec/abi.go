// Package codec implements the wire encoding of verifier journals. Journals
// are Solidity-ABI encoded byte strings shared with the on-chain verifier
// surface, so the layout here must stay in lockstep with the circuit
// programs that commit them.
package codec

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

var reportComponents = []abi.ArgumentMarshaling{
	{Name: "result", Type: "uint8"},
	{Name: "certs", Type: "bytes32[]"},
	{Name: "trustedCertsLen", Type: "uint64"},
	{Name: "userData", Type: "bytes"},
	{Name: "nonce", Type: "bytes"},
	{Name: "publicKey", Type: "bytes"},
	{Name: "pcrs", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
		{Name: "index", Type: "uint64"},
		{Name: "value", Type: "bytes"},
	}},
	{Name: "moduleId", Type: "string"},
	{Name: "timestamp", Type: "uint64"},
}

var (
	reportArgs = abi.Arguments{{Type: mustNewType("tuple", reportComponents)}}
	batchArgs  = abi.Arguments{{Type: mustNewType("tuple", []abi.ArgumentMarshaling{
		{Name: "verifierVk", Type: "bytes32"},
		{Name: "outputs", Type: "tuple[]", Components: reportComponents},
	})}}
)

func mustNewType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

type abiPCR struct {
	Index uint64
	Value []byte
}

type abiReport struct {
	Result          uint8
	Certs           [][32]byte
	TrustedCertsLen uint64
	UserData        []byte
	Nonce           []byte
	PublicKey       []byte
	Pcrs            []abiPCR
	ModuleId        string
	Timestamp       uint64
}

type abiBatch struct {
	VerifierVk [32]byte
	Outputs    []abiReport
}

func toABIReport(j domain.ReportJournal) abiReport {
	certs := make([][32]byte, len(j.Certs))
	for i, c := range j.Certs {
		certs[i] = c
	}
	pcrs := make([]abiPCR, len(j.PCRs))
	for i, p := range j.PCRs {
		pcrs[i] = abiPCR{Index: p.Index, Value: p.Value}
	}
	return abiReport{
		Result:          uint8(j.Result),
		Certs:           certs,
		TrustedCertsLen: j.TrustedCertsLen,
		UserData:        j.UserData,
		Nonce:           j.Nonce,
		PublicKey:       j.PublicKey,
		Pcrs:            pcrs,
		ModuleId:        j.ModuleID,
		Timestamp:       j.Timestamp,
	}
}

func fromABIReport(r abiReport) domain.ReportJournal {
	certs := make(domain.CertChain, len(r.Certs))
	for i, c := range r.Certs {
		certs[i] = common.Hash(c)
	}
	pcrs := make([]domain.PCR, len(r.Pcrs))
	for i, p := range r.Pcrs {
		pcrs[i] = domain.PCR{Index: p.Index, Value: p.Value}
	}
	return domain.ReportJournal{
		Result:          domain.VerificationResult(r.Result),
		Certs:           certs,
		TrustedCertsLen: r.TrustedCertsLen,
		UserData:        r.UserData,
		Nonce:           r.Nonce,
		PublicKey:       r.PublicKey,
		PCRs:            pcrs,
		ModuleID:        r.ModuleId,
		Timestamp:       r.Timestamp,
	}
}

// EncodeReport ABI-encodes a single-report journal.
func EncodeReport(j domain.ReportJournal) ([]byte, error) {
	data, err := reportArgs.Pack(toABIReport(j))
	if err != nil {
		return nil, fmt.Errorf("encode report journal: %w", err)
	}
	return data, nil
}

// DecodeReport decodes ABI-encoded single-report journal bytes. Malformed
// input yields domain.ErrMalformedJournal.
func DecodeReport(data []byte) (domain.ReportJournal, error) {
	values, err := reportArgs.Unpack(data)
	if err != nil {
		return domain.ReportJournal{}, fmt.Errorf("%w: %v", domain.ErrMalformedJournal, err)
	}
	// Unpack yields the tuple as an anonymous struct; ConvertType maps it
	// onto the named mirror field by field.
	out := *abi.ConvertType(values[0], new(abiReport)).(*abiReport)
	return fromABIReport(out), nil
}

// EncodeBatch ABI-encodes a batch journal.
func EncodeBatch(b domain.BatchJournal) ([]byte, error) {
	outputs := make([]abiReport, len(b.Outputs))
	for i, j := range b.Outputs {
		outputs[i] = toABIReport(j)
	}
	data, err := batchArgs.Pack(abiBatch{VerifierVk: b.VerifierVK, Outputs: outputs})
	if err != nil {
		return nil, fmt.Errorf("encode batch journal: %w", err)
	}
	return data, nil
}

// DecodeBatch decodes ABI-encoded batch journal bytes.
func DecodeBatch(data []byte) (domain.BatchJournal, error) {
	values, err := batchArgs.Unpack(data)
	if err != nil {
		return domain.BatchJournal{}, fmt.Errorf("%w: %v", domain.ErrMalformedJournal, err)
	}
	out := *abi.ConvertType(values[0], new(abiBatch)).(*abiBatch)
	batch := domain.BatchJournal{
		VerifierVK: common.Hash(out.VerifierVk),
		Outputs:    make([]domain.ReportJournal, len(out.Outputs)),
	}
	for i, r := range out.Outputs {
		batch.Outputs[i] = fromABIReport(r)
	}
	return batch, nil
}

// Digest is the payload digest proof backends bind journals by: sha256 over
// the ABI encoding.
func Digest(data []byte) domain.Fingerprint {
	return sha256.Sum256(data)
}
