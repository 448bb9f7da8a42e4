package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

func sampleJournal() domain.ReportJournal {
	return domain.ReportJournal{
		Result: domain.ResultSuccess,
		Certs: domain.CertChain{
			domain.Fingerprint{0x01},
			domain.Fingerprint{0x02},
			domain.Fingerprint{0x03},
		},
		TrustedCertsLen: 2,
		UserData:        []byte("user-data"),
		Nonce:           []byte{0xde, 0xad, 0xbe, 0xef},
		PublicKey:       []byte("pubkey-bytes"),
		PCRs: []domain.PCR{
			{Index: 0, Value: bytes.Repeat([]byte{0xaa}, 48)},
			{Index: 4, Value: bytes.Repeat([]byte{0xbb}, 48)},
		},
		ModuleID:  "i-0fd5e5a8a91c351c9-enc018f0c1e6fd2e3f4",
		Timestamp: 1714000123456,
	}
}

func TestReportRoundTrip(t *testing.T) {
	want := sampleJournal()
	data, err := EncodeReport(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertJournalEqual(t, want, got)
}

func TestReportRoundTripEmptyOptionalFields(t *testing.T) {
	want := domain.ReportJournal{
		Result:          domain.ResultInvalidTimestamp,
		Certs:           domain.CertChain{domain.Fingerprint{0x11}},
		TrustedCertsLen: 1,
		ModuleID:        "i-abc-enc-def",
		Timestamp:       1,
	}
	data, err := EncodeReport(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Result != want.Result || got.ModuleID != want.ModuleID {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if len(got.UserData) != 0 || len(got.PCRs) != 0 {
		t.Fatalf("optional fields not empty after round trip: %+v", got)
	}
}

func TestBatchRoundTrip(t *testing.T) {
	want := domain.BatchJournal{
		VerifierVK: domain.Fingerprint{0xfe},
		Outputs:    []domain.ReportJournal{sampleJournal(), sampleJournal()},
	}
	want.Outputs[1].ModuleID = "i-other-enc"
	want.Outputs[1].Result = domain.ResultIntermediateNotTrusted

	data, err := EncodeBatch(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.VerifierVK != want.VerifierVK {
		t.Fatalf("verifier vk: got %s, want %s", got.VerifierVK.Hex(), want.VerifierVK.Hex())
	}
	if len(got.Outputs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(got.Outputs))
	}
	assertJournalEqual(t, want.Outputs[0], got.Outputs[0])
	assertJournalEqual(t, want.Outputs[1], got.Outputs[1])
}

func TestDecodeMalformedBytes(t *testing.T) {
	for _, data := range [][]byte{nil, {0x01}, bytes.Repeat([]byte{0xff}, 64)} {
		if _, err := DecodeReport(data); !errors.Is(err, domain.ErrMalformedJournal) {
			t.Fatalf("DecodeReport(%d bytes): got %v, want ErrMalformedJournal", len(data), err)
		}
		if _, err := DecodeBatch(data); !errors.Is(err, domain.ErrMalformedJournal) {
			t.Fatalf("DecodeBatch(%d bytes): got %v, want ErrMalformedJournal", len(data), err)
		}
	}
}

func TestDigestIsDeterministic(t *testing.T) {
	data, err := EncodeReport(sampleJournal())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if Digest(data) != Digest(data) {
		t.Fatal("digest must be deterministic")
	}
	if Digest(data) == Digest(append([]byte{0}, data...)) {
		t.Fatal("different payloads must not collide")
	}
}

func assertJournalEqual(t *testing.T, want, got domain.ReportJournal) {
	t.Helper()
	if got.Result != want.Result {
		t.Fatalf("result: got %v, want %v", got.Result, want.Result)
	}
	if len(got.Certs) != len(want.Certs) {
		t.Fatalf("certs: got %d, want %d", len(got.Certs), len(want.Certs))
	}
	for i := range want.Certs {
		if got.Certs[i] != want.Certs[i] {
			t.Fatalf("cert %d: got %s, want %s", i, got.Certs[i].Hex(), want.Certs[i].Hex())
		}
	}
	if got.TrustedCertsLen != want.TrustedCertsLen {
		t.Fatalf("trustedCertsLen: got %d, want %d", got.TrustedCertsLen, want.TrustedCertsLen)
	}
	if !bytes.Equal(got.UserData, want.UserData) || !bytes.Equal(got.Nonce, want.Nonce) || !bytes.Equal(got.PublicKey, want.PublicKey) {
		t.Fatal("byte fields differ after round trip")
	}
	if len(got.PCRs) != len(want.PCRs) {
		t.Fatalf("pcrs: got %d, want %d", len(got.PCRs), len(want.PCRs))
	}
	for i := range want.PCRs {
		if got.PCRs[i].Index != want.PCRs[i].Index || !bytes.Equal(got.PCRs[i].Value, want.PCRs[i].Value) {
			t.Fatalf("pcr %d differs", i)
		}
	}
	if got.ModuleID != want.ModuleID || got.Timestamp != want.Timestamp {
		t.Fatalf("module/timestamp: got %q/%d, want %q/%d", got.ModuleID, got.Timestamp, want.ModuleID, want.Timestamp)
	}
}
