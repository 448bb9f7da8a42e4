package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

func testEvent() domain.AuditEvent {
	return domain.AuditEvent{
		EventType:   domain.AuditEventCertRevoked,
		ActorType:   domain.AuditActorAdminAPIKey,
		ActorIDHash: hashString("actor"),
		TargetType:  domain.AuditTargetCert,
		TargetID:    "0x0a",
		Payload:     map[string]any{"fingerprint": "0x0a"},
		Result:      domain.AuditResultSuccess,
	}
}

func TestEmitFillsDerivedFields(t *testing.T) {
	repo := &capturingAuditRepo{}
	emitter := NewAuditEmitter(repo, staticClock{testNow})

	stored, err := emitter.Emit(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("emit must assign an event id")
	}
	if stored.PayloadHash == "" {
		t.Fatal("emit must hash the payload")
	}
	if !stored.CreatedAt.Equal(testNow) {
		t.Fatalf("created at %v, want clock time %v", stored.CreatedAt, testNow)
	}
	if stored.CreatedAt.Location() != time.UTC {
		t.Fatal("created at must be UTC")
	}
	if stored.EventHash != ChainEventHash(stored) {
		t.Fatal("stored event hash must match the chain hash")
	}
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	emitter := NewAuditEmitter(&capturingAuditRepo{}, staticClock{testNow})
	event := testEvent()
	event.EventType = ""
	if _, err := emitter.Emit(context.Background(), event); err == nil {
		t.Fatal("expected error for missing event type")
	}
}

func TestHashEventPayloadIsDeterministic(t *testing.T) {
	a, err := HashEventPayload(map[string]any{"k": "v", "n": 1})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := HashEventPayload(map[string]any{"n": 1, "k": "v"})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	// encoding/json sorts map keys, so insertion order must not matter.
	if a != b {
		t.Fatal("payload hash must not depend on map insertion order")
	}
}

func TestVerifyAuditChainDetectsTampering(t *testing.T) {
	repo := &capturingAuditRepo{}
	emitter := NewAuditEmitter(repo, staticClock{testNow})
	for i := 0; i < 3; i++ {
		if _, err := emitter.Emit(context.Background(), testEvent()); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}
	if err := VerifyAuditChain(repo.events); err != nil {
		t.Fatalf("intact chain: %v", err)
	}

	tampered := make([]domain.AuditEvent, len(repo.events))
	copy(tampered, repo.events)
	tampered[1].TargetID = "0x0b"
	if err := VerifyAuditChain(tampered); err == nil {
		t.Fatal("expected broken chain after tampering")
	}

	gap := []domain.AuditEvent{repo.events[0], repo.events[2]}
	if err := VerifyAuditChain(gap); err == nil {
		t.Fatal("expected broken chain for a dropped event")
	}
}
