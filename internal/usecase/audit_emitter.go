package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

// AuditEventRepository appends events to the audit trail. Implementations
// assign Seq, PrevEventHash and EventHash so the trail forms a hash chain.
type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
}

type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{Repo: repo, Clock: clock}
}

func (e *AuditEmitter) Emit(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.EventType == "" || event.TargetType == "" || event.Result == "" || event.ActorType == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	if event.PayloadHash == "" {
		hash, err := HashEventPayload(event.Payload)
		if err != nil {
			return domain.AuditEvent{}, err
		}
		event.PayloadHash = hash
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) now() time.Time {
	if e.Clock != nil {
		return e.Clock.Now()
	}
	return time.Now()
}

// HashEventPayload canonicalizes an event payload to JSON and hashes it.
func HashEventPayload(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal audit payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ChainEventHash derives the event hash linking an audit event to its
// predecessor. Seq, PayloadHash, PrevEventHash and CreatedAt must be final
// before calling.
func ChainEventHash(event domain.AuditEvent) string {
	parts := []string{
		domain.AuditChainVersion,
		strconv.FormatInt(event.Seq, 10),
		string(event.EventType),
		event.PayloadHash,
		string(event.ActorType),
		event.ActorIDHash,
		string(event.TargetType),
		event.TargetID,
		string(event.Result),
		event.ErrorCode,
		event.PrevEventHash,
		strconv.FormatInt(event.CreatedAt.UnixNano(), 10),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// VerifyAuditChain walks a sequence of audit events in order and reports the
// first broken link, if any.
func VerifyAuditChain(events []domain.AuditEvent) error {
	prev := ""
	for i, event := range events {
		if event.PrevEventHash != prev {
			return fmt.Errorf("audit chain broken at seq %d: prev hash mismatch", event.Seq)
		}
		if got := ChainEventHash(event); got != event.EventHash {
			return fmt.Errorf("audit chain broken at seq %d: event hash mismatch", event.Seq)
		}
		if i > 0 && events[i-1].Seq+1 != event.Seq {
			return fmt.Errorf("audit chain broken at seq %d: sequence gap", event.Seq)
		}
		prev = event.EventHash
	}
	return nil
}
