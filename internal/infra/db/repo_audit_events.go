package db

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/usecase"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

// Append links the event to the current chain head and inserts it. The head
// row is locked for the duration of the transaction so concurrent appends
// cannot fork the chain.
func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head AuditEventModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("seq DESC").
			First(&head).Error
		switch {
		case err == nil:
			event.Seq = head.Seq + 1
			event.PrevEventHash = head.EventHash
		case errors.Is(err, gorm.ErrRecordNotFound):
			event.Seq = 0
			event.PrevEventHash = ""
		default:
			return err
		}
		event.EventHash = usecase.ChainEventHash(event)

		model := AuditEventModel{
			ID:            event.ID,
			Seq:           event.Seq,
			EventType:     string(event.EventType),
			PayloadJSON:   payload,
			PayloadHash:   event.PayloadHash,
			ActorType:     string(event.ActorType),
			ActorIDHash:   event.ActorIDHash,
			TargetType:    string(event.TargetType),
			TargetID:      event.TargetID,
			Result:        string(event.Result),
			ErrorCode:     event.ErrorCode,
			PrevEventHash: event.PrevEventHash,
			EventHash:     event.EventHash,
			CreatedAt:     event.CreatedAt,
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return event, nil
}

// List returns events in chain order.
func (r *AuditEventRepository) List(ctx context.Context) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var rows []AuditEventModel
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]domain.AuditEvent, len(rows))
	for i, row := range rows {
		var payload any
		if err := json.Unmarshal(row.PayloadJSON, &payload); err != nil {
			return nil, err
		}
		events[i] = domain.AuditEvent{
			ID:            row.ID,
			Seq:           row.Seq,
			EventType:     domain.AuditEventType(row.EventType),
			Payload:       payload,
			PayloadHash:   row.PayloadHash,
			ActorType:     domain.AuditActorType(row.ActorType),
			ActorIDHash:   row.ActorIDHash,
			TargetType:    domain.AuditTargetType(row.TargetType),
			TargetID:      row.TargetID,
			Result:        domain.AuditResult(row.Result),
			ErrorCode:     row.ErrorCode,
			PrevEventHash: row.PrevEventHash,
			EventHash:     row.EventHash,
			CreatedAt:     row.CreatedAt,
		}
	}
	return events, nil
}
