// Package logmem is the in-memory audit event log: a hash-chained,
// append-only trail used when no database is configured and by tests.
package logmem

import (
	"context"
	"sync"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/usecase"
)

type Log struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

func New() *Log {
	return &Log{}
}

// Append assigns the next sequence number, links the event to its
// predecessor and stores it.
func (l *Log) Append(_ context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Seq = int64(len(l.events))
	if event.Seq > 0 {
		event.PrevEventHash = l.events[event.Seq-1].EventHash
	}
	event.EventHash = usecase.ChainEventHash(event)
	l.events = append(l.events, event)
	return event, nil
}

// Events returns a copy of the trail in append order.
func (l *Log) Events() []domain.AuditEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}
