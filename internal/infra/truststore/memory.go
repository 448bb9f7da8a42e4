// Package truststore holds the in-memory certificate trust cache: the set of
// intermediate-certificate fingerprints the service currently considers
// trusted. The root certificate is tracked separately by the verification
// service and is never stored here.
package truststore

import (
	"sync"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

type Memory struct {
	mu    sync.RWMutex
	certs map[domain.Fingerprint]struct{}
}

func NewMemory(seed ...domain.Fingerprint) *Memory {
	m := &Memory{certs: make(map[domain.Fingerprint]struct{}, len(seed))}
	for _, fp := range seed {
		m.certs[fp] = struct{}{}
	}
	return m
}

func (m *Memory) IsTrusted(fp domain.Fingerprint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.certs[fp]
	return ok
}

// Admit marks the given fingerprints as trusted and reports how many were
// not already present. Admitting a trusted fingerprint is a no-op.
func (m *Memory) Admit(fps []domain.Fingerprint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, fp := range fps {
		if _, ok := m.certs[fp]; ok {
			continue
		}
		m.certs[fp] = struct{}{}
		added++
	}
	return added
}

// Revoke removes exactly one fingerprint. It does not cascade: certificates
// that were admitted beneath the revoked one stay trusted until revoked
// themselves, but any future chain passing through the revoked entry fails
// its trust-prefix check.
func (m *Memory) Revoke(fp domain.Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.certs[fp]; !ok {
		return domain.ErrNotFound
	}
	delete(m.certs, fp)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.certs)
}
