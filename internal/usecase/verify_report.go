package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/codec"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

// admissionStage buffers intended cache admissions until every check of the
// surrounding call has passed. Lookups see the buffered entries, so within a
// batch an earlier report's admission can satisfy a later report's
// trust-prefix check before anything is committed.
type admissionStage struct {
	svc     *Service
	pending map[domain.Fingerprint]struct{}
	order   []domain.Fingerprint
}

func newAdmissionStage(s *Service) *admissionStage {
	return &admissionStage{svc: s, pending: make(map[domain.Fingerprint]struct{})}
}

func (st *admissionStage) trusted(fp domain.Fingerprint) bool {
	if _, ok := st.pending[fp]; ok {
		return true
	}
	return st.svc.cache.IsTrusted(fp)
}

func (st *admissionStage) admit(fps []domain.Fingerprint) {
	for _, fp := range fps {
		if st.svc.rootSet && fp == st.svc.root {
			// The root is checked against RootCert directly and is
			// never an entry of the trust cache.
			continue
		}
		if _, ok := st.pending[fp]; ok {
			continue
		}
		if st.svc.cache.IsTrusted(fp) {
			continue
		}
		st.pending[fp] = struct{}{}
		st.order = append(st.order, fp)
	}
}

// commit applies a stage in one step: persistence first, then the in-memory
// cache, so a storage failure aborts the call with no observable effect.
func (s *Service) commit(ctx context.Context, st *admissionStage, actor domain.AuditActorType, actorHash string) error {
	if len(st.order) == 0 {
		return nil
	}
	if s.repo != nil {
		if err := s.repo.AdmitCerts(ctx, st.order); err != nil {
			return err
		}
	}
	s.cache.Admit(st.order)
	s.metrics.AddAdmitted(len(st.order))
	hexes := make([]string, len(st.order))
	for i, fp := range st.order {
		hexes[i] = fp.Hex()
	}
	s.emitAudit(ctx, domain.AuditEvent{
		EventType:   domain.AuditEventCertsAdmitted,
		ActorType:   actor,
		ActorIDHash: actorHash,
		TargetType:  domain.AuditTargetCert,
		TargetID:    hexes[0],
		Payload:     map[string]any{"fingerprints": hexes},
		Result:      domain.AuditResultSuccess,
	})
	s.log.WithField("admitted", len(st.order)).Info("trust cache grown")
	return nil
}

// chainResult walks the declared trusted prefix of a chain. Index 0 must be
// the root certificate; indices 1..n-1 must already be trusted. Entries
// beyond the prefix were freshly proven inside the circuit and are admitted
// by the caller only after every other check passes.
func (s *Service) chainResult(chain domain.CertChain, n uint64, st *admissionStage) domain.VerificationResult {
	if n == 0 {
		return domain.ResultRootNotTrusted
	}
	for i := uint64(0); i < n; i++ {
		if i >= uint64(len(chain)) {
			if i == 0 {
				return domain.ResultRootNotTrusted
			}
			return domain.ResultIntermediateNotTrusted
		}
		if i == 0 {
			if !s.rootSet || chain[0] != s.root {
				return domain.ResultRootNotTrusted
			}
			continue
		}
		if !st.trusted(chain[i]) {
			return domain.ResultIntermediateNotTrusted
		}
	}
	return domain.ResultSuccess
}

// timestampOK bounds-checks a claimed observation time (ms since epoch)
// against the service clock and the configured drift window.
func (s *Service) timestampOK(tsMillis uint64) bool {
	now := s.clock.Now().UnixMilli()
	if now < 0 {
		return false
	}
	if tsMillis > uint64(now) {
		return false
	}
	return uint64(now)-tsMillis <= uint64(s.maxDrift.Milliseconds())
}

// validateReport applies the single-report admission rules to a decoded
// journal and stages any new suffix certificates. The backend has already
// vouched that the journal bytes are authentic; this decides whether their
// claims are admissible.
func (s *Service) validateReport(j domain.ReportJournal, st *admissionStage) domain.ReportJournal {
	if j.Result != domain.ResultSuccess {
		// Pre-failed journals pass through untouched; no cache work.
		return j
	}
	if res := s.chainResult(j.Certs, j.TrustedCertsLen, st); res != domain.ResultSuccess {
		j.Result = res
		return j
	}
	if !s.timestampOK(j.Timestamp) {
		j.Result = domain.ResultInvalidTimestamp
		return j
	}
	st.admit(j.Certs[j.TrustedCertsLen:])
	j.Result = domain.ResultSuccess
	return j
}

func (s *Service) backendConfig(kind domain.ZkCoProcessorType) (domain.BackendConfig, error) {
	cfg, ok := s.backends[kind]
	if !ok {
		return domain.BackendConfig{}, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, kind)
	}
	return cfg, nil
}

// Verify admits one attestation report. The proof must bind the journal
// bytes to the configured single-report verifier program; the journal's
// trust-chain and timestamp claims are then validated and, only if every
// check passes, the chain's untrusted suffix is admitted into the cache.
func (s *Service) Verify(ctx context.Context, output []byte, kind domain.ZkCoProcessorType, proof []byte) (domain.ReportJournal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.backendConfig(kind)
	if err != nil {
		return domain.ReportJournal{}, err
	}
	if err := cfg.Checker.Verify(ctx, proof, cfg.VerifierID, output); err != nil {
		return domain.ReportJournal{}, err
	}
	journal, err := codec.DecodeReport(output)
	if err != nil {
		return domain.ReportJournal{}, err
	}

	st := newAdmissionStage(s)
	annotated := s.validateReport(journal, st)
	if annotated.Result == domain.ResultSuccess {
		if err := s.commit(ctx, st, domain.AuditActorService, ""); err != nil {
			return domain.ReportJournal{}, err
		}
	}
	s.metrics.ObserveVerification(kind.String(), annotated.Result.String())
	s.log.WithFields(logrus.Fields{
		"backend":   kind.String(),
		"module_id": annotated.ModuleID,
		"result":    annotated.Result.String(),
		"chain_len": len(annotated.Certs),
	}).Info("report verified")
	return annotated, nil
}

// CheckTrustedPrefixLengths reports, per candidate chain, how many leading
// entries are already trusted: the root plus the run of cached
// intermediates. Callers use it to size the trusted prefix before proving.
func (s *Service) CheckTrustedPrefixLengths(chains []domain.CertChain) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lengths := make([]int, len(chains))
	for i, chain := range chains {
		if len(chain) > MaxPrefixQueryChainLen {
			return nil, fmt.Errorf("%w: %d certificates, maximum is %d", domain.ErrChainTooLong, len(chain), MaxPrefixQueryChainLen)
		}
		if len(chain) == 0 {
			lengths[i] = 0
			continue
		}
		if !s.rootSet || chain[0] != s.root {
			return nil, domain.ErrRootMismatch
		}
		n := 1
		for _, fp := range chain[1:] {
			if !s.cache.IsTrusted(fp) {
				break
			}
			n++
		}
		lengths[i] = n
	}
	return lengths, nil
}
