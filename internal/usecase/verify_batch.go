package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/codec"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

// BatchVerify admits an aggregated proof covering many reports. The proof
// must bind the batch journal to the configured aggregator program, and the
// journal must declare the expected per-report verifier circuit; a mismatch
// is a hard error. Each report is then validated independently and in order,
// and a report admitted earlier in the batch can satisfy a later report's
// trust-prefix check. Per-report failures are soft and do not abort the rest
// of the batch.
func (s *Service) BatchVerify(ctx context.Context, output []byte, kind domain.ZkCoProcessorType, proof []byte) ([]domain.ReportJournal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.backendConfig(kind)
	if err != nil {
		return nil, err
	}
	if err := cfg.Checker.Verify(ctx, proof, cfg.AggregatorID, output); err != nil {
		return nil, err
	}
	batch, err := codec.DecodeBatch(output)
	if err != nil {
		return nil, err
	}
	if batch.VerifierVK != cfg.VerifierProofID {
		return nil, fmt.Errorf("%w: declared %s, expected %s",
			domain.ErrVerifierVKMismatch, batch.VerifierVK.Hex(), cfg.VerifierProofID.Hex())
	}

	st := newAdmissionStage(s)
	annotated := make([]domain.ReportJournal, len(batch.Outputs))
	for i, journal := range batch.Outputs {
		annotated[i] = s.validateReport(journal, st)
	}
	if err := s.commit(ctx, st, domain.AuditActorService, ""); err != nil {
		return nil, err
	}

	s.metrics.ObserveBatch(kind.String(), len(annotated))
	for _, j := range annotated {
		s.metrics.ObserveVerification(kind.String(), j.Result.String())
	}
	s.log.WithFields(logrus.Fields{
		"backend": kind.String(),
		"size":    len(annotated),
	}).Info("batch verified")
	return annotated, nil
}
