// Package usecase implements the stateful verification engine: the trust
// cache and backend configuration it owns, the admission rules for
// zero-knowledge attestation proofs, and the administrative surface that
// mutates trust state.
package usecase

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

// MaxPrefixQueryChainLen bounds how many certificates a prefix-length query
// may carry per chain, mirroring the on-chain query limit.
const MaxPrefixQueryChainLen = 8

// DefaultMaxClockDrift bounds how far in the past a report's observation
// time may lie.
const DefaultMaxClockDrift = time.Hour

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// TrustCache is the certificate trust cache owned by the service.
type TrustCache interface {
	IsTrusted(fp domain.Fingerprint) bool
	Admit(fps []domain.Fingerprint) int
	Revoke(fp domain.Fingerprint) error
}

// StateRepository persists trust state write-through. A nil repository runs
// the service purely in memory.
type StateRepository interface {
	SaveRootCert(ctx context.Context, fp domain.Fingerprint) error
	SaveBackendConfig(ctx context.Context, kind domain.ZkCoProcessorType, cfg domain.BackendConfig) error
	AdmitCerts(ctx context.Context, fps []domain.Fingerprint) error
	DeleteCert(ctx context.Context, fp domain.Fingerprint) error
}

// Authorizer refines admin authorization after the API-key check, typically
// backed by an OPA policy bundle.
type Authorizer interface {
	Authorize(ctx context.Context, action, target, actorIDHash string) (bool, error)
}

// Metrics receives verification outcome counters. Implementations must be
// safe for concurrent use.
type Metrics interface {
	ObserveVerification(backend, result string)
	ObserveBatch(backend string, size int)
	AddAdmitted(n int)
	IncRevoked()
}

type noopMetrics struct{}

func (noopMetrics) ObserveVerification(string, string) {}
func (noopMetrics) ObserveBatch(string, int)           {}
func (noopMetrics) AddAdmitted(int)                    {}
func (noopMetrics) IncRevoked()                        {}

// Service is the verification engine. All mutating operations are applied
// under one mutex, in total order; each either completes in full or, on a
// hard error, leaves no observable state change.
type Service struct {
	mu sync.Mutex

	clock        Clock
	maxDrift     time.Duration
	adminKeyHash string

	cache   TrustCache
	repo    StateRepository
	authz   Authorizer
	audit   *AuditEmitter
	metrics Metrics
	log     *logrus.Logger

	root     domain.Fingerprint
	rootSet  bool
	backends map[domain.ZkCoProcessorType]domain.BackendConfig
}

// ServiceDeps carries the collaborators of a Service. Cache is required;
// everything else is optional.
type ServiceDeps struct {
	Clock        Clock
	MaxDrift     time.Duration
	AdminKeyHash string
	Cache        TrustCache
	Repo         StateRepository
	Authorizer   Authorizer
	Audit        *AuditEmitter
	Metrics      Metrics
	Logger       *logrus.Logger
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{
		clock:        deps.Clock,
		maxDrift:     deps.MaxDrift,
		adminKeyHash: deps.AdminKeyHash,
		cache:        deps.Cache,
		repo:         deps.Repo,
		authz:        deps.Authorizer,
		audit:        deps.Audit,
		metrics:      deps.Metrics,
		log:          deps.Logger,
		backends:     make(map[domain.ZkCoProcessorType]domain.BackendConfig),
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.maxDrift <= 0 {
		s.maxDrift = DefaultMaxClockDrift
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// SeedRoot installs the root certificate without the admin path, for state
// restored from persistence at startup.
func (s *Service) SeedRoot(fp domain.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = fp
	s.rootSet = true
}

// SeedBackend installs a backend config without the admin path.
func (s *Service) SeedBackend(kind domain.ZkCoProcessorType, cfg domain.BackendConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[kind] = cfg
}

// RootCert returns the configured root certificate fingerprint.
func (s *Service) RootCert() (domain.Fingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rootSet {
		return domain.Fingerprint{}, domain.ErrRootUnset
	}
	return s.root, nil
}

func (s *Service) authorize(ctx context.Context, apiKey, action, target string) (string, error) {
	actorHash := hashString(apiKey)
	if s.adminKeyHash == "" || subtle.ConstantTimeCompare([]byte(actorHash), []byte(s.adminKeyHash)) != 1 {
		return actorHash, domain.ErrUnauthorized
	}
	if s.authz != nil {
		allowed, err := s.authz.Authorize(ctx, action, target, actorHash)
		if err != nil {
			return actorHash, err
		}
		if !allowed {
			return actorHash, domain.ErrForbidden
		}
	}
	return actorHash, nil
}

// SetRootCertificate replaces the root certificate fingerprint. The value is
// opaque storage; no cryptographic validation happens here.
func (s *Service) SetRootCertificate(ctx context.Context, apiKey string, fp domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actorHash, err := s.authorize(ctx, apiKey, "set_root_cert", fp.Hex())
	if err != nil {
		return err
	}
	if s.repo != nil {
		if err := s.repo.SaveRootCert(ctx, fp); err != nil {
			return err
		}
	}
	s.root = fp
	s.rootSet = true
	s.emitAudit(ctx, domain.AuditEvent{
		EventType:   domain.AuditEventRootCertSet,
		ActorType:   domain.AuditActorAdminAPIKey,
		ActorIDHash: actorHash,
		TargetType:  domain.AuditTargetRootCert,
		TargetID:    fp.Hex(),
		Payload:     map[string]any{"fingerprint": fp.Hex()},
		Result:      domain.AuditResultSuccess,
	})
	s.log.WithField("root_cert", fp.Hex()).Info("root certificate updated")
	return nil
}

// SetBackendConfig installs the program identities and proof checker for one
// backend kind. Last write wins.
func (s *Service) SetBackendConfig(ctx context.Context, apiKey string, kind domain.ZkCoProcessorType, cfg domain.BackendConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actorHash, err := s.authorize(ctx, apiKey, "set_backend_config", kind.String())
	if err != nil {
		return err
	}
	if kind != domain.ZkTypeRiscZero && kind != domain.ZkTypeSuccinct {
		return domain.ErrUnknownBackend
	}
	if s.repo != nil {
		if err := s.repo.SaveBackendConfig(ctx, kind, cfg); err != nil {
			return err
		}
	}
	s.backends[kind] = cfg
	s.emitAudit(ctx, domain.AuditEvent{
		EventType:   domain.AuditEventBackendConfigSet,
		ActorType:   domain.AuditActorAdminAPIKey,
		ActorIDHash: actorHash,
		TargetType:  domain.AuditTargetBackend,
		TargetID:    kind.String(),
		Payload: map[string]any{
			"verifier_id":       cfg.VerifierID.Hex(),
			"verifier_proof_id": cfg.VerifierProofID.Hex(),
			"aggregator_id":     cfg.AggregatorID.Hex(),
		},
		Result: domain.AuditResultSuccess,
	})
	s.log.WithFields(logrus.Fields{
		"backend":     kind.String(),
		"verifier_id": cfg.VerifierID.Hex(),
	}).Info("backend config updated")
	return nil
}

// AdmitCertificates seeds fingerprints into the trust cache directly. The
// root certificate is never cached and is skipped if present.
func (s *Service) AdmitCertificates(ctx context.Context, apiKey string, fps []domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actorHash, err := s.authorize(ctx, apiKey, "admit_certs", "")
	if err != nil {
		return err
	}
	st := newAdmissionStage(s)
	st.admit(fps)
	return s.commit(ctx, st, domain.AuditActorAdminAPIKey, actorHash)
}

// RevokeCertificate removes exactly one fingerprint from the trust cache.
// Revoking an absent fingerprint fails with domain.ErrNotFound; revocation
// does not cascade to certificates chained beneath the revoked one.
func (s *Service) RevokeCertificate(ctx context.Context, apiKey string, fp domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actorHash, err := s.authorize(ctx, apiKey, "revoke_cert", fp.Hex())
	if err != nil {
		return err
	}
	if !s.cache.IsTrusted(fp) {
		return domain.ErrNotFound
	}
	if s.repo != nil {
		if err := s.repo.DeleteCert(ctx, fp); err != nil {
			return err
		}
	}
	if err := s.cache.Revoke(fp); err != nil {
		return err
	}
	s.metrics.IncRevoked()
	s.emitAudit(ctx, domain.AuditEvent{
		EventType:   domain.AuditEventCertRevoked,
		ActorType:   domain.AuditActorAdminAPIKey,
		ActorIDHash: actorHash,
		TargetType:  domain.AuditTargetCert,
		TargetID:    fp.Hex(),
		Payload:     map[string]any{"fingerprint": fp.Hex()},
		Result:      domain.AuditResultSuccess,
	})
	s.log.WithField("fingerprint", fp.Hex()).Info("certificate revoked")
	return nil
}

// IsTrusted reports whether a fingerprint is currently cached as trusted.
func (s *Service) IsTrusted(fp domain.Fingerprint) bool {
	return s.cache.IsTrusted(fp)
}

func (s *Service) emitAudit(ctx context.Context, event domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Emit(ctx, event); err != nil {
		s.log.WithError(err).Warn("audit emit failed")
	}
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashAdminKey derives the stored form of an admin API key.
func HashAdminKey(key string) string { return hashString(key) }
