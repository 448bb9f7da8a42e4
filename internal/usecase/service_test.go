package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/codec"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/backendzk"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/truststore"
)

const adminKey = "admin-secret"

var (
	testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	testRoot        = domain.Fingerprint{0xf0}
	verifierID      = domain.Fingerprint{0x51}
	verifierProofID = domain.Fingerprint{0x52}
	aggregatorID    = domain.Fingerprint{0x53}

	certA = domain.Fingerprint{0x0a}
	certB = domain.Fingerprint{0x0b}
	certC = domain.Fingerprint{0x0c}
)

type staticClock struct {
	t time.Time
}

func (c staticClock) Now() time.Time { return c.t }

type staticAuthorizer struct {
	allowed bool
	err     error
}

func (a *staticAuthorizer) Authorize(context.Context, string, string, string) (bool, error) {
	return a.allowed, a.err
}

type capturingAuditRepo struct {
	events []domain.AuditEvent
}

func (r *capturingAuditRepo) Append(_ context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	event.Seq = int64(len(r.events))
	if event.Seq > 0 {
		event.PrevEventHash = r.events[event.Seq-1].EventHash
	}
	event.EventHash = ChainEventHash(event)
	r.events = append(r.events, event)
	return event, nil
}

type failingRepo struct{}

func (failingRepo) SaveRootCert(context.Context, domain.Fingerprint) error {
	return errors.New("storage down")
}

func (failingRepo) SaveBackendConfig(context.Context, domain.ZkCoProcessorType, domain.BackendConfig) error {
	return errors.New("storage down")
}

func (failingRepo) AdmitCerts(context.Context, []domain.Fingerprint) error {
	return errors.New("storage down")
}

func (failingRepo) DeleteCert(context.Context, domain.Fingerprint) error {
	return errors.New("storage down")
}

type fixture struct {
	svc   *Service
	cache *truststore.Memory
	risc0 *backendzk.Risc0Checker
	sp1   *backendzk.SP1Checker
	audit *capturingAuditRepo
}

type fixtureOption func(*ServiceDeps)

func withRepo(repo StateRepository) fixtureOption {
	return func(d *ServiceDeps) { d.Repo = repo }
}

func withAuthorizer(a Authorizer) fixtureOption {
	return func(d *ServiceDeps) { d.Authorizer = a }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cache := truststore.NewMemory()
	audit := &capturingAuditRepo{}
	deps := ServiceDeps{
		Clock:        staticClock{testNow},
		MaxDrift:     time.Hour,
		AdminKeyHash: HashAdminKey(adminKey),
		Cache:        cache,
		Audit:        NewAuditEmitter(audit, staticClock{testNow}),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f := &fixture{
		svc:   NewService(deps),
		cache: cache,
		risc0: backendzk.NewRisc0Checker(),
		sp1:   backendzk.NewSP1Checker(),
		audit: audit,
	}
	f.svc.SeedRoot(testRoot)
	f.svc.SeedBackend(domain.ZkTypeRiscZero, domain.BackendConfig{
		VerifierID:      verifierID,
		VerifierProofID: verifierProofID,
		AggregatorID:    aggregatorID,
		Checker:         f.risc0,
	})
	return f
}

// validTimestamp is one second inside the drift window.
func validTimestamp() uint64 {
	return uint64(testNow.UnixMilli()) - 1000
}

func successJournal(chain domain.CertChain, trustedLen uint64) domain.ReportJournal {
	return domain.ReportJournal{
		Result:          domain.ResultSuccess,
		Certs:           chain,
		TrustedCertsLen: trustedLen,
		ModuleID:        "i-0fd5e5a8a91c351c9-enc018f0c1e",
		Timestamp:       validTimestamp(),
	}
}

// sealedReport encodes a journal and seals it for the single-report
// verifier program.
func (f *fixture) sealedReport(t *testing.T, j domain.ReportJournal) (output, proof []byte) {
	t.Helper()
	output, err := codec.EncodeReport(j)
	if err != nil {
		t.Fatalf("encode report: %v", err)
	}
	return output, f.risc0.SealClaim(verifierID, output)
}

// sealedBatch encodes a batch journal and seals it for the aggregator
// program.
func (f *fixture) sealedBatch(t *testing.T, b domain.BatchJournal) (output, proof []byte) {
	t.Helper()
	output, err := codec.EncodeBatch(b)
	if err != nil {
		t.Fatalf("encode batch: %v", err)
	}
	return output, f.risc0.SealClaim(aggregatorID, output)
}

func TestSetRootCertificateRequiresAdminKey(t *testing.T) {
	f := newFixture(t)
	err := f.svc.SetRootCertificate(context.Background(), "wrong-key", domain.Fingerprint{0x01})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if root, _ := f.svc.RootCert(); root != testRoot {
		t.Fatal("root must not change on unauthorized call")
	}
}

func TestSetRootCertificateReplacesRoot(t *testing.T) {
	f := newFixture(t)
	next := domain.Fingerprint{0xf1}
	if err := f.svc.SetRootCertificate(context.Background(), adminKey, next); err != nil {
		t.Fatalf("set root: %v", err)
	}
	root, err := f.svc.RootCert()
	if err != nil {
		t.Fatalf("root cert: %v", err)
	}
	if root != next {
		t.Fatalf("root is %s, want %s", root.Hex(), next.Hex())
	}
}

func TestRootCertUnset(t *testing.T) {
	svc := NewService(ServiceDeps{Cache: truststore.NewMemory()})
	if _, err := svc.RootCert(); !errors.Is(err, domain.ErrRootUnset) {
		t.Fatalf("got %v, want ErrRootUnset", err)
	}
}

func TestSetBackendConfigUnknownKind(t *testing.T) {
	f := newFixture(t)
	err := f.svc.SetBackendConfig(context.Background(), adminKey, domain.ZkTypeUnknown, domain.BackendConfig{})
	if !errors.Is(err, domain.ErrUnknownBackend) {
		t.Fatalf("got %v, want ErrUnknownBackend", err)
	}
}

func TestSetBackendConfigLastWriteWins(t *testing.T) {
	f := newFixture(t)
	next := domain.BackendConfig{
		VerifierID:      domain.Fingerprint{0x61},
		VerifierProofID: domain.Fingerprint{0x62},
		AggregatorID:    domain.Fingerprint{0x63},
		Checker:         f.risc0,
	}
	if err := f.svc.SetBackendConfig(context.Background(), adminKey, domain.ZkTypeRiscZero, next); err != nil {
		t.Fatalf("set backend config: %v", err)
	}

	// A proof sealed for the previous verifier id must now be rejected.
	output, proof := f.sealedReport(t, successJournal(domain.CertChain{testRoot, certA}, 1))
	if _, err := f.svc.Verify(context.Background(), output, domain.ZkTypeRiscZero, proof); !errors.Is(err, domain.ErrProofRejected) {
		t.Fatalf("got %v, want ErrProofRejected", err)
	}
}

func TestAuthorizerDenyIsForbidden(t *testing.T) {
	f := newFixture(t, withAuthorizer(&staticAuthorizer{allowed: false}))
	err := f.svc.RevokeCertificate(context.Background(), adminKey, certA)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestAuthorizerAllowPasses(t *testing.T) {
	f := newFixture(t, withAuthorizer(&staticAuthorizer{allowed: true}))
	if err := f.svc.AdmitCertificates(context.Background(), adminKey, []domain.Fingerprint{certA}); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !f.svc.IsTrusted(certA) {
		t.Fatal("admitted cert must be trusted")
	}
}

func TestRevokeCertificate(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.AdmitCertificates(context.Background(), adminKey, []domain.Fingerprint{certA}); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := f.svc.RevokeCertificate(context.Background(), adminKey, certA); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if f.svc.IsTrusted(certA) {
		t.Fatal("revoked cert must not be trusted")
	}
	if err := f.svc.RevokeCertificate(context.Background(), adminKey, certA); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second revoke: got %v, want ErrNotFound", err)
	}
}

func TestRevokeRootIsNotFound(t *testing.T) {
	f := newFixture(t)
	// The root lives outside the cache, so the revocation path cannot
	// touch it.
	if err := f.svc.RevokeCertificate(context.Background(), adminKey, testRoot); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestAdmitCertificatesSkipsRoot(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.AdmitCertificates(context.Background(), adminKey, []domain.Fingerprint{testRoot, certA}); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if f.cache.IsTrusted(testRoot) {
		t.Fatal("root must never enter the trust cache")
	}
	if !f.cache.IsTrusted(certA) {
		t.Fatal("non-root cert must be admitted")
	}
}

func TestAdminMutationsAreAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SetRootCertificate(ctx, adminKey, domain.Fingerprint{0xf1}); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if err := f.svc.AdmitCertificates(ctx, adminKey, []domain.Fingerprint{certA}); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := f.svc.RevokeCertificate(ctx, adminKey, certA); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	types := make([]domain.AuditEventType, len(f.audit.events))
	for i, event := range f.audit.events {
		types[i] = event.EventType
	}
	want := []domain.AuditEventType{
		domain.AuditEventRootCertSet,
		domain.AuditEventCertsAdmitted,
		domain.AuditEventCertRevoked,
	}
	if len(types) != len(want) {
		t.Fatalf("got %d audit events (%v), want %d", len(types), types, len(want))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d is %s, want %s", i, types[i], want[i])
		}
	}
	if err := VerifyAuditChain(f.audit.events); err != nil {
		t.Fatalf("audit chain: %v", err)
	}
}

func TestPersistenceFailureAbortsAdminOps(t *testing.T) {
	f := newFixture(t, withRepo(failingRepo{}))
	if err := f.svc.SetRootCertificate(context.Background(), adminKey, domain.Fingerprint{0xf1}); err == nil {
		t.Fatal("expected storage error")
	}
	if root, _ := f.svc.RootCert(); root != testRoot {
		t.Fatal("root must not change when persistence fails")
	}
	if err := f.svc.AdmitCertificates(context.Background(), adminKey, []domain.Fingerprint{certA}); err == nil {
		t.Fatal("expected storage error")
	}
	if f.svc.IsTrusted(certA) {
		t.Fatal("cache must not change when persistence fails")
	}
}
