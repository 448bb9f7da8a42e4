// Package db persists trust state and the audit trail in Postgres through
// gorm. The in-memory service state is authoritative at runtime; these
// repositories are written through on every mutation and read back once at
// startup.
package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

var errDBUnavailable = errors.New("database unavailable")

// rootCertRowID is the single row the root certificate lives in.
const rootCertRowID = 1

type TrustStateRepository struct {
	db *gorm.DB
}

func NewTrustStateRepository(db *gorm.DB) *TrustStateRepository {
	return &TrustStateRepository{db: db}
}

// Migrate creates the trust-state and audit tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&RootCertModel{},
		&TrustedCertModel{},
		&BackendConfigModel{},
		&AuditEventModel{},
	)
}

func (r *TrustStateRepository) SaveRootCert(ctx context.Context, fp domain.Fingerprint) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := RootCertModel{
		ID:          rootCertRowID,
		Fingerprint: fp.Hex(),
		UpdatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fingerprint", "updated_at"}),
		}).
		Create(&model).Error
}

func (r *TrustStateRepository) SaveBackendConfig(ctx context.Context, kind domain.ZkCoProcessorType, cfg domain.BackendConfig) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := BackendConfigModel{
		Kind:            kind.String(),
		VerifierID:      cfg.VerifierID.Hex(),
		VerifierProofID: cfg.VerifierProofID.Hex(),
		AggregatorID:    cfg.AggregatorID.Hex(),
		UpdatedAt:       time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"verifier_id", "verifier_proof_id", "aggregator_id", "updated_at"}),
		}).
		Create(&model).Error
}

func (r *TrustStateRepository) AdmitCerts(ctx context.Context, fps []domain.Fingerprint) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if len(fps) == 0 {
		return nil
	}
	now := time.Now().UTC()
	models := make([]TrustedCertModel, len(fps))
	for i, fp := range fps {
		models[i] = TrustedCertModel{Fingerprint: fp.Hex(), CreatedAt: now}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models).Error
	})
}

func (r *TrustStateRepository) DeleteCert(ctx context.Context, fp domain.Fingerprint) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).
		Delete(&TrustedCertModel{}, "fingerprint = ?", fp.Hex()).Error
}

// PersistedState is everything restored into the service at startup.
type PersistedState struct {
	RootCert *domain.Fingerprint
	Backends map[domain.ZkCoProcessorType]domain.BackendConfig
	Certs    []domain.Fingerprint
}

// LoadState reads the persisted trust state. Backend configs come back
// without a proof checker; the caller attaches one per kind.
func (r *TrustStateRepository) LoadState(ctx context.Context) (PersistedState, error) {
	state := PersistedState{Backends: make(map[domain.ZkCoProcessorType]domain.BackendConfig)}
	if r.db == nil {
		return state, errDBUnavailable
	}

	var rootRow RootCertModel
	err := r.db.WithContext(ctx).First(&rootRow, "id = ?", rootCertRowID).Error
	switch {
	case err == nil:
		fp, err := domain.ParseFingerprint(rootRow.Fingerprint)
		if err != nil {
			return state, err
		}
		state.RootCert = &fp
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return state, err
	}

	var backendRows []BackendConfigModel
	if err := r.db.WithContext(ctx).Find(&backendRows).Error; err != nil {
		return state, err
	}
	for _, row := range backendRows {
		kind, err := domain.ParseZkCoProcessorType(row.Kind)
		if err != nil {
			return state, err
		}
		verifierID, err := domain.ParseFingerprint(row.VerifierID)
		if err != nil {
			return state, err
		}
		verifierProofID, err := domain.ParseFingerprint(row.VerifierProofID)
		if err != nil {
			return state, err
		}
		aggregatorID, err := domain.ParseFingerprint(row.AggregatorID)
		if err != nil {
			return state, err
		}
		state.Backends[kind] = domain.BackendConfig{
			VerifierID:      verifierID,
			VerifierProofID: verifierProofID,
			AggregatorID:    aggregatorID,
		}
	}

	var certRows []TrustedCertModel
	if err := r.db.WithContext(ctx).Find(&certRows).Error; err != nil {
		return state, err
	}
	for _, row := range certRows {
		fp, err := domain.ParseFingerprint(row.Fingerprint)
		if err != nil {
			return state, err
		}
		state.Certs = append(state.Certs, fp)
	}
	return state, nil
}
