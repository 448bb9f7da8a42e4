package db

import "time"

type RootCertModel struct {
	ID          int64  `gorm:"primaryKey"`
	Fingerprint string `gorm:"not null"`
	UpdatedAt   time.Time
}

func (RootCertModel) TableName() string {
	return "root_cert"
}

type TrustedCertModel struct {
	Fingerprint string    `gorm:"primaryKey"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (TrustedCertModel) TableName() string {
	return "trusted_certs"
}

type BackendConfigModel struct {
	Kind            string    `gorm:"primaryKey"`
	VerifierID      string    `gorm:"column:verifier_id;not null"`
	VerifierProofID string    `gorm:"column:verifier_proof_id;not null"`
	AggregatorID    string    `gorm:"column:aggregator_id;not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (BackendConfigModel) TableName() string {
	return "backend_configs"
}

type AuditEventModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Seq           int64  `gorm:"uniqueIndex;not null"`
	EventType     string `gorm:"index;not null"`
	PayloadJSON   []byte `gorm:"type:jsonb;not null"`
	PayloadHash   string `gorm:"not null"`
	ActorType     string `gorm:"not null"`
	ActorIDHash   string `gorm:"not null"`
	TargetType    string `gorm:"not null"`
	TargetID      string `gorm:"index;not null"`
	Result        string `gorm:"not null"`
	ErrorCode     string
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (AuditEventModel) TableName() string {
	return "audit_events"
}
