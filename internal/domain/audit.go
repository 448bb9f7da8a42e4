package domain

import "time"

type AuditActorType string

const (
	AuditChainVersion = "audit_chain_v0"

	AuditActorSystem      AuditActorType = "system"
	AuditActorAdminAPIKey AuditActorType = "admin_api_key"
	AuditActorService     AuditActorType = "service"
)

type AuditEventType string

const (
	AuditEventRootCertSet      AuditEventType = "root_cert_set"
	AuditEventBackendConfigSet AuditEventType = "backend_config_set"
	AuditEventCertsAdmitted    AuditEventType = "certs_admitted"
	AuditEventCertRevoked      AuditEventType = "cert_revoked"
)

type AuditTargetType string

const (
	AuditTargetRootCert AuditTargetType = "root_cert"
	AuditTargetBackend  AuditTargetType = "backend"
	AuditTargetCert     AuditTargetType = "cert"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

// AuditEvent is one entry of the hash-chained administrative audit trail.
// EventHash covers the payload hash and PrevEventHash, so any removed or
// reordered entry breaks the chain.
type AuditEvent struct {
	ID            string
	Seq           int64
	EventType     AuditEventType
	Payload       any
	PayloadHash   string
	ActorType     AuditActorType
	ActorIDHash   string
	TargetType    AuditTargetType
	TargetID      string
	Result        AuditResult
	ErrorCode     string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
