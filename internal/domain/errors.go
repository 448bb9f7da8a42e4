package domain

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrUnknownBackend     = errors.New("unknown zk coprocessor")
	ErrProofRejected      = errors.New("proof rejected")
	ErrMalformedJournal   = errors.New("malformed journal")
	ErrVerifierVKMismatch = errors.New("aggregation verifier vk mismatch")
	ErrNotFound           = errors.New("not found")
	ErrRootMismatch       = errors.New("root certificate mismatch")
	ErrRootUnset          = errors.New("root certificate not configured")
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
	ErrChainTooLong       = errors.New("certificate chain too long")
)
