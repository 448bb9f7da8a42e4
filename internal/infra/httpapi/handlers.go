package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

type verifyRequest struct {
	Output        hexutil.Bytes `json:"output" binding:"required"`
	ZkCoprocessor string        `json:"zk_coprocessor" binding:"required"`
	Proof         hexutil.Bytes `json:"proof" binding:"required"`
}

type pcrJSON struct {
	Index uint64        `json:"index"`
	Value hexutil.Bytes `json:"value"`
}

type reportJSON struct {
	Result          string        `json:"result"`
	Certs           []string      `json:"certs"`
	TrustedCertsLen uint64        `json:"trusted_certs_len"`
	UserData        hexutil.Bytes `json:"user_data,omitempty"`
	Nonce           hexutil.Bytes `json:"nonce,omitempty"`
	PublicKey       hexutil.Bytes `json:"public_key,omitempty"`
	PCRs            []pcrJSON     `json:"pcrs,omitempty"`
	ModuleID        string        `json:"module_id"`
	Timestamp       uint64        `json:"timestamp"`
}

func toReportJSON(j domain.ReportJournal) reportJSON {
	certs := make([]string, len(j.Certs))
	for i, fp := range j.Certs {
		certs[i] = fp.Hex()
	}
	pcrs := make([]pcrJSON, len(j.PCRs))
	for i, p := range j.PCRs {
		pcrs[i] = pcrJSON{Index: p.Index, Value: p.Value}
	}
	return reportJSON{
		Result:          j.Result.String(),
		Certs:           certs,
		TrustedCertsLen: j.TrustedCertsLen,
		UserData:        j.UserData,
		Nonce:           j.Nonce,
		PublicKey:       j.PublicKey,
		PCRs:            pcrs,
		ModuleID:        j.ModuleID,
		Timestamp:       j.Timestamp,
	}
}

func (s *Server) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "error": err.Error()})
		return
	}
	kind, err := domain.ParseZkCoProcessorType(req.ZkCoprocessor)
	if err != nil {
		writeError(c, err)
		return
	}
	journal, err := s.deps.Service.Verify(c.Request.Context(), req.Output, kind, req.Proof)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReportJSON(journal))
}

func (s *Server) handleBatchVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "error": err.Error()})
		return
	}
	kind, err := domain.ParseZkCoProcessorType(req.ZkCoprocessor)
	if err != nil {
		writeError(c, err)
		return
	}
	journals, err := s.deps.Service.BatchVerify(c.Request.Context(), req.Output, kind, req.Proof)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]reportJSON, len(journals))
	for i, j := range journals {
		out[i] = toReportJSON(j)
	}
	c.JSON(http.StatusOK, gin.H{"reports": out})
}

type prefixLengthsRequest struct {
	Chains [][]string `json:"chains" binding:"required"`
}

func (s *Server) handlePrefixLengths(c *gin.Context) {
	var req prefixLengthsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "error": err.Error()})
		return
	}
	chains := make([]domain.CertChain, len(req.Chains))
	for i, raw := range req.Chains {
		chain := make(domain.CertChain, len(raw))
		for j, s := range raw {
			fp, err := domain.ParseFingerprint(s)
			if err != nil {
				writeError(c, err)
				return
			}
			chain[j] = fp
		}
		chains[i] = chain
	}
	lengths, err := s.deps.Service.CheckTrustedPrefixLengths(chains)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lengths": lengths})
}

func (s *Server) handleRootCert(c *gin.Context) {
	fp, err := s.deps.Service.RootCert()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fingerprint": fp.Hex()})
}

type setRootCertRequest struct {
	Fingerprint string `json:"fingerprint" binding:"required"`
}

func (s *Server) handleSetRootCert(c *gin.Context) {
	var req setRootCertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "error": err.Error()})
		return
	}
	fp, err := domain.ParseFingerprint(req.Fingerprint)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.deps.Service.SetRootCertificate(c.Request.Context(), s.adminKey(c), fp); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fingerprint": fp.Hex()})
}

type setBackendConfigRequest struct {
	VerifierID      string `json:"verifier_id" binding:"required"`
	VerifierProofID string `json:"verifier_proof_id" binding:"required"`
	AggregatorID    string `json:"aggregator_id" binding:"required"`
}

func (s *Server) handleSetBackendConfig(c *gin.Context) {
	kind, err := domain.ParseZkCoProcessorType(c.Param("kind"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req setBackendConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "error": err.Error()})
		return
	}
	cfg, err := parseBackendConfig(req)
	if err != nil {
		writeError(c, err)
		return
	}
	checker, err := s.checkerFor(kind)
	if err != nil {
		writeError(c, err)
		return
	}
	cfg.Checker = checker
	if err := s.deps.Service.SetBackendConfig(c.Request.Context(), s.adminKey(c), kind, cfg); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backend": kind.String()})
}

func parseBackendConfig(req setBackendConfigRequest) (domain.BackendConfig, error) {
	verifierID, err := domain.ParseFingerprint(req.VerifierID)
	if err != nil {
		return domain.BackendConfig{}, err
	}
	verifierProofID, err := domain.ParseFingerprint(req.VerifierProofID)
	if err != nil {
		return domain.BackendConfig{}, err
	}
	aggregatorID, err := domain.ParseFingerprint(req.AggregatorID)
	if err != nil {
		return domain.BackendConfig{}, err
	}
	return domain.BackendConfig{
		VerifierID:      verifierID,
		VerifierProofID: verifierProofID,
		AggregatorID:    aggregatorID,
	}, nil
}

type admitCertsRequest struct {
	Fingerprints []string `json:"fingerprints" binding:"required"`
}

func (s *Server) handleAdmitCerts(c *gin.Context) {
	var req admitCertsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "error": err.Error()})
		return
	}
	fps := make([]domain.Fingerprint, len(req.Fingerprints))
	for i, raw := range req.Fingerprints {
		fp, err := domain.ParseFingerprint(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		fps[i] = fp
	}
	if err := s.deps.Service.AdmitCertificates(c.Request.Context(), s.adminKey(c), fps); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admitted": len(fps)})
}

func (s *Server) handleRevokeCert(c *gin.Context) {
	fp, err := domain.ParseFingerprint(c.Param("fingerprint"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.deps.Service.RevokeCertificate(c.Request.Context(), s.adminKey(c), fp); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": fp.Hex()})
}

// writeError maps hard errors to distinguishable status codes so callers can
// tell a retryable configuration problem from a permanently invalid proof.
func writeError(c *gin.Context, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnknownBackend):
		status, code = http.StatusBadRequest, "unknown_backend"
	case errors.Is(err, domain.ErrProofRejected):
		status, code = http.StatusUnprocessableEntity, "proof_rejected"
	case errors.Is(err, domain.ErrMalformedJournal):
		status, code = http.StatusBadRequest, "malformed_journal"
	case errors.Is(err, domain.ErrVerifierVKMismatch):
		status, code = http.StatusUnprocessableEntity, "verifier_vk_mismatch"
	case errors.Is(err, domain.ErrRootMismatch):
		status, code = http.StatusBadRequest, "root_mismatch"
	case errors.Is(err, domain.ErrRootUnset):
		status, code = http.StatusConflict, "root_unset"
	case errors.Is(err, domain.ErrInvalidFingerprint):
		status, code = http.StatusBadRequest, "invalid_fingerprint"
	case errors.Is(err, domain.ErrChainTooLong):
		status, code = http.StatusBadRequest, "chain_too_long"
	default:
		status, code = http.StatusInternalServerError, "internal"
	}
	c.JSON(status, gin.H{"code": code, "error": err.Error()})
}

func itoa(n int) string { return strconv.Itoa(n) }
