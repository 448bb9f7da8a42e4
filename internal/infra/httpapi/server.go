// Package httpapi exposes the verification service over HTTP: public verify
// and prefix-query routes, the admin trust-management surface, and
// operational endpoints.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/backendzk"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/usecase"
)

const adminKeyHeader = "X-Admin-Api-Key"

type ServerDeps struct {
	Service  *usecase.Service
	Limiter  domain.RateLimiter
	Logger   *logrus.Logger
	Registry *prometheus.Registry

	RateLimit  int
	RateWindow time.Duration
}

type Server struct {
	deps   ServerDeps
	router *gin.Engine
}

func NewServerWithDeps(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.RateWindow <= 0 {
		deps.RateWindow = time.Minute
	}
	s := &Server{deps: deps}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.deps.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	v1.GET("/root-cert", s.handleRootCert)

	public := v1.Group("")
	public.Use(s.rateLimit())
	public.POST("/verify", s.handleVerify)
	public.POST("/verify/batch", s.handleBatchVerify)
	public.POST("/certs/prefix-lengths", s.handlePrefixLengths)

	admin := v1.Group("/admin")
	admin.PUT("/root-cert", s.handleSetRootCert)
	admin.PUT("/backends/:kind", s.handleSetBackendConfig)
	admin.POST("/certs", s.handleAdmitCerts)
	admin.DELETE("/certs/:fingerprint", s.handleRevokeCert)

	return router
}

func (s *Server) adminKey(c *gin.Context) string {
	return c.GetHeader(adminKeyHeader)
}

// checkerFor resolves the proof checker attached to a newly configured
// backend kind.
func (s *Server) checkerFor(kind domain.ZkCoProcessorType) (domain.ProofChecker, error) {
	return backendzk.CheckerFor(kind)
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Limiter == nil || s.deps.RateLimit <= 0 {
			c.Next()
			return
		}
		decision, err := s.deps.Limiter.Allow(c.Request.Context(), c.ClientIP(), s.deps.RateLimit, s.deps.RateWindow)
		if err != nil {
			s.deps.Logger.WithError(err).Warn("rate limiter unavailable, letting request through")
			c.Next()
			return
		}
		writeRateLimitHeaders(c, decision)
		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": "rate_limited"})
			return
		}
		c.Next()
	}
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	c.Header("X-RateLimit-Limit", itoa(decision.Limit))
	c.Header("X-RateLimit-Remaining", itoa(decision.Remaining))
	if !decision.ResetAt.IsZero() {
		c.Header("X-RateLimit-Reset", itoa(int(decision.ResetAt.Unix())))
	}
}
