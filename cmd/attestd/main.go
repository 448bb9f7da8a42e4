package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/config"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/backendzk"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/db"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/httpapi"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/logmem"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/metrics"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/policyopa"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/ratelimit"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/infra/truststore"
	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("attestd failed")
	}
}

func run() error {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx := context.Background()

	var repo usecase.StateRepository
	var auditRepo usecase.AuditEventRepository
	cache := truststore.NewMemory()
	persisted := db.PersistedState{}

	if cfg.PostgresDSN != "" {
		gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		if err := db.Migrate(gdb); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		trustRepo := db.NewTrustStateRepository(gdb)
		persisted, err = trustRepo.LoadState(ctx)
		if err != nil {
			return fmt.Errorf("load persisted state: %w", err)
		}
		repo = trustRepo
		auditRepo = db.NewAuditEventRepository(gdb)
		log.WithFields(logrus.Fields{
			"trusted_certs": len(persisted.Certs),
			"backends":      len(persisted.Backends),
		}).Info("trust state restored")
	} else {
		auditRepo = logmem.New()
		log.Warn("no postgres dsn configured, running in memory")
	}

	var authz usecase.Authorizer
	if cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath, "admin-authz")
		if err != nil {
			return fmt.Errorf("load policy bundle: %w", err)
		}
		log.WithFields(logrus.Fields{
			"bundle_id":   engine.BundleID(),
			"bundle_hash": engine.BundleHash(),
		}).Info("admin policy loaded")
		authz = engine
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	service := usecase.NewService(usecase.ServiceDeps{
		MaxDrift:     cfg.MaxClockDrift,
		AdminKeyHash: cfg.AdminKeyHash,
		Cache:        cache,
		Repo:         repo,
		Authorizer:   authz,
		Audit:        usecase.NewAuditEmitter(auditRepo, nil),
		Metrics:      metrics.New(registry),
		Logger:       log,
	})

	if len(persisted.Certs) > 0 {
		cache.Admit(persisted.Certs)
	}
	if persisted.RootCert != nil {
		service.SeedRoot(*persisted.RootCert)
	} else if cfg.RootCert != "" {
		fp, err := domain.ParseFingerprint(cfg.RootCert)
		if err != nil {
			return fmt.Errorf("ATTESTD_ROOT_CERT: %w", err)
		}
		service.SeedRoot(fp)
	}
	for kind, backendCfg := range persisted.Backends {
		checker, err := backendzk.CheckerFor(kind)
		if err != nil {
			return err
		}
		backendCfg.Checker = checker
		service.SeedBackend(kind, backendCfg)
	}

	var limiter domain.RateLimiter
	if cfg.RedisAddr != "" {
		limiter, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Now)
		if err != nil {
			return err
		}
	} else {
		limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	}

	server := httpapi.NewServerWithDeps(httpapi.ServerDeps{
		Service:    service,
		Limiter:    limiter,
		Logger:     log,
		Registry:   registry,
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow,
	})

	log.WithField("addr", cfg.ListenAddr).Info("attestd listening")
	if err := http.ListenAndServe(cfg.ListenAddr, server.Router()); err != nil {
		return err
	}
	return nil
}
