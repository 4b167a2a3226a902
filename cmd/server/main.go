package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"vaultdao/internal/activity"
	"vaultdao/internal/domain"
	"vaultdao/internal/export"
	"vaultdao/internal/filter"
	"vaultdao/internal/ledger"
	"vaultdao/internal/pipeline"
	"vaultdao/internal/platform/config"
	"vaultdao/internal/platform/httpserver"
	"vaultdao/internal/platform/logger"
	"vaultdao/internal/platform/middleware"
	"vaultdao/internal/platform/redis"
	httptransport "vaultdao/internal/transport/http"
	"vaultdao/internal/vault"
	vaulthandler "vaultdao/internal/vault/handler"
	vaultmetrics "vaultdao/internal/vault/metrics"
	"vaultdao/internal/vault/store"
)

const expireSweepInterval = time.Minute

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	st, health, err := buildStore(cfg, rdb)
	if err != nil {
		log.Error("store setup failed", "error", err)
		os.Exit(1)
	}

	rpc := ledger.NewClient(cfg.RPCEndpoint, cfg.RPCTimeout)
	signer := ledger.NewAgentSigner(cfg.SignerEndpoint, 60*time.Second)
	clock := ledger.NewClock(rpc, rdb, cfg.NetworkPassphrase, cfg.SecondsPerLedger)

	pipe := pipeline.New(rpc, signer, cfg.ContractID, cfg.NetworkPassphrase, log, pipeline.NewMetrics())

	var pub vault.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := activity.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.ActivityTopic, log)
		if err != nil {
			log.Error("kafka publisher setup failed", "error", err)
			os.Exit(1)
		}
		defer kp.Close()
		pub = kp
	}

	svc, err := vault.NewService(st, pipe, clock, vaultConfig(cfg), log, vaultmetrics.New(), pub)
	if err != nil {
		log.Error("vault service setup failed", "error", err)
		os.Exit(1)
	}

	go vault.NewReconciler(svc, rpc, log).Run(ctx)
	go expireLoop(ctx, svc, log)

	aggregator := activity.NewAggregator(rpc, st, rdb, log)
	assembler := export.NewAssembler(st)

	router := httptransport.New(httptransport.Deps{
		Vault:    vaulthandler.New(svc, filter.New(), log),
		Activity: activity.NewHandler(aggregator, log),
		Export:   export.NewHandler(assembler, log),
		Verifier: middleware.NewVerifier(cfg.JWTSigningKey),
		Logger:   log,
		Health:   health,
	})

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server listening", "addr", cfg.Addr, "contract", cfg.ContractID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// buildStore selects postgres when a DSN is configured, in-memory otherwise.
func buildStore(cfg config.Config, rdb *redis.Client) (store.Store, map[string]httptransport.HealthChecker, error) {
	health := make(map[string]httptransport.HealthChecker)
	if rdb != nil {
		health["redis"] = rdb
	}

	if cfg.PostgresDSN == "" {
		return store.NewInMemoryStore(), health, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, nil, err
	}
	if _, err := db.Exec(store.Schema); err != nil {
		return nil, nil, err
	}
	health["postgres"] = dbHealth{db}
	return store.NewPostgresStore(db), health, nil
}

type dbHealth struct{ db *sql.DB }

func (h dbHealth) Health(ctx context.Context) error { return h.db.PingContext(ctx) }

func vaultConfig(cfg config.Config) domain.VaultConfig {
	vc := domain.VaultConfig{
		Threshold:        uint32(cfg.Threshold),
		TimelockDelay:    uint64(cfg.TimelockDelay),
		ExpiryDelta:      uint64(cfg.ExpiryDelta),
		SecondsPerLedger: cfg.SecondsPerLedger,
	}
	for _, s := range cfg.Signers {
		vc.Signers = append(vc.Signers, domain.Address(s))
	}
	for _, a := range cfg.Admins {
		vc.Admins = append(vc.Admins, domain.Address(a))
	}
	if cfg.SpendingLimit != "" {
		if d, err := decimal.NewFromString(cfg.SpendingLimit); err == nil {
			vc.SpendingLimit = d
		}
	}
	if cfg.DailyLimit != "" {
		if d, err := decimal.NewFromString(cfg.DailyLimit); err == nil {
			vc.DailyLimit = d
		}
	}
	if cfg.WeeklyLimit != "" {
		if d, err := decimal.NewFromString(cfg.WeeklyLimit); err == nil {
			vc.WeeklyLimit = d
		}
	}
	if cfg.TimelockThreshold != "" {
		if d, err := decimal.NewFromString(cfg.TimelockThreshold); err == nil {
			vc.TimelockThreshold = d
		}
	}
	return vc
}

func expireLoop(ctx context.Context, svc *vault.Service, log *slog.Logger) {
	ticker := time.NewTicker(expireSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ExpireSweep(ctx)
			if err != nil {
				log.WarnContext(ctx, "expire sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "proposals expired", "count", n)
			}
		}
	}
}
