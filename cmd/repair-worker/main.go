package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/appointment-queue/internal/appointment"
	"github.com/clinicore/appointment-queue/internal/config"
	"github.com/clinicore/appointment-queue/internal/db"
	redisclient "github.com/clinicore/appointment-queue/internal/redis"
	"github.com/clinicore/appointment-queue/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	log.Info("repair-worker starting up", "env", cfg.Env, "interval", cfg.RepairInterval.String())

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.Connect(pgCtx, cfg)
	cancelPg()
	if err != nil {
		log.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.Connect(cfg)
	if err != nil {
		log.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", "error", err)
		}
	}()
	log.Info("connected to Redis")

	policy, err := appointment.PhasePolicyFromName(cfg.PhasePolicy)
	if err != nil {
		log.Error("phase policy error", "error", err)
		os.Exit(1)
	}

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisScopeLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(repo, locker, policy, cfg, log, nil)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.RepairBatch, log)

	ticker := time.NewTicker(cfg.RepairInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping repair worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.RepairBatch, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, batch int, log *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	repaired, err := svc.RepairScopes(runCtx, batch)
	if err != nil {
		log.Error("repair run error", "error", err)
		return
	}
	log.Info("repair run complete", "repaired", repaired, "duration", time.Since(start).String())
}
