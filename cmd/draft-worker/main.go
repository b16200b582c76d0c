// Package main 草稿生成 Worker 入口（draft-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookforge-ai-api/internal/config"
	einocb "bookforge-ai-api/internal/infrastructure/eino/callback"
	"bookforge-ai-api/internal/infrastructure/messaging"
	"bookforge-ai-api/internal/wire"
	"bookforge-ai-api/pkg/logger"
	"bookforge-ai-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "draft-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	einocb.Init()

	deps, cleanup, err := wire.InitializeWorker(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	// 草稿生成：一条消息对应一个任务，执行本身幂等，
	// 重复投递到终态任务会被原样跳过。
	deps.Consumer.RegisterHandler("draft_gen", func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.DraftJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return deps.Orchestrator.ExecuteDraftJob(msgCtx, payload.JobID)
	})

	if err := deps.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	// 周期清理：卡死在 running 的任务超时后标记失败
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	go sweepStaleJobs(sweepCtx, cfg.Authoring.DraftJob.Timeout, deps)

	log := logger.FromContext(ctx)
	log.Info("draft-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("draft-worker shutting down")
	cancelSweep()
	deps.Consumer.Stop()
}

func sweepStaleJobs(ctx context.Context, timeout time.Duration, deps *wire.WorkerDeps) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ticker := time.NewTicker(timeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := deps.Orchestrator.FailStaleJobs(ctx)
			if err != nil {
				logger.Warn(ctx, "stale job sweep failed", "error", err.Error())
				continue
			}
			if n > 0 {
				logger.Info(ctx, "marked stale draft jobs failed", "count", n)
			}
		}
	}
}
