//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"github.com/google/wire"

	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/config"
	"bookforge-ai-api/internal/infrastructure/persistence/postgres"
	"bookforge-ai-api/internal/infrastructure/persistence/redis"
	"bookforge-ai-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		wire.Bind(new(authoring.ChapterIDLister), new(*postgres.ChapterRepository)),
		RedisSet,
		MessagingSet,
		WorkflowSet,
		PipelineSet,
		authoring.NewTabStateManager,
		authoring.NewReconciliationService,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化草稿 Worker。
// Worker 不挂 HTTP 面，只需要流水线、消费者与快照存储。
func InitializeWorker(cfg *config.Config) (*WorkerDeps, func(), error) {
	wire.Build(
		RepoSet,
		ProvideRedisClient,
		ProvideSnapshotStore,
		wire.Bind(new(authoring.SnapshotBackend), new(*redis.SnapshotStore)),
		MessagingSet,
		ProvideDraftConsumer,
		WorkflowSet,
		PipelineSet,
		wire.Struct(new(WorkerDeps), "*"),
	)
	return nil, nil, nil
}
