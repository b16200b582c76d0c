// Package wire 提供依赖注入配置
package wire

import (
	"fmt"
	"os"

	"github.com/google/wire"

	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/config"
	"bookforge-ai-api/internal/domain/repository"
	"bookforge-ai-api/internal/infrastructure/llm"
	"bookforge-ai-api/internal/infrastructure/messaging"
	"bookforge-ai-api/internal/infrastructure/persistence/postgres"
	"bookforge-ai-api/internal/infrastructure/persistence/redis"
	"bookforge-ai-api/internal/interfaces/http/handler"
	"bookforge-ai-api/internal/interfaces/http/router"
	"bookforge-ai-api/internal/workflow/chain"
	workflowport "bookforge-ai-api/internal/workflow/port"
)

// WorkerDeps 草稿 Worker 依赖容器
type WorkerDeps struct {
	RedisClient  *redis.Client
	Orchestrator *authoring.ContentPipelineOrchestrator
	Consumer     *messaging.Consumer
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewBookRepository,
	postgres.NewChapterRepository,
	postgres.NewQuestionRepository,
	postgres.NewResponseRepository,
	postgres.NewJobRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	// 接口绑定
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.BookRepository), new(*postgres.BookRepository)),
	wire.Bind(new(repository.ChapterRepository), new(*postgres.ChapterRepository)),
	wire.Bind(new(repository.QuestionRepository), new(*postgres.QuestionRepository)),
	wire.Bind(new(repository.ResponseRepository), new(*postgres.ResponseRepository)),
	wire.Bind(new(repository.JobRepository), new(*postgres.JobRepository)),
	wire.Bind(new(authoring.ChapterContentWriter), new(*postgres.ChapterRepository)),
)

// RedisSet Redis 提供者集合（API 网关全量）
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	ProvideSnapshotStore,
	ProvideTabStateStore,
	wire.Bind(new(authoring.SnapshotBackend), new(*redis.SnapshotStore)),
	wire.Bind(new(authoring.TabStateBackend), new(*redis.TabStateStore)),
	wire.Bind(new(handler.BookCache), new(*redis.Cache)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(authoring.DraftJobPublisher), new(*messaging.Producer)),
)

// WorkflowSet LLM 工作流提供者集合
var WorkflowSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	chain.NewTOCChain,
	chain.NewQuestionChain,
	chain.NewDraftChain,
	authoring.NewTOCGenerator,
	authoring.NewQuestionGenerator,
	authoring.NewDraftSynthesizer,
)

// PipelineSet 内容流水线核心服务集合（网关与 Worker 共用）
var PipelineSet = wire.NewSet(
	ProvideAutoSaveCoordinator,
	ProvideQuestionResponseService,
	authoring.NewChapterStatusStateMachine,
	ProvideOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewBookHandler,
	handler.NewChapterHandler,
	handler.NewQuestionHandler,
	handler.NewJobHandler,
	handler.NewTabStateHandler,
	handler.NewReconcileHandler,
	wire.Struct(new(router.Dependencies), "*"),
	router.New,
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideSnapshotStore 提供备份快照存储
func ProvideSnapshotStore(client *redis.Client, cfg *config.Config) *redis.SnapshotStore {
	return redis.NewSnapshotStore(client, cfg.Authoring.Snapshot.TTL)
}

// ProvideTabStateStore 提供标签页状态存储
func ProvideTabStateStore(client *redis.Client, cfg *config.Config) *redis.TabStateStore {
	return redis.NewTabStateStore(client, cfg.Authoring.TabState.TTL)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideDraftConsumer 提供草稿任务消费者
func ProvideDraftConsumer(redisClient *redis.Client, cfg *config.Config) *messaging.Consumer {
	sc := cfg.Messaging.RedisStream
	return messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamDraftGen,
		Group:         messaging.ConsumerGroupDraftWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  sc.BlockTimeout,
		ClaimInterval: sc.ClaimInterval,
		RetryLimit:    sc.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    sc.RetryBackoff.Initial,
			Max:        sc.RetryBackoff.Max,
			Multiplier: sc.RetryBackoff.Multiplier,
		},
	})
}

// hostnameConsumerName 以主机名加进程号作为消费者标识
func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// ProvideAutoSaveCoordinator 提供自动保存协调器
func ProvideAutoSaveCoordinator(writer authoring.ChapterContentWriter, snapshots authoring.SnapshotBackend, cfg *config.Config) *authoring.AutoSaveCoordinator {
	return authoring.NewAutoSaveCoordinator(writer, snapshots, cfg.Authoring.AutoSave)
}

// ProvideQuestionResponseService 提供问题回答服务
func ProvideQuestionResponseService(questions repository.QuestionRepository, responses repository.ResponseRepository, cfg *config.Config) *authoring.QuestionResponseService {
	return authoring.NewQuestionResponseService(questions, responses, cfg.Authoring.AutoSave)
}

// ProvideOrchestrator 提供内容流水线编排器
func ProvideOrchestrator(
	books repository.BookRepository,
	chapters repository.ChapterRepository,
	questions repository.QuestionRepository,
	jobs repository.JobRepository,
	tx repository.Transactor,
	responses *authoring.QuestionResponseService,
	coordinator *authoring.AutoSaveCoordinator,
	stateMachine *authoring.ChapterStatusStateMachine,
	tocGen *authoring.TOCGenerator,
	questionGen *authoring.QuestionGenerator,
	draftSynth *authoring.DraftSynthesizer,
	publisher authoring.DraftJobPublisher,
	cfg *config.Config,
) *authoring.ContentPipelineOrchestrator {
	return authoring.NewContentPipelineOrchestrator(
		books, chapters, questions, jobs, tx,
		responses, coordinator, stateMachine,
		tocGen, questionGen, draftSynth, publisher,
		cfg.Authoring.DraftJob, cfg.LLM,
	)
}
