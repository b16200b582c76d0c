// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"bookforge-ai-api/internal/interfaces/http/middleware"
)

// RegisterV1Routes 注册 v1 版本路由
// rbacEnabled 与认证中间件联动：未配置 JWT 时跳过权限检查。
func RegisterV1Routes(v1 *gin.RouterGroup, deps Dependencies, rbacEnabled bool) {
	// 业务路由统一包在数据库事务里，响应失败即回滚
	if deps.Transactor != nil {
		v1.Use(middleware.DBTransaction(deps.Transactor))
	}

	perm := func(p middleware.Permission) gin.HandlerFunc {
		if !rbacEnabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RequirePermission(p)
	}

	// 书籍管理
	books := v1.Group("/books")
	{
		books.GET("", deps.Book.ListBooks)
		books.POST("", perm(middleware.PermBookWrite), deps.Book.CreateBook)
		books.GET("/:bid", deps.Book.GetBook)
		books.PUT("/:bid", perm(middleware.PermBookWrite), deps.Book.UpdateBook)

		// 目录生成（阶段一/二）
		books.POST("/:bid/toc", perm(middleware.PermBookWrite), deps.Book.GenerateTOC)

		// 书籍下的章节
		books.GET("/:bid/chapters", deps.Chapter.ListChapters)
		books.POST("/:bid/chapters", perm(middleware.PermBookWrite), deps.Chapter.CreateChapter)

		// 标签页状态
		books.GET("/:bid/tabs", deps.TabState.RestoreTabs)
		books.PUT("/:bid/tabs", deps.TabState.MutateTabs)
	}

	// 章节管理
	chapters := v1.Group("/chapters")
	{
		chapters.GET("/:cid", deps.Chapter.GetChapter)
		chapters.PUT("/:cid", perm(middleware.PermBookWrite), deps.Chapter.SaveContent)
		chapters.POST("/:cid/flush", perm(middleware.PermBookWrite), deps.Chapter.FlushContent)
		chapters.GET("/:cid/save-status", deps.Chapter.SaveStatus)
		chapters.DELETE("/:cid", perm(middleware.PermBookWrite), deps.Chapter.DeleteChapter)
		chapters.POST("/:cid/status", perm(middleware.PermChapterPub), deps.Chapter.TransitionStatus)

		// 采访问题与回答（阶段三/四）
		chapters.POST("/:cid/questions/generate", perm(middleware.PermBookWrite), deps.Question.GenerateQuestions)
		chapters.GET("/:cid/questions", deps.Question.ListQuestions)
		chapters.PUT("/:cid/questions/:qid/response", perm(middleware.PermBookWrite), deps.Question.SaveResponse)
		chapters.GET("/:cid/responses", deps.Question.ListResponses)
		chapters.GET("/:cid/progress", deps.Question.GetProgress)

		// 草稿生成（阶段五）
		chapters.POST("/:cid/draft", perm(middleware.PermDraftGenerate), deps.Job.RequestDraft)

		// 内容对账
		chapters.GET("/:cid/reconcile", deps.Reconcile.DetectConflict)
		chapters.POST("/:cid/reconcile", perm(middleware.PermBookWrite), deps.Reconcile.ResolveConflict)
	}

	// 任务管理
	jobs := v1.Group("/jobs")
	{
		jobs.GET("/:jid", deps.Job.GetJob)
	}
}
