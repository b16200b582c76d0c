package handler

import (
	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	"bookforge-ai-api/internal/interfaces/http/dto"
	"bookforge-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ChapterHandler 章节处理器
type ChapterHandler struct {
	chapterRepo  repository.ChapterRepository
	coordinator  *authoring.AutoSaveCoordinator
	stateMachine *authoring.ChapterStatusStateMachine
}

// NewChapterHandler 创建章节处理器
func NewChapterHandler(
	chapterRepo repository.ChapterRepository,
	coordinator *authoring.AutoSaveCoordinator,
	stateMachine *authoring.ChapterStatusStateMachine,
) *ChapterHandler {
	return &ChapterHandler{
		chapterRepo:  chapterRepo,
		coordinator:  coordinator,
		stateMachine: stateMachine,
	}
}

// ListChapters 获取书籍章节列表
// @Summary 获取书籍的章节列表
// @Tags Chapters
// @Produce json
// @Param bid path string true "书籍 ID"
// @Param status query string false "按状态过滤"
// @Success 200 {object} dto.Response[dto.ChapterListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/books/{bid}/chapters [get]
func (h *ChapterHandler) ListChapters(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := dto.BindBookID(c)

	var filter *repository.ChapterFilter
	if status := c.Query("status"); status != "" {
		filter = &repository.ChapterFilter{Status: entity.ChapterStatus(status)}
	}

	chapters, err := h.chapterRepo.ListByBook(ctx, bookID, filter)
	if err != nil {
		logger.Error(ctx, "failed to list chapters", err)
		dto.InternalError(c, "failed to list chapters")
		return
	}

	dto.Success(c, dto.ToChapterListResponse(chapters))
}

// CreateChapter 手动创建章节
// @Summary 在书籍末尾追加章节
// @Tags Chapters
// @Accept json
// @Produce json
// @Param bid path string true "书籍 ID"
// @Param body body dto.CreateChapterRequest true "章节信息"
// @Success 201 {object} dto.Response[dto.ChapterResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/books/{bid}/chapters [post]
func (h *ChapterHandler) CreateChapter(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := dto.BindBookID(c)

	var req dto.CreateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	seqNum, err := h.chapterRepo.GetNextSeqNum(ctx, bookID)
	if err != nil {
		respondError(c, ctx, "allocate chapter seq", err)
		return
	}

	chapter := entity.NewChapter(bookID, req.Title, req.Description, seqNum)
	if err := h.chapterRepo.Create(ctx, chapter); err != nil {
		respondError(c, ctx, "create chapter", err)
		return
	}

	dto.Created(c, dto.ToChapterResponse(chapter))
}

// GetChapter 获取章节详情
// @Summary 获取章节详情（含正文与当前版本号）
// @Tags Chapters
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[dto.ChapterResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid} [get]
func (h *ChapterHandler) GetChapter(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)

	chapter, err := h.chapterRepo.GetByID(ctx, chapterID)
	if err != nil {
		respondError(c, ctx, "get chapter", err)
		return
	}
	if chapter == nil {
		dto.NotFound(c, "chapter not found")
		return
	}

	dto.Success(c, dto.ToChapterResponse(chapter))
}

// SaveContent 保存章节正文。
// 默认走防抖自动保存（窗口内只保留最新内容），immediate 为 true 时
// 立即落库并返回新版本号。
// @Summary 以乐观并发方式保存章节正文
// @Description expected_version 与服务端不一致时返回 409，客户端应进入对账流程
// @Tags Chapters
// @Accept json
// @Produce json
// @Param cid path string true "章节 ID"
// @Param body body dto.SaveChapterContentRequest true "正文与期望版本"
// @Success 200 {object} dto.Response[dto.SaveChapterContentResponse]
// @Success 202 {object} dto.Response[dto.ScheduledSaveResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid} [put]
func (h *ChapterHandler) SaveContent(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)
	sessionID := dto.BindSessionID(c)

	var req dto.SaveChapterContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if !req.Immediate {
		h.coordinator.Schedule(ctx, sessionID, chapterID, req.Content, req.ExpectedVersion)
		dto.Accepted(c, dto.ScheduledSaveResponse{Scheduled: true})
		return
	}

	newVersion, err := h.coordinator.SaveNow(ctx, sessionID, chapterID, req.Content, req.ExpectedVersion)
	if err != nil {
		respondError(c, ctx, "save chapter content", err)
		return
	}

	h.markInProgress(c, chapterID)

	dto.Success(c, dto.SaveChapterContentResponse{NewVersion: newVersion})
}

// FlushContent 立即冲刷挂起的防抖保存。
// 标签页关闭、离开页面等导航时机调用；没有挂起内容时为无操作。
// @Summary 冲刷挂起的自动保存
// @Tags Chapters
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[dto.SaveChapterContentResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid}/flush [post]
func (h *ChapterHandler) FlushContent(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)
	sessionID := dto.BindSessionID(c)

	version, err := h.coordinator.Flush(ctx, sessionID, chapterID)
	if err != nil {
		respondError(c, ctx, "flush chapter content", err)
		return
	}

	h.markInProgress(c, chapterID)

	dto.Success(c, dto.SaveChapterContentResponse{NewVersion: version})
}

// SaveStatus 查询章节保存状态（pending/retrying/backed_up_locally/conflict/saved）
// @Summary 查询章节自动保存状态
// @Tags Chapters
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[authoring.ChapterSaveStatus]
// @Router /v1/chapters/{cid}/save-status [get]
func (h *ChapterHandler) SaveStatus(c *gin.Context) {
	chapterID := dto.BindChapterID(c)
	sessionID := dto.BindSessionID(c)

	dto.Success(c, h.coordinator.Status(sessionID, chapterID))
}

// markInProgress 首次保存正文后将 draft 章节推进到 in_progress。
// 状态推进失败不影响已完成的保存，只记录日志。
func (h *ChapterHandler) markInProgress(c *gin.Context, chapterID string) {
	ctx := c.Request.Context()

	chapter, err := h.chapterRepo.GetByID(ctx, chapterID)
	if err != nil || chapter == nil {
		return
	}
	if h.stateMachine.OnFirstContentSave(chapter) {
		if err := h.chapterRepo.UpdateStatus(ctx, chapterID, chapter.Status); err != nil {
			logger.Warn(ctx, "failed to advance chapter status after first save", "chapter_id", chapterID, "error", err.Error())
		}
	}
}

// DeleteChapter 删除章节
// @Summary 软删除章节
// @Tags Chapters
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid} [delete]
func (h *ChapterHandler) DeleteChapter(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)

	chapter, err := h.chapterRepo.GetByID(ctx, chapterID)
	if err != nil {
		respondError(c, ctx, "get chapter", err)
		return
	}
	if chapter == nil {
		dto.NotFound(c, "chapter not found")
		return
	}

	if err := h.chapterRepo.SoftDelete(ctx, chapterID); err != nil {
		respondError(c, ctx, "delete chapter", err)
		return
	}

	dto.NoContent(c)
}

// TransitionStatus 章节状态流转
// @Summary 显式触发章节状态流转（含发布与撤回）
// @Tags Chapters
// @Accept json
// @Produce json
// @Param cid path string true "章节 ID"
// @Param body body dto.TransitionChapterStatusRequest true "目标状态"
// @Success 200 {object} dto.Response[dto.ChapterResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid}/status [post]
func (h *ChapterHandler) TransitionStatus(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)

	var req dto.TransitionChapterStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	target := entity.ChapterStatus(req.Status)
	switch target {
	case entity.ChapterStatusDraft, entity.ChapterStatusInProgress,
		entity.ChapterStatusCompleted, entity.ChapterStatusPublished:
	default:
		dto.BadRequest(c, "unknown chapter status: "+req.Status)
		return
	}

	chapter, err := h.chapterRepo.GetByID(ctx, chapterID)
	if err != nil {
		respondError(c, ctx, "get chapter", err)
		return
	}
	if chapter == nil {
		dto.NotFound(c, "chapter not found")
		return
	}

	if err := h.stateMachine.Transition(chapter, target); err != nil {
		respondError(c, ctx, "transition chapter status", err)
		return
	}
	if err := h.chapterRepo.UpdateStatus(ctx, chapterID, chapter.Status); err != nil {
		respondError(c, ctx, "update chapter status", err)
		return
	}

	dto.Success(c, dto.ToChapterResponse(chapter))
}
