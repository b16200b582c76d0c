package handler

import (
	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	"bookforge-ai-api/internal/interfaces/http/dto"

	"github.com/gin-gonic/gin"
)

// JobHandler 草稿生成任务处理器
type JobHandler struct {
	orchestrator *authoring.ContentPipelineOrchestrator
	jobRepo      repository.JobRepository
}

// NewJobHandler 创建任务处理器
func NewJobHandler(orchestrator *authoring.ContentPipelineOrchestrator, jobRepo repository.JobRepository) *JobHandler {
	return &JobHandler{
		orchestrator: orchestrator,
		jobRepo:      jobRepo,
	}
}

// RequestDraft 请求生成章节草稿
// @Summary 为章节请求异步生成草稿
// @Description 所有问题均已回答时创建任务入队；存在未回答问题时返回 422 并列出缺失问题
// @Tags Jobs
// @Accept json
// @Produce json
// @Param cid path string true "章节 ID"
// @Param body body dto.RequestDraftRequest true "写作风格"
// @Success 202 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid}/draft [post]
func (h *JobHandler) RequestDraft(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)

	var req dto.RequestDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	style, err := entity.ParseWritingStyle(req.WritingStyle)
	if err != nil {
		dto.BadRequest(c, "unknown writing style: "+req.WritingStyle)
		return
	}

	job, err := h.orchestrator.RequestDraft(ctx, chapterID, style)
	if err != nil {
		respondError(c, ctx, "request draft", err)
		return
	}

	dto.Accepted(c, dto.ToJobResponse(job))
}

// GetJob 查询任务状态
// @Summary 查询草稿生成任务状态
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := dto.BindJobID(c)

	job, err := h.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		respondError(c, ctx, "get job", err)
		return
	}
	if job == nil {
		dto.NotFound(c, "job not found")
		return
	}

	dto.Success(c, dto.ToJobResponse(job))
}
