package handler

import (
	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/domain/repository"
	"bookforge-ai-api/internal/interfaces/http/dto"

	"github.com/gin-gonic/gin"
)

// QuestionHandler 采访问题与回答处理器
type QuestionHandler struct {
	orchestrator *authoring.ContentPipelineOrchestrator
	responses    *authoring.QuestionResponseService
	questionRepo repository.QuestionRepository
}

// NewQuestionHandler 创建问题处理器
func NewQuestionHandler(
	orchestrator *authoring.ContentPipelineOrchestrator,
	responses *authoring.QuestionResponseService,
	questionRepo repository.QuestionRepository,
) *QuestionHandler {
	return &QuestionHandler{
		orchestrator: orchestrator,
		responses:    responses,
		questionRepo: questionRepo,
	}
}

// GenerateQuestions 生成采访问题
// @Summary 为章节生成采访问题
// @Description 已有问题时直接返回；regenerate 为 true 时整组替换，孤儿回答随之丢弃
// @Tags Questions
// @Accept json
// @Produce json
// @Param cid path string true "章节 ID"
// @Param body body dto.GenerateQuestionsRequest true "生成参数"
// @Success 200 {object} dto.Response[dto.QuestionListResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid}/questions/generate [post]
func (h *QuestionHandler) GenerateQuestions(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)

	var req dto.GenerateQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	questions, err := h.orchestrator.GenerateQuestions(ctx, chapterID, req.Regenerate)
	if err != nil {
		respondError(c, ctx, "generate questions", err)
		return
	}

	dto.Success(c, dto.ToQuestionListResponse(questions))
}

// ListQuestions 获取章节问题列表
// @Summary 获取章节的采访问题
// @Tags Questions
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[dto.QuestionListResponse]
// @Router /v1/chapters/{cid}/questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)

	questions, err := h.questionRepo.ListByChapter(ctx, chapterID)
	if err != nil {
		respondError(c, ctx, "list questions", err)
		return
	}

	dto.Success(c, dto.ToQuestionListResponse(questions))
}

// SaveResponse 保存问题回答
// @Summary 保存问题回答
// @Description 默认走防抖合并；immediate 为 true 时立即落库并返回结果
// @Tags Questions
// @Accept json
// @Produce json
// @Param cid path string true "章节 ID"
// @Param qid path string true "问题 ID"
// @Param body body dto.SaveResponseRequest true "回答内容"
// @Success 200 {object} dto.Response[dto.ResponseItem]
// @Success 202 {object} dto.Response[dto.ScheduledSaveResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid}/questions/{qid}/response [put]
func (h *QuestionHandler) SaveResponse(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)
	questionID := dto.BindQuestionID(c)

	var req dto.SaveResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if req.Immediate {
		resp, err := h.responses.SaveNow(ctx, questionID, chapterID, req.Text)
		if err != nil {
			respondError(c, ctx, "save response", err)
			return
		}
		dto.Success(c, dto.ToResponseItem(resp))
		return
	}

	if err := h.responses.ScheduleSave(ctx, questionID, chapterID, req.Text); err != nil {
		respondError(c, ctx, "schedule response save", err)
		return
	}
	dto.Accepted(c, dto.ScheduledSaveResponse{Scheduled: true})
}

// ListResponses 获取章节回答列表
// @Summary 获取章节的全部回答
// @Tags Questions
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[dto.ResponseListResponse]
// @Router /v1/chapters/{cid}/responses [get]
func (h *QuestionHandler) ListResponses(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)

	responses, err := h.responses.GetResponses(ctx, chapterID)
	if err != nil {
		respondError(c, ctx, "list responses", err)
		return
	}

	dto.Success(c, dto.ToResponseListResponse(responses))
}

// GetProgress 获取回答完成度
// @Summary 获取章节问题回答完成度
// @Tags Questions
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[dto.ProgressResponse]
// @Router /v1/chapters/{cid}/progress [get]
func (h *QuestionHandler) GetProgress(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)

	progress, err := h.responses.Progress(ctx, chapterID)
	if err != nil {
		respondError(c, ctx, "get progress", err)
		return
	}

	dto.Success(c, dto.ToProgressResponse(progress))
}
