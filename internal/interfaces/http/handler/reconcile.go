package handler

import (
	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/interfaces/http/dto"

	"github.com/gin-gonic/gin"
)

// ReconcileHandler 内容对账处理器
type ReconcileHandler struct {
	reconciler *authoring.ReconciliationService
}

// NewReconcileHandler 创建对账处理器
func NewReconcileHandler(reconciler *authoring.ReconciliationService) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler}
}

// DetectConflict 检测内容分歧
// @Summary 检测本地备份与服务端内容的分歧
// @Description 并排返回双方内容供用户裁决；与服务端一致的冗余备份会被静默清理
// @Tags Reconcile
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[dto.ConflictReportResponse]
// @Router /v1/chapters/{cid}/reconcile [get]
func (h *ReconcileHandler) DetectConflict(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)
	sessionID := dto.BindSessionID(c)

	report, err := h.reconciler.Detect(ctx, sessionID, chapterID)
	if err != nil {
		respondError(c, ctx, "detect conflict", err)
		return
	}

	dto.Success(c, dto.ToConflictReportResponse(report))
}

// ResolveConflict 裁决内容分歧
// @Summary 用户裁决：保留本地备份或丢弃
// @Description keep_local 基于服务端最新版本重新保存本地内容；discard_local 删除备份。永不自动合并文本
// @Tags Reconcile
// @Accept json
// @Produce json
// @Param cid path string true "章节 ID"
// @Param body body dto.ResolveConflictRequest true "裁决选择"
// @Success 200 {object} dto.Response[dto.ResolveConflictResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid}/reconcile [post]
func (h *ReconcileHandler) ResolveConflict(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)
	sessionID := dto.BindSessionID(c)

	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	newVersion, err := h.reconciler.Resolve(ctx, sessionID, chapterID, authoring.ResolutionChoice(req.Choice))
	if err != nil {
		respondError(c, ctx, "resolve conflict", err)
		return
	}

	dto.Success(c, dto.ResolveConflictResponse{NewVersion: newVersion})
}
