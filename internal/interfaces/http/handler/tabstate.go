package handler

import (
	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/interfaces/http/dto"

	"github.com/gin-gonic/gin"
)

// TabStateHandler 标签页状态处理器
type TabStateHandler struct {
	tabs *authoring.TabStateManager
}

// NewTabStateHandler 创建标签页状态处理器
func NewTabStateHandler(tabs *authoring.TabStateManager) *TabStateHandler {
	return &TabStateHandler{tabs: tabs}
}

// RestoreTabs 恢复标签页状态
// @Summary 恢复当前会话的标签页状态
// @Description 已删除章节会被剔除；缓存缺失时回退为按序号打开全部章节
// @Tags Tabs
// @Produce json
// @Param bid path string true "书籍 ID"
// @Success 200 {object} dto.Response[dto.TabStateResponse]
// @Router /v1/books/{bid}/tabs [get]
func (h *TabStateHandler) RestoreTabs(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := dto.BindBookID(c)
	sessionID := dto.BindSessionID(c)

	state, err := h.tabs.Restore(ctx, bookID, sessionID)
	if err != nil {
		respondError(c, ctx, "restore tab state", err)
		return
	}

	dto.Success(c, dto.ToTabStateResponse(state))
}

// MutateTabs 变更标签页状态
// @Summary 打开、关闭或重排标签页
// @Description reorder 的新顺序必须是既有标签集合的全排列，否则拒绝并保持原状
// @Tags Tabs
// @Accept json
// @Produce json
// @Param bid path string true "书籍 ID"
// @Param body body dto.MutateTabStateRequest true "变更操作"
// @Success 200 {object} dto.Response[dto.TabStateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/books/{bid}/tabs [put]
func (h *TabStateHandler) MutateTabs(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := dto.BindBookID(c)
	sessionID := dto.BindSessionID(c)

	var req dto.MutateTabStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	var state *entity.TabState
	var err error
	switch req.Action {
	case dto.TabActionOpen:
		if req.ChapterID == "" {
			dto.BadRequest(c, "chapter_id is required for open")
			return
		}
		state, err = h.tabs.OpenChapter(ctx, bookID, sessionID, req.ChapterID)
	case dto.TabActionClose:
		if req.ChapterID == "" {
			dto.BadRequest(c, "chapter_id is required for close")
			return
		}
		state, err = h.tabs.CloseChapter(ctx, bookID, sessionID, req.ChapterID)
	case dto.TabActionReorder:
		state, err = h.tabs.Reorder(ctx, bookID, sessionID, req.TabOrder)
	default:
		dto.BadRequest(c, "unknown tab action: "+req.Action)
		return
	}
	if err != nil {
		respondError(c, ctx, "mutate tab state", err)
		return
	}

	dto.Success(c, dto.ToTabStateResponse(state))
}
