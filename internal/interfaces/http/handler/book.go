package handler

import (
	"context"
	"encoding/json"
	"time"

	"bookforge-ai-api/internal/application/authoring"
	"bookforge-ai-api/internal/domain/entity"
	"bookforge-ai-api/internal/domain/repository"
	"bookforge-ai-api/internal/interfaces/http/dto"
	"bookforge-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// bookCacheTTL 书籍详情读缓存时长，写路径主动失效
const bookCacheTTL = 5 * time.Minute

// BookCache 书籍详情读缓存端口
type BookCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
	InvalidateBook(ctx context.Context, bookID string) error
}

// BookHandler 书籍处理器
type BookHandler struct {
	bookRepo     repository.BookRepository
	orchestrator *authoring.ContentPipelineOrchestrator
	cache        BookCache
}

// NewBookHandler 创建书籍处理器
func NewBookHandler(bookRepo repository.BookRepository, orchestrator *authoring.ContentPipelineOrchestrator, cache BookCache) *BookHandler {
	return &BookHandler{
		bookRepo:     bookRepo,
		orchestrator: orchestrator,
		cache:        cache,
	}
}

// ListBooks 获取书籍列表
// @Summary 获取书籍列表
// @Description 获取当前用户的书籍列表
// @Tags Books
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.BookListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := dto.BindUserID(c)

	pageReq := dto.BindPage(c)

	result, err := h.bookRepo.ListByOwner(ctx, ownerID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list books", err)
		dto.InternalError(c, "failed to list books")
		return
	}

	resp := dto.ToBookListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// CreateBook 创建书籍
// @Summary 创建书籍
// @Description 创建新书籍，初始状态为 drafting
// @Tags Books
// @Accept json
// @Produce json
// @Param body body dto.CreateBookRequest true "书籍信息"
// @Success 201 {object} dto.Response[dto.BookResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := dto.BindUserID(c)

	var req dto.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	book := req.ToBookEntity(ownerID)
	if err := h.bookRepo.Create(ctx, book); err != nil {
		respondError(c, ctx, "create book", err)
		return
	}

	dto.Created(c, dto.ToBookResponse(book))
}

// GetBook 获取书籍详情
// @Summary 获取书籍详情
// @Tags Books
// @Produce json
// @Param bid path string true "书籍 ID"
// @Success 200 {object} dto.Response[dto.BookResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/books/{bid} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := dto.BindBookID(c)

	book, err := h.loadBook(ctx, bookID)
	if err != nil {
		respondError(c, ctx, "get book", err)
		return
	}
	if book == nil {
		dto.NotFound(c, "book not found")
		return
	}

	dto.Success(c, dto.ToBookResponse(book))
}

// loadBook 读书籍详情，命中缓存时跳过数据库
func (h *BookHandler) loadBook(ctx context.Context, bookID string) (*entity.Book, error) {
	if h.cache == nil {
		return h.bookRepo.GetByID(ctx, bookID)
	}

	raw, err := h.cache.GetOrLoadSafe(ctx, "book:"+bookID, bookCacheTTL, func() (interface{}, error) {
		return h.bookRepo.GetByID(ctx, bookID)
	})
	if err != nil {
		// 缓存故障时退化为直读
		return h.bookRepo.GetByID(ctx, bookID)
	}

	var book entity.Book
	if err := json.Unmarshal(raw, &book); err != nil {
		return h.bookRepo.GetByID(ctx, bookID)
	}
	if book.ID == "" {
		return nil, nil
	}
	return &book, nil
}

// UpdateBook 更新书籍
// @Summary 更新书籍标题或简介
// @Tags Books
// @Accept json
// @Produce json
// @Param bid path string true "书籍 ID"
// @Param body body dto.UpdateBookRequest true "更新字段"
// @Success 200 {object} dto.Response[dto.BookResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/books/{bid} [put]
func (h *BookHandler) UpdateBook(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := dto.BindBookID(c)

	var req dto.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	book, err := h.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		respondError(c, ctx, "get book", err)
		return
	}
	if book == nil {
		dto.NotFound(c, "book not found")
		return
	}

	req.Apply(book)
	if err := h.bookRepo.Update(ctx, book); err != nil {
		respondError(c, ctx, "update book", err)
		return
	}
	if h.cache != nil {
		_ = h.cache.InvalidateBook(ctx, bookID)
	}

	dto.Success(c, dto.ToBookResponse(book))
}

// GenerateTOC 生成书籍目录
// @Summary 基于书籍简介生成章节目录
// @Description 简介信息充分时物化章节并返回；不充分时返回澄清问题，不产生章节
// @Tags Books
// @Accept json
// @Produce json
// @Param bid path string true "书籍 ID"
// @Param body body dto.GenerateTOCRequest true "生成参数"
// @Success 200 {object} dto.Response[dto.TOCResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/books/{bid}/toc [post]
func (h *BookHandler) GenerateTOC(c *gin.Context) {
	ctx := c.Request.Context()
	bookID := dto.BindBookID(c)

	var req dto.GenerateTOCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.orchestrator.GenerateTOC(ctx, bookID, req.TargetChapterCount)
	if err != nil {
		respondError(c, ctx, "generate toc", err)
		return
	}
	// 目录物化会推进书籍状态，读缓存随之失效
	if h.cache != nil {
		_ = h.cache.InvalidateBook(ctx, bookID)
	}

	resp := dto.TOCResponse{
		ClarifyingQuestions: result.ClarifyingQuestions,
		NeedsClarification:  len(result.ClarifyingQuestions) > 0,
	}
	if len(result.Chapters) > 0 {
		resp.Chapters = dto.ToChapterListResponse(result.Chapters).Chapters
	}
	dto.Success(c, resp)
}
