// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"bookforge-ai-api/internal/interfaces/http/dto"
	apperrors "bookforge-ai-api/pkg/errors"
	"bookforge-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// respondError 按错误类型返回响应。
// AppError 携带自身的 HTTP 状态码与业务错误码；其他错误一律 500 并记录日志。
func respondError(c *gin.Context, ctx context.Context, action string, err error) {
	if appErr := apperrors.AsAppError(err); appErr != nil {
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		})
		return
	}
	logger.Error(ctx, "failed to "+action, err)
	dto.InternalError(c, "failed to "+action)
}
