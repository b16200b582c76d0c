// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Role 访问角色
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Permission 权限类型
type Permission string

const (
	PermBookRead      Permission = "book:read"
	PermBookWrite     Permission = "book:write"
	PermDraftGenerate Permission = "draft:generate"
	PermChapterPub    Permission = "chapter:publish"
)

// rolePermissions 角色-权限映射表
var rolePermissions = map[Role][]Permission{
	RoleOwner:  {PermBookRead, PermBookWrite, PermDraftGenerate, PermChapterPub},
	RoleEditor: {PermBookRead, PermBookWrite, PermDraftGenerate},
	RoleViewer: {PermBookRead},
}

// HasPermission 检查角色是否具有指定权限
func HasPermission(role Role, perm Permission) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// RequirePermission 权限检查中间件
// 检查当前用户是否具有指定权限，否则返回 403
func RequirePermission(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr := c.GetString("role")
		if roleStr == "" {
			abortForbidden(c, "missing role in context")
			return
		}

		if !HasPermission(Role(roleStr), perm) {
			abortForbidden(c, "permission denied")
			return
		}

		c.Next()
	}
}

// RequireRole 角色检查中间件
func RequireRole(roles ...Role) gin.HandlerFunc {
	roleSet := make(map[Role]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		roleStr := c.GetString("role")
		if roleStr == "" {
			abortForbidden(c, "missing role in context")
			return
		}

		if !roleSet[Role(roleStr)] {
			abortForbidden(c, "role not allowed")
			return
		}

		c.Next()
	}
}

// abortForbidden 终止请求并返回 403
func abortForbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":     403,
		"message":  msg,
		"trace_id": c.GetString("trace_id"),
	})
}
