// Package router 注册HTTP路由与中间件
package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"resume-rag-go/internal/api/handler"
)

// RegisterRoutes 注册API路由
// apiKeys非空时除健康检查外全部要求 Authorization: Bearer <key>
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, apiKeys []string) {
	api := h.Group("/api/v1")

	// 健康检查不鉴权，探活组件要能直接访问
	api.GET("/health", resumeHandler.Health)

	protected := api.Group("")
	if len(apiKeys) > 0 {
		protected.Use(newKeyAuthMiddleware(apiKeys))
	}

	protected.POST("/resume/upload", resumeHandler.Upload)
	protected.POST("/resume/structured", resumeHandler.UploadStructured)
	protected.GET("/resume/:uuid", resumeHandler.GetSubmission)
	protected.GET("/resume/:uuid/record", resumeHandler.GetParsedRecord)
	protected.GET("/resume/:uuid/chunks", resumeHandler.GetChunks)
	protected.GET("/resume/:uuid/download", resumeHandler.DownloadOriginal)
	protected.POST("/ask", resumeHandler.Ask)
}

// newKeyAuthMiddleware 基于固定密钥集合的Bearer鉴权
func newKeyAuthMiddleware(apiKeys []string) app.HandlerFunc {
	keySet := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		keySet[k] = struct{}{}
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			_, ok := keySet[key]
			return ok, nil
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "未授权"})
		}),
	)
}
