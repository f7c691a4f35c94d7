package server

import (
	"context"
	"net/http"
	"strings"

	"ClipForge/core/auth"
	"ClipForge/logger"
)

type contextKey string

const subjectKey contextKey = "subject"

// AuthMiddleware 校验 Bearer 令牌，secret 为空时不做鉴权
func AuthMiddleware(secret string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if secret == "" {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				logger.Warn("令牌校验失败",
					logger.String("path", r.URL.Path),
					logger.ErrorField(err))
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

// bearerToken 浏览器的 WebSocket 无法设置请求头，允许通过 token 查询参数传递
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.Split(h, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return ""
		}
		return parts[1]
	}
	return r.URL.Query().Get("token")
}

// SubjectFromContext 返回令牌主体
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok
}
