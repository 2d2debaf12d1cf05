package server

import (
	"context"
	"net/http"
	"strings"

	"nuvyx/core/auth"
	"nuvyx/logger"
)

type contextKey int

const claimsKey contextKey = iota

// ClaimsFromContext returns the token claims stored by RequireAuth or OptionalAuth.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// userIDFromContext 匿名请求返回空字符串
func userIDFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.UserID
	}
	return ""
}

// corsMiddleware 添加 CORS 头
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken 解析 Authorization 头，缺失时 ok 为 false
func bearerToken(r *http.Request) (token string, present bool, ok bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false, false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", true, false
	}
	return parts[1], true, true
}

// RequireAuth rejects requests without a valid bearer token.
func (h *APIHandler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, present, ok := bearerToken(r)
		if !present {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := h.tokens.ParseToken(token)
		if err != nil {
			logger.Debug("[Auth] token rejected", logger.ErrorField(err))
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise serves the request
// anonymously.
func (h *APIHandler) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _, ok := bearerToken(r)
		if ok {
			if claims, err := h.tokens.ParseToken(token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
			} else {
				logger.Debug("[Auth] ignoring invalid token", logger.ErrorField(err))
			}
		}
		next.ServeHTTP(w, r)
	}
}

// RequireAdmin 在 RequireAuth 之上要求钱包位于 ADMIN_WALLETS
func (h *APIHandler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		if claims == nil || !h.cfg.IsAdminWallet(claims.WalletAddress) {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
