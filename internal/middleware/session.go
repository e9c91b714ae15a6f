// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/roomstudio/internal/auth"
)

// sessionCookieName はClerkのフロントエンドSDKが設定するセッションCookieの名前。
const sessionCookieName = "__session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにClerkユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("clerk_user_id")

// NewSessionMiddleware はClerkセッショントークンを検証するミドルウェアを返す。
// トークンはAuthorization: Bearerヘッダーまたは__session Cookieから読み取る。
// 検証済みのClerkユーザーID（subクレーム）をリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(verifier auth.TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractSessionToken(r)
			if token == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			clerkUserID, err := verifier.Verify(token)
			if err != nil {
				slog.Warn("session token verification failed",
					slog.String("error", err.Error()),
				)
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, clerkUserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractSessionToken はリクエストからセッショントークンを取り出す。
// Authorizationヘッダーを優先し、なければCookieを参照する。
func extractSessionToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if token, ok := strings.CutPrefix(authz, "Bearer "); ok && token != "" {
			return token
		}
		return ""
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// UserIDFromContext はリクエストコンテキストからClerkユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにClerkユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
