package handlers

import (
	"context"
	"net/http"

	"storefront-system/internal/auth"
	"storefront-system/internal/config"
	"storefront-system/internal/models"
)

type visitorContextKey struct{}

// WithVisitor кладет посетителя в контекст запроса.
func WithVisitor(ctx context.Context, visitor models.Visitor) context.Context {
	return context.WithValue(ctx, visitorContextKey{}, visitor)
}

// VisitorFromContext возвращает посетителя запроса. Без middleware
// идентификации возвращается пустой гость.
func VisitorFromContext(ctx context.Context) models.Visitor {
	if v, ok := ctx.Value(visitorContextKey{}).(models.Visitor); ok {
		return v
	}
	return models.Visitor{}
}

// IdentityMiddleware определяет посетителя каждого запроса: гарантирует
// cookie сессии и разбирает JWT из заголовка Authorization, если он есть.
func IdentityMiddleware(cfg *config.AuthConfig, next http.Handler) http.Handler {
	secret := []byte(cfg.JWTSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionKey := auth.EnsureSessionKey(w, r, cfg.SessionCookie)
		visitor := auth.VisitorFromRequest(r, secret, cfg.SessionCookie)
		visitor.SessionKey = sessionKey

		next.ServeHTTP(w, r.WithContext(WithVisitor(r.Context(), visitor)))
	})
}

// requireStaff отклоняет запрос, если посетитель не сотрудник.
// Возвращает true, когда обработку можно продолжать.
func requireStaff(w http.ResponseWriter, r *http.Request) (models.Visitor, bool) {
	visitor := VisitorFromContext(r.Context())
	if !visitor.IsStaff {
		writeErrorResponse(w, http.StatusForbidden, "staff access required")
		return visitor, false
	}
	return visitor, true
}
