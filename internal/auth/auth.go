package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront-system/internal/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Claims представляет содержимое JWT токена пользователя
type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	IsStaff bool      `json:"is_staff"`
	jwt.RegisteredClaims
}

// GenerateToken выпускает подписанный JWT для пользователя
func GenerateToken(secret []byte, userID uuid.UUID, isStaff bool, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := &Claims{
		UserID:  userID,
		IsStaff: isStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID.String(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	return s, exp, err
}

// ParseToken проверяет подпись и срок действия JWT
func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// VisitorFromRequest определяет посетителя по запросу: JWT из заголовка
// Authorization дает авторизованного пользователя, cookie сессии — гостя.
// Невалидный токен не является ошибкой, посетитель остается гостем.
func VisitorFromRequest(r *http.Request, secret []byte, cookieName string) models.Visitor {
	visitor := models.Visitor{}

	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		visitor.SessionKey = cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if claims, err := ParseToken(secret, tokenStr); err == nil {
			userID := claims.UserID
			visitor.UserID = &userID
			visitor.IsStaff = claims.IsStaff
		}
	}

	return visitor
}

// EnsureSessionKey возвращает ключ сессии посетителя, создавая новый при
// отсутствии, и выставляет cookie. Ключ нужен и авторизованным
// пользователям: по нему сливается гостевая корзина при входе.
func EnsureSessionKey(w http.ResponseWriter, r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	key := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60 * 60 * 24 * 30,
	})
	return key
}
