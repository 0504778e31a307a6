package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var placeholderTokens = map[string]struct{}{
	"":          {},
	"changeme":  {},
	"change-me": {},
	"undefined": {},
	"null":      {},
	"none":      {},
	"token":     {},
}

// StripBearer убирает префикс схемы и пробелы.
func StripBearer(header string) string {
	v := strings.TrimSpace(header)
	if strings.EqualFold(v, "bearer") {
		return ""
	}
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		v = v[7:]
	}
	return strings.TrimSpace(v)
}

// IsPlaceholder: пустой или шаблонный токен ("changeme", "${API_KEY}"), который нельзя отправлять.
func IsPlaceholder(token string) bool {
	t := strings.ToLower(StripBearer(token))
	if _, ok := placeholderTokens[t]; ok {
		return true
	}
	return strings.HasPrefix(t, "${") || (strings.HasPrefix(t, "<") && strings.HasSuffix(t, ">"))
}

// IsExpiredJWT проверяет exp без проверки подписи: подпись проверяет сервер,
// клиенту достаточно не слать заведомо просроченный токен. Не-JWT токены не считаются просроченными.
func IsExpiredJWT(token string, now time.Time) bool {
	raw := StripBearer(token)
	if strings.Count(raw, ".") != 2 {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
