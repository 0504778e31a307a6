package auth

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
)

// TokenValidator проверяет токен вызывающего UI-адаптер.
type TokenValidator interface {
	VerifyToken(tokenStr string) error
}

// StaticToken: общий секрет между UI и локальным адаптером.
type StaticToken string

func (s StaticToken) VerifyToken(tokenStr string) error {
	if subtle.ConstantTimeCompare([]byte(StripBearer(tokenStr)), []byte(s)) != 1 {
		return errInvalidToken
	}
	return nil
}

// NewMiddleware защищает командный интерфейс адаптера. nil-валидатор пропускает всех.
func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := v.VerifyToken(authHeader); err != nil {
				logger.Warn("adapter auth failure", zap.String("path", r.URL.Path), zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
