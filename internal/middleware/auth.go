// Package middleware содержит HTTP middleware для сервиса aquabill.
package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/model"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	roleKey   contextKey = "role"
	claimsKey contextKey = "claims"
)

const (
	authCookieName    = "auth_token"
	defaultSessionTTL = 72 * time.Hour
)

// SessionStore хранит отозванные сессии.
type SessionStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RoleSource возвращает актуальную роль пользователя из хранилища.
type RoleSource interface {
	CurrentRole(ctx context.Context, userID int64) (model.Role, error)
}

// Claims описывает содержимое токена сессии.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware выполняет проверку сессии пользователя по JWT в cookie.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
	sessions  SessionStore
	roles     RoleSource
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthMiddleware создаёт AuthMiddleware. При пустом секрете генерируется случайный ключ,
// и сессии не переживают перезапуск процесса. Если roles задан, RequireRole проверяет
// актуальную роль пользователя, а не роль, записанную в токене при входе.
func NewAuthMiddleware(secret string, ttl time.Duration, sessions SessionStore, roles RoleSource, logger *zap.Logger) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte(uuid.NewString())
		}
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       ttl,
		sessions:  sessions,
		roles:     roles,
		logger:    logger,
		now:       time.Now,
	}
}

// Middleware проверяет токен сессии и добавляет идентификатор и роль пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			a.deny(w, r, http.StatusUnauthorized, "missing session cookie")
			return
		}

		claims, userID, err := a.parseToken(cookie.Value)
		if err != nil {
			a.deny(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		if a.sessions != nil {
			revoked, err := a.sessions.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				a.logger.Error("check session revocation error", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if revoked {
				a.deny(w, r, http.StatusUnauthorized, "session revoked")
				return
			}
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, roleKey, claims.Role)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole пропускает только пользователей с указанной ролью, остальным отвечает 403.
func (a *AuthMiddleware) RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := GetRoleFromContext(r.Context())

			if userID, hasUser := GetUserIDFromContext(r.Context()); hasUser && a.roles != nil {
				current, err := a.roles.CurrentRole(r.Context(), userID)
				if err != nil {
					a.logger.Error("load current role error", zap.Error(err), zap.Int64("userID", userID))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				got, ok = current, true
			}

			if !ok || got != role {
				a.deny(w, r, http.StatusForbidden, "role "+string(role)+" required")
				return
			}

			ctx := context.WithValue(r.Context(), roleKey, got)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *AuthMiddleware) deny(w http.ResponseWriter, r *http.Request, status int, reason string) {
	a.logger.Warn("access denied",
		zap.Int("status", status),
		zap.String("reason", reason),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	http.Error(w, http.StatusText(status), status)
}

// SetAuthCookie выпускает токен сессии для пользователя и устанавливает его в cookie.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, profile model.Profile) (string, error) {
	now := a.now()
	expires := now.Add(a.ttl)

	claims := Claims{
		Role: profile.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(profile.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return token, nil
}

// ClearAuthCookie удаляет cookie сессии.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Revoke отзывает сессию текущего запроса до истечения срока её действия.
func (a *AuthMiddleware) Revoke(ctx context.Context) error {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	if !ok || a.sessions == nil {
		return nil
	}

	ttl := time.Duration(0)
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(a.now())
	}
	return a.sessions.Revoke(ctx, claims.ID, ttl)
}

func (a *AuthMiddleware) parseToken(raw string) (*Claims, int64, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return a.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("parse session token: %w", err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, 0, errors.New("invalid session subject")
	}
	if claims.ID == "" {
		return nil, 0, errors.New("session id is missing")
	}

	return claims, userID, nil
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// GetRoleFromContext извлекает роль пользователя из контекста запроса.
func GetRoleFromContext(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(roleKey).(model.Role)
	return role, ok
}
