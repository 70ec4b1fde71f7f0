package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/api/shared"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/redact"
)

// AccessTokenQueryParam carries the bearer token on WebSocket upgrades,
// where browsers cannot set an Authorization header.
const AccessTokenQueryParam = "access_token"

// clockSkew is tolerated when validating time claims.
const clockSkew = 30 * time.Second

// Token verification errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token is expired")
)

// AuthMiddleware verifies HS256 bearer tokens issued by the platform's
// identity service. The token subject is the principal that owns jobs.
type AuthMiddleware struct {
	signingKey []byte
	logger     *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware for the shared secret.
func NewAuthMiddleware(secret string, logger *slog.Logger) *AuthMiddleware {
	if secret == "" {
		panic("jwt secret cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{
		signingKey: []byte(secret),
		logger:     logger.With(slog.String("component", "auth_middleware")),
	}
}

// Authenticate validates the bearer token and adds the principal to the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		ownerID, err := m.ParseToken(token)
		if err != nil {
			log := logger.FromContextOrDefault(r.Context(), m.logger)
			switch {
			case errors.Is(err, ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, ErrInvalidToken):
				log.Debug("rejected bearer token", slog.String("error", redact.Error(err)))
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				log.Error("failed to validate token", slog.String("error", redact.Error(err)))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithOwnerID(r.Context(), ownerID)))
	})
}

// ParseToken verifies token and returns its subject.
func (m *AuthMiddleware) ParseToken(token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrExpiredToken
		}
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil || ownerID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a principal id", ErrInvalidToken)
	}
	return ownerID, nil
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", false
		}
		return token, true
	}

	if isWebSocketUpgrade(r) {
		if token := r.URL.Query().Get(AccessTokenQueryParam); token != "" {
			return token, true
		}
	}
	return "", false
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
