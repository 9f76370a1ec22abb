package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
)

// StaticTokenSource serves a single access token.
// Signatures are verified by the server; the client only checks expiry so an
// expired session reports as unauthorized without a round trip.
type StaticTokenSource struct {
	token  string
	claims *models.SessionClaims // nil for opaque tokens
	now    func() time.Time
	logger *slog.Logger
}

// NewStaticTokenSource inspects token once. Tokens that are not JWTs are
// passed through as opaque bearer strings.
func NewStaticTokenSource(token string, logger *slog.Logger) *StaticTokenSource {
	if logger == nil {
		logger = slog.Default()
	}
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	s := &StaticTokenSource{token: token, now: time.Now, logger: logger}
	if token == "" {
		return s
	}

	claims := &models.SessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logger.Debug("token is not a JWT, using as opaque bearer", "error", err)
		return s
	}
	s.claims = claims
	logger.Debug("session token loaded",
		"user_id", claims.GetUserID(),
		"email", claims.Email,
	)
	return s
}

// Token returns the bearer token, or an UnauthorizedError when it is missing
// or past its exp claim
func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", &domain.UnauthorizedError{Message: "no access token configured"}
	}
	if s.claims == nil {
		return s.token, nil
	}

	exp, err := s.claims.GetExpirationTime()
	if err != nil {
		return "", &domain.UnauthorizedError{Message: "access token has an invalid exp claim"}
	}
	if exp != nil && !s.now().Before(exp.Time) {
		s.logger.Warn("access token expired", "expired_at", exp.Time)
		return "", &domain.UnauthorizedError{Message: "access token expired"}
	}
	return s.token, nil
}

// Claims returns the parsed claims, if the token is a JWT
func (s *StaticTokenSource) Claims() (*models.SessionClaims, bool) {
	return s.claims, s.claims != nil
}

// IsUnauthorized reports whether err means the session must be renewed
func IsUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}
