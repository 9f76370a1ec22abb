package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := models.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: "writer@example.com",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestStaticTokenSource(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		token     string
		wantErr   bool
		wantToken bool
	}{
		{"valid jwt", signedToken(t, now.Add(time.Hour)), false, true},
		{"expired jwt", signedToken(t, now.Add(-time.Minute)), true, false},
		{"opaque token", "sk-opaque-123", false, true},
		{"missing token", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewStaticTokenSource(tt.token, testLogger())
			src.now = func() time.Time { return now }

			got, err := src.Token(context.Background())
			if tt.wantErr {
				if !errors.Is(err, domain.ErrUnauthorized) {
					t.Fatalf("expected unauthorized, got %v", err)
				}
				if !IsUnauthorized(err) {
					t.Error("IsUnauthorized should match")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantToken && got != tt.token {
				t.Errorf("token = %q, want %q", got, tt.token)
			}
		})
	}
}

func TestStaticTokenSource_StripsBearerPrefix(t *testing.T) {
	src := NewStaticTokenSource("Bearer abc", testLogger())
	got, err := src.Token(context.Background())
	if err != nil || got != "abc" {
		t.Fatalf("Token() = %q, %v", got, err)
	}
}

func TestStaticTokenSource_Claims(t *testing.T) {
	src := NewStaticTokenSource(signedToken(t, time.Now().Add(time.Hour)), testLogger())
	claims, ok := src.Claims()
	if !ok {
		t.Fatal("expected claims")
	}
	if claims.GetUserID() != "user-1" || claims.Email != "writer@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}
