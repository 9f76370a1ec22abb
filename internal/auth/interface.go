package auth

import "context"

// TokenSource supplies the bearer token attached to every API request.
// Implementations return an UnauthorizedError when no usable token exists,
// so callers fail before issuing a request the server would reject.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
