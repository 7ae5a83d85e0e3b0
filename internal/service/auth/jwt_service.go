package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Verifier resolves a bearer token to the user it was issued for.
// Issuing tokens (sign-up, login) happens elsewhere; this service only
// needs to know who is practicing.
type Verifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	Verifier

	// GenerateToken creates a signed JWT access token for the user.
	// Used by operator tooling and tests; there is no login endpoint.
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns the claims containing user information if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated content of an access token.
type Claims struct {
	// UserID is parsed from the sub claim.
	UserID uuid.UUID `json:"sub,omitempty"`

	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
