package transport

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wirebridge/pkg/wirebridge"
)

// accessClaims is the subset of the access token the client reads. Signature
// verification is the server's job; the client only extracts its own identity
// from a token the server already vouched for by accepting the connection.
type accessClaims struct {
	UserID          string `json:"user_id"`
	DisplayName     string `json:"name"`
	Role            string `json:"role"`
	Status          string `json:"status"`
	MediaPermission bool   `json:"media_permission"`
	jwt.RegisteredClaims
}

// IdentityFromToken derives the current user from an access token without
// verifying its signature. Expired tokens are rejected so a session is never
// started that the server would immediately revoke.
func IdentityFromToken(token string, now time.Time) (wirebridge.User, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return wirebridge.User{}, fmt.Errorf("parse access token: %w", err)
	}

	if claims.UserID == "" {
		return wirebridge.User{}, fmt.Errorf("parse access token: missing user_id claim")
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return wirebridge.User{}, fmt.Errorf("parse access token: token expired at %s", claims.ExpiresAt.Time.Format(time.RFC3339))
	}

	role := wirebridge.Role(claims.Role)
	if role == "" {
		role = wirebridge.RoleCustomer
	}
	status := wirebridge.UserStatus(claims.Status)
	if status == "" {
		status = wirebridge.UserStatusActive
	}

	return wirebridge.User{
		ID:              claims.UserID,
		DisplayName:     claims.DisplayName,
		Role:            role,
		Status:          status,
		MediaPermission: claims.MediaPermission,
	}, nil
}
