// Package session derives the signed-in user's identity and capabilities
// from the backend-issued access token.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/agora/internal/model"
)

var (
	// ErrForbidden is returned by Guard when the session lacks a capability.
	ErrForbidden = errors.New("forbidden")

	// ErrNoToken is returned by FromToken for an empty token.
	ErrNoToken = errors.New("no access token")
)

// claims mirrors the payload the backend signs. Some deployments send a
// single role, others a list.
type claims struct {
	jwt.RegisteredClaims
	ID     string   `json:"id"`
	UserID string   `json:"userId"`
	Email  string   `json:"email"`
	Role   string   `json:"role"`
	Roles  []string `json:"roles"`
}

// FromToken decodes the claims of a bearer token into a Session. The
// signature is not verified: the backend verifies every request, the
// client only uses the claims to pick views.
func FromToken(token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, ErrNoToken
	}

	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return model.Session{}, fmt.Errorf("decoding access token: %w", err)
	}

	s := model.Session{
		UserID: firstNonEmpty(c.UserID, c.ID, c.Subject),
		Email:  c.Email,
	}
	if s.UserID == "" {
		return model.Session{}, fmt.Errorf("decoding access token: no user id claim")
	}

	for _, raw := range append([]string{c.Role}, c.Roles...) {
		if r, ok := ParseRole(raw); ok && !s.HasRole(r) {
			s.Roles = append(s.Roles, r)
		}
	}
	if len(s.Roles) == 0 {
		s.Roles = []model.Role{model.RoleMember}
	}

	return s, nil
}

// ParseRole maps a claim value onto the closed role set, ignoring case.
func ParseRole(s string) (model.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return model.RoleAdmin, true
	case "contributor":
		return model.RoleContributor, true
	case "member", "user":
		return model.RoleMember, true
	default:
		return "", false
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
