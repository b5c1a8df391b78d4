package services

import (
	"context"
	"errors"
	"strings"

	"github.com/tommyfx/storefront/app/repositories"
	"github.com/tommyfx/storefront/pkg/auth"
)

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("services: invalid credentials")

// Auth signs profiles in.
type Auth struct {
	profiles *repositories.ProfileRepository
}

func NewAuth(profiles *repositories.ProfileRepository) *Auth {
	return &Auth{profiles: profiles}
}

// Login checks email and password and returns an access token.
func (s *Auth) Login(ctx context.Context, email, password string) (string, auth.Identity, error) {
	p, err := s.profiles.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repositories.ErrNotFound) {
		return "", auth.Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", auth.Identity{}, err
	}
	if !auth.CheckPassword(p.PasswordHash, password) {
		return "", auth.Identity{}, ErrInvalidCredentials
	}

	id := auth.Identity{ID: p.ID, Email: p.Email, Role: p.Role}
	token, err := auth.GenerateToken(id)
	if err != nil {
		return "", auth.Identity{}, err
	}
	return token, id, nil
}
