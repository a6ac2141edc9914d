package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/access-gate-service/internal/auth"
	"github.com/spec-kit/access-gate-service/internal/config"
)

// AuthService authenticates the operator account configured through the
// environment and issues bearer tokens for the management endpoints.
type AuthService struct {
	cfg      config.AuthConfig
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		cfg:      cfg,
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// LoginOperator verifies the configured operator credentials and returns
// a signed bearer token.
func (s *AuthService) LoginOperator(_ context.Context, email, password string) (string, time.Time, error) {
	if s.cfg.OperatorEmail == "" || s.cfg.OperatorPasswordHash == "" {
		return "", time.Time{}, errors.New("operator login not configured")
	}
	if email != s.cfg.OperatorEmail {
		return "", time.Time{}, errors.New("invalid credentials")
	}
	if err := auth.ComparePassword(s.cfg.OperatorPasswordHash, password); err != nil {
		return "", time.Time{}, errors.New("invalid credentials")
	}
	return s.tokenMgr.GenerateToken(email, auth.RoleOperator)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
