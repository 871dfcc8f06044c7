package service

import (
	"errors"
	"fmt"

	"dealroom/internal/auth"
	"dealroom/internal/models"
	"dealroom/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles login and token refresh
type AuthService struct {
	userRepo     *repository.UserRepository
	authSvc      *auth.Service
	auditService *AuditService
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repository.UserRepository, authSvc *auth.Service, auditService *AuditService) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		authSvc:      authSvc,
		auditService: auditService,
	}
}

// TokenPair carries a fresh access and refresh token
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login verifies credentials and returns a token pair
func (s *AuthService) Login(email, password string) (*models.User, *TokenPair, error) {
	user, err := s.userRepo.GetByEmail(email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if !user.IsActive {
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.authSvc.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	s.auditService.Log(user.ID, "login", "auth", fmt.Sprintf("User %s logged in", user.Email))

	return user, pair, nil
}

// Refresh validates a refresh token and returns a fresh token pair
func (s *AuthService) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.authSvc.ValidateToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

func (s *AuthService) issueTokens(user *models.User) (*TokenPair, error) {
	accessToken, err := s.authSvc.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.authSvc.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
