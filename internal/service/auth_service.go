package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/models"
)

// AuthService handles registration and login, issuing session tokens.
type AuthService struct {
	authenticator auth.Authenticator
	tokens        *auth.JWTManager
	users         auth.UserStorage
}

// NewAuthService creates a new AuthService.
func NewAuthService(authenticator auth.Authenticator, tokens *auth.JWTManager, users auth.UserStorage) *AuthService {
	return &AuthService{authenticator: authenticator, tokens: tokens, users: users}
}

// Session is an authenticated user with their bearer token.
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Register creates a new user account and returns a session for it.
func (s *AuthService) Register(ctx context.Context, email, fullName, password string) (*Session, error) {
	if email == "" {
		return nil, BadRequest("email is required")
	}

	user, err := s.authenticator.Register(ctx, email, fullName, password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrEmailExists):
		return nil, BadRequest("%s", err)
	default:
		slog.Error("Register failed", "email", email, "error", err)
		return nil, Internal(err)
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, Internal(err)
	}

	slog.Info("User registered", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}

// Login authenticates an existing user and returns a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, Unauthorized("invalid email or password")
		}
		return nil, Internal(err)
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, Internal(err)
	}

	slog.Info("User logged in", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}

// GetUser retrieves a user profile by id.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, Internal(err)
	}
	if user == nil {
		return nil, NotFound("user %s not found", userID)
	}
	return user, nil
}
