package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	UpdateLastLogin(ctx context.Context, userID int64) error
}

type Service struct {
	store    StoreAPI
	secret   string
	tokenTTL time.Duration
}

func NewService(store StoreAPI, secret string, tokenTTL time.Duration) *Service {
	return &Service{store: store, secret: secret, tokenTTL: tokenTTL}
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserContext `json:"user"`
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	user, err := s.store.FindActiveUserByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	claims := Claims{UserID: user.ID, EmployeeID: user.EmployeeID, IsAdmin: user.IsAdmin}
	token, err := GenerateToken(s.secret, claims, s.tokenTTL)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last login failed", "userId", user.ID, "err", err)
	}
	return LoginResult{
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokenTTL),
		User:      claims.User(),
	}, nil
}
