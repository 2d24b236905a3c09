package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: 7, EmployeeID: 42, IsAdmin: true}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	user := claims.User()
	if user.UserID != 7 || user.EmployeeID != 42 || !user.IsAdmin {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestParseTokenRejectsWrongSecretAndExpired(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: 1}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("other", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}

	expired, err := GenerateToken("secret", Claims{UserID: 1}, -time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", expired); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("ChangeMe123!")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "ChangeMe123!"); err != nil {
		t.Fatalf("expected password to match: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch")
	}
}

type fakeStore struct {
	user      AuthUser
	err       error
	lastLogin int64
}

func (f *fakeStore) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	return f.user, f.err
}

func (f *fakeStore) UpdateLastLogin(ctx context.Context, userID int64) error {
	f.lastLogin = userID
	return nil
}

func TestLogin(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	store := &fakeStore{user: AuthUser{ID: 3, EmployeeID: 30, Password: hash}}
	svc := NewService(store, "secret", time.Hour)

	result, err := svc.Login(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.User.UserID != 3 || result.User.EmployeeID != 30 || result.User.IsAdmin {
		t.Fatalf("unexpected user: %+v", result.User)
	}
	if store.lastLogin != 3 {
		t.Fatalf("expected last login update for user 3, got %d", store.lastLogin)
	}

	if _, err := svc.Login(context.Background(), "a@example.com", "bad"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	store.err = errors.New("no rows")
	if _, err := svc.Login(context.Background(), "b@example.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}
