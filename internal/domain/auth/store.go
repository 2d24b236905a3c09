package auth

import (
	"context"

	"kpieval/internal/platform/querier"
)

const UserStatusActive = "active"

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID         int64
	EmployeeID int64
	IsAdmin    bool
	Password   string
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT id, COALESCE(employee_id, 0), is_admin, password_hash
    FROM users
    WHERE lower(email) = lower($1) AND status = $2
  `, email, UserStatusActive).Scan(&out.ID, &out.EmployeeID, &out.IsAdmin, &out.Password)
	return out, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID int64) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}
