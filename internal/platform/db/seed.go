package db

import (
	"context"
	"strings"

	"kpieval/internal/domain/auth"
	"kpieval/internal/platform/config"
)

// Seed creates the bootstrap admin account when SEED_ADMIN_EMAIL and
// SEED_ADMIN_PASSWORD are both set. Existing accounts are left alone.
func Seed(ctx context.Context, pool *Pool, cfg config.Config) error {
	email := strings.TrimSpace(cfg.SeedAdminEmail)
	if email == "" || strings.TrimSpace(cfg.SeedAdminPassword) == "" {
		return nil
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE email = $1", email).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
    INSERT INTO users (email, password_hash, is_admin)
    VALUES ($1,$2,true)
  `, email, hash)
	return err
}
