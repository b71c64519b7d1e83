package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrSecretNotFound = errors.New("secret not found")

// GetSecret returns the stored credential for name.
func (s *Store) GetSecret(ctx context.Context, name string) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM secrets WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get secret: %w", err)
	}
	return value, nil
}

// SetSecret stores or replaces the credential for name. The value is treated
// as an opaque string.
func (s *Store) SetSecret(ctx context.Context, name, value string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO secrets (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, name, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set secret: %w", err)
	}
	return nil
}

// DeleteSecret removes the credential for name. Deleting an absent secret is
// not an error.
func (s *Store) DeleteSecret(ctx context.Context, name string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM secrets WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}
