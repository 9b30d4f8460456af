// Package admin implements privileged platform controls and the user
// profile store that backs the admin capability check.
package admin

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Profile is a platform user account.
type Profile struct {
	ID        string
	Email     string
	IsAdmin   bool
	CreatedAt time.Time
}

// UserRepository handles profile persistence.
type UserRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sql.DB, log zerolog.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: log.With().Str("repo", "users").Logger(),
	}
}

// Get returns the profile for id, or nil if none exists.
func (r *UserRepository) Get(id string) (*Profile, error) {
	var p Profile
	var createdAt int64
	err := r.db.QueryRow(`
		SELECT id, email, is_admin, created_at FROM profiles WHERE id = ?
	`, id).Scan(&p.ID, &p.Email, &p.IsAdmin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

// Ensure creates the profile if it does not exist yet. Existing rows keep
// their email and admin flag.
func (r *UserRepository) Ensure(id, email string) error {
	_, err := r.db.Exec(`
		INSERT INTO profiles (id, email, is_admin, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, email, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to ensure profile: %w", err)
	}
	return nil
}

// SetAdmin grants or revokes the admin capability.
// Returns false when no such profile exists.
func (r *UserRepository) SetAdmin(id string, isAdmin bool) (bool, error) {
	res, err := r.db.Exec(`UPDATE profiles SET is_admin = ? WHERE id = ?`, isAdmin, id)
	if err != nil {
		return false, fmt.Errorf("failed to set admin flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check admin update: %w", err)
	}
	return affected > 0, nil
}

// Count returns the number of registered profiles.
func (r *UserRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}

// List returns all profiles, oldest first.
func (r *UserRepository) List() ([]Profile, error) {
	rows, err := r.db.Query(`
		SELECT id, email, is_admin, created_at FROM profiles ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Email, &p.IsAdmin, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
