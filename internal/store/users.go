package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"careportal/internal/database"
	"careportal/internal/model"
)

// CreateUser inserts a user. ID and CreatedAt are assigned by the store.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	u.ID = uuid.NewString()
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = s.Now()

	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO users (id, name, email, role, created_at) VALUES (?, ?, ?, ?, ?)"),
		u.ID, u.Name, u.Email, string(u.Role), u.CreatedAt)
	if database.IsUniqueViolation(err) {
		return model.User{}, fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := s.db.QueryRowContext(ctx,
		s.q("SELECT id, name, email, role, created_at FROM users WHERE id = ?"), id,
	).Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("select user: %w", err)
	}
	u.Role = model.Role(role)
	return u, nil
}

// GetUsers fetches the users with the given ids. Unknown ids are absent from the result.
func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]model.User, error) {
	users := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT id, name, email, role, created_at FROM users WHERE id IN ("+placeholders(len(ids))+")"),
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u    model.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = model.Role(role)
		users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
