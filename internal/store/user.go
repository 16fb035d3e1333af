package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/examhall/internal/model"
)

const userColumns = `id, public_id, name, email, password_hash, role, class_name, created_at`

// CreateUser inserts a new user with a generated ID and public ID.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now()
	if u.Role != model.UserRoleStudent {
		u.ClassName = ""
	}

	// Public IDs are short; retry on the rare collision.
	for range 5 {
		u.PublicID = generatePublicID(u.Role)
		_, err := s.GetUserByPublicID(ctx, u.PublicID)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return model.User{}, err
		}
		u.PublicID = ""
	}
	if u.PublicID == "" {
		return model.User{}, fmt.Errorf("could not allocate a unique public ID")
	}

	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.PublicID, u.Name, u.Email, u.PasswordHash, u.Role, u.ClassName, u.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create user", "email", u.Email, "error", err)
		return model.User{}, err
	}
	slog.Info("created user", "id", u.ID, "public_id", u.PublicID, "role", u.Role)
	return u, nil
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (model.User, error) {
	return s.getUser(ctx, `id = ?`, id)
}

// GetUserByPublicID returns a user by public ID.
func (s *Store) GetUserByPublicID(ctx context.Context, publicID string) (model.User, error) {
	return s.getUser(ctx, `public_id = ?`, strings.ToUpper(strings.TrimSpace(publicID)))
}

// GetUserByEmail returns a user by email (case-insensitive).
func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.getUser(ctx, `email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (model.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE `+where), arg)
	u, err := scanUser(row)
	return u, notFound(err)
}

// ListUsers returns all users of the given role, or all users if role is empty.
func (s *Store) ListUsers(ctx context.Context, role model.UserRole) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func scanUser(row scanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.PublicID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.ClassName, &u.CreatedAt)
	return u, err
}

// generatePublicID returns "T" or "STD" followed by six digits.
func generatePublicID(role model.UserRole) string {
	prefix := "STD"
	if role == model.UserRoleTeacher {
		prefix = "T"
	}
	return fmt.Sprintf("%s%06d", prefix, 100000+rand.IntN(900000))
}
