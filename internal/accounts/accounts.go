// Package accounts is the account directory: usernames, password hashes and
// roles kept in SQLite.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/izmenjava/internal/db"
	"github.com/erazemk/izmenjava/internal/model"
)

// DatabaseFile is the name of the account database inside the data directory.
const DatabaseFile = "accounts.db"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
)

// Directory looks up and registers accounts.
type Directory struct {
	DB *sql.DB
}

// Open opens the account database in dir, creating the schema if needed.
func Open(dir string) (*Directory, error) {
	database, err := db.Open(filepath.Join(dir, DatabaseFile))
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, err
	}
	return &Directory{DB: database}, nil
}

// Close closes the account database.
func (d *Directory) Close() error {
	return d.DB.Close()
}

// Register creates an account with a bcrypt hash of password.
func (d *Directory) Register(ctx context.Context, username, password, role string) (*model.User, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(password); err != nil {
		return nil, err
	}
	if !model.ValidRole(role) {
		return nil, model.ErrInvalidRole
	}

	existing, err := d.userByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := d.createUser(ctx, username, string(hash), role)
	if err != nil {
		return nil, err
	}

	slog.Info("account registered", "user", user.Username, "role", user.Role)
	return user, nil
}

// Authenticate checks a username and password and returns the account.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := d.userByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login failed", "user", username)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// User returns an account by username, or nil if there is none.
func (d *Directory) User(ctx context.Context, username string) (*model.User, error) {
	return d.userByUsername(ctx, username)
}

func (d *Directory) createUser(ctx context.Context, username, passwordHash, role string) (*model.User, error) {
	result, err := d.DB.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if err != nil {
		// Lost a race with another registration of the same name.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	u := &model.User{}
	err = d.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

func (d *Directory) userByUsername(ctx context.Context, username string) (*model.User, error) {
	u := &model.User{}
	err := d.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}
