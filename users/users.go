// Package users keeps the accounts that own surveys.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/survey-board/model"
)

var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrNotFound      = errors.New("user not found")
)

type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

var validate = validator.New()

// Validate returns validator.ValidationErrors when the registration is malformed.
func (reg Registration) Validate() error {
	return validate.Struct(reg)
}

func Register(ctx context.Context, db *sql.DB, reg Registration) (model.User, error) {
	if err := reg.Validate(); err != nil {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("users.hash_password: %w", err)
	}

	user := model.User{
		ID:        uuid.NewString(),
		Username:  reg.Username,
		CreatedAt: time.Now().UTC(),
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO user (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, hash, user.CreatedAt,
	)
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return model.User{}, ErrUsernameTaken
	}
	if err != nil {
		return model.User{}, fmt.Errorf("db.insert_user: %w", err)
	}
	return user, nil
}

// CheckPassword verifies the credentials and returns the user id.
func CheckPassword(ctx context.Context, db *sql.DB, username, password string) (string, error) {
	var (
		id   string
		hash []byte
	)
	err := db.
		QueryRowContext(ctx, "SELECT id, password_hash FROM user WHERE username = ?", username).
		Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("db.get_user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", err
	}
	return id, nil
}

func IDByUsername(ctx context.Context, db *sql.DB, username string) (string, error) {
	var id string
	err := db.QueryRowContext(ctx, "SELECT id FROM user WHERE username = ?", username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("db.get_user: %w", err)
	}
	return id, nil
}

func Get(ctx context.Context, db *sql.DB, id string) (model.User, error) {
	var user model.User
	err := db.
		QueryRowContext(ctx, "SELECT id, username, created_at FROM user WHERE id = ?", id).
		Scan(&user.ID, &user.Username, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("db.get_user: %w", err)
	}
	return user, nil
}
