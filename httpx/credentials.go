package httpx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/oauth"

	"github.com/mbolis/survey-board/config"
	"github.com/mbolis/survey-board/users"
)

// ClaimUserID is the token claim carrying the owner id of the requester.
const ClaimUserID = "user_id"

const refreshTokenTTL = 8760 * time.Hour

type credentialsVerifier struct {
	db *sql.DB
}

func CredentialsVerifier(db *sql.DB) oauth.CredentialsVerifier {
	return &credentialsVerifier{db}
}

func NewBearerServer(db *sql.DB, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(db), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	_, err := users.CheckPassword(requestContext(r), cs.db, username, password)
	return err
}
func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	_, err := cs.db.Exec(
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)",
		credential,
		tokenID,
		refreshTokenID,
		time.Now().UTC().Add(refreshTokenTTL),
	)
	return err
}
// RevokeTokens forgets every refresh token issued to username. Access tokens
// already handed out stay valid until they expire.
func RevokeTokens(ctx context.Context, db *sql.DB, username string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM token WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("db.delete_tokens: %w", err)
	}
	return nil
}

func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	var ok bool
	cs.db.
		QueryRow(`
			DELETE FROM token
			WHERE username = ?
				AND token_id = ?
				AND refresh_token_id = ?
				AND expiration > ?
			RETURNING 1`,
			credential,
			tokenID,
			refreshTokenID,
			time.Now().UTC(),
		).
		Scan(&ok)
	if !ok {
		return errors.New("could not refresh")
	}
	return nil
}
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	id, err := users.IDByUsername(requestContext(r), cs.db, credential)
	if err != nil {
		return nil, err
	}
	return map[string]string{ClaimUserID: id}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}

func requestContext(r *http.Request) context.Context {
	if r == nil {
		return context.Background()
	}
	return r.Context()
}
