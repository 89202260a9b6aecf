package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"scolapay/internal/domain"
)

type AccessTokenRepository struct {
	db *sql.DB
}

func NewAccessTokenRepository(db *sql.DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// FindByPlainToken resolves a sanctum-style token of the form "<id>|<secret>"
// (or a bare secret). The secret is stored hashed; the join to users supplies
// the school and role the request will act under.
func (r *AccessTokenRepository) FindByPlainToken(ctx context.Context, plainToken string) (*domain.AccessToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, errors.New("empty token")
	}

	var (
		tokenID   *int64
		tokenPart string
	)
	if idx := strings.Index(plainToken, "|"); idx > 0 {
		if id, err := strconv.ParseInt(plainToken[:idx], 10, 64); err == nil {
			tokenID = &id
		}
		tokenPart = plainToken[idx+1:]
	} else {
		tokenPart = plainToken
	}

	sum := sha256.Sum256([]byte(tokenPart))
	hashStr := fmt.Sprintf("%x", sum)

	var tok domain.AccessToken

	if tokenID != nil {
		query := `
			SELECT t.id, t.token, t.user_id, u.school_id, u.role, t.expires_at
			FROM access_tokens t
			JOIN users u ON u.id = t.user_id
			WHERE t.id = $1 AND (t.expires_at IS NULL OR t.expires_at > $2)`

		err := r.db.QueryRowContext(ctx, query, *tokenID, time.Now()).Scan(
			&tok.ID,
			&tok.TokenHash,
			&tok.UserID,
			&tok.SchoolID,
			&tok.Role,
			&tok.ExpiresAt,
		)
		if err == nil && tok.TokenHash == hashStr {
			return &tok, nil
		}
	}

	query := `
		SELECT t.id, t.token, t.user_id, u.school_id, u.role, t.expires_at
		FROM access_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = $1 AND (t.expires_at IS NULL OR t.expires_at > $2)
		ORDER BY t.created_at DESC
		LIMIT 1`

	err := r.db.QueryRowContext(ctx, query, hashStr, time.Now()).Scan(
		&tok.ID,
		&tok.TokenHash,
		&tok.UserID,
		&tok.SchoolID,
		&tok.Role,
		&tok.ExpiresAt,
	)
	if err != nil {
		return nil, errors.New("token not found")
	}
	return &tok, nil
}
