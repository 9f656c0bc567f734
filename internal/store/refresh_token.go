// Package store persists auth session state (refresh tokens) in the
// document store, beside the entities the core manages.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"studio-management-api/internal/docstore"
)

const colRefreshTokens = "refresh_tokens"

type RefreshToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user"`
	TokenHash  string    `json:"tokenHash"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Revoked    bool      `json:"revoked"`
	ReplacedBy *string   `json:"replacedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Store struct {
	docs docstore.Store
}

func New(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

func (s *Store) CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (string, error) {
	rt := RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.docs.Insert(ctx, colRefreshTokens, rt.ID, rt); err != nil {
		return "", err
	}
	return rt.ID, nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var rt RefreshToken
	err := s.docs.FindOne(ctx, colRefreshTokens, docstore.Filter{"tokenHash": tokenHash}, &rt)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// rotate: revoke old token, create new one, link them
func (s *Store) RotateRefreshToken(ctx context.Context, oldID, userID, newHash string, newExpiry time.Time) (string, error) {
	newID, err := s.CreateRefreshToken(ctx, userID, newHash, newExpiry)
	if err != nil {
		return "", err
	}
	err = s.docs.UpdateByID(ctx, colRefreshTokens, oldID, map[string]any{
		"revoked":    true,
		"replacedBy": newID,
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

// revoke all tokens for a user (on logout or suspected theft)
func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	var tokens []RefreshToken
	f := docstore.Filter{"user": userID, "revoked": false}
	if err := s.docs.FindMany(ctx, colRefreshTokens, f, nil, 0, 0, &tokens); err != nil {
		return err
	}
	for _, rt := range tokens {
		if err := s.docs.UpdateByID(ctx, colRefreshTokens, rt.ID, map[string]any{"revoked": true}); err != nil && err != docstore.ErrNoDocuments {
			return err
		}
	}
	return nil
}

// DeleteUserTokens removes a deleted user's session state entirely.
func (s *Store) DeleteUserTokens(ctx context.Context, userID string) error {
	_, err := s.docs.DeleteMany(ctx, colRefreshTokens, docstore.Filter{"user": userID})
	return err
}
