// Package credentials stores model-provider API keys in the database so
// operators can rotate them with cmd/useradmin instead of redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"stylegen/internal/infra"
	"stylegen/internal/sqlinline"
)

const ProviderOpenAI = "openai"

// ErrEmptyKey is returned when an empty key is stored.
var ErrEmptyKey = errors.New("credentials: api key is required")

type Store struct {
	sql infra.SQLExecutor
	now func() time.Time
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, now: time.Now}
}

// Key is a stored provider key. The zero value means none is stored.
type Key struct {
	Provider  string
	Token     string
	UpdatedAt time.Time
}

// Masked shows the last four characters only.
func (k Key) Masked() string {
	if len(k.Token) <= 4 {
		return strings.Repeat("*", len(k.Token))
	}
	return strings.Repeat("*", 8) + k.Token[len(k.Token)-4:]
}

func (s *Store) Get(ctx context.Context, provider string) (Key, error) {
	var key Key
	err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider).Scan(&key.Token, &key.UpdatedAt)
	if infra.IsNoRows(err) {
		return Key{}, nil
	}
	if err != nil {
		return Key{}, err
	}
	key.Provider = provider
	key.Token = strings.TrimSpace(key.Token)
	return key, nil
}

// ResolveOpenAIKey prefers the configured key and falls back to the stored
// one. A nil store (in-memory deployments) has no stored key.
func (s *Store) ResolveOpenAIKey(ctx context.Context, configured string) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	if s == nil {
		return "", nil
	}
	key, err := s.Get(ctx, ProviderOpenAI)
	return key.Token, err
}

func (s *Store) SetOpenAIAPIKey(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyKey
	}
	props, err := json.Marshal(map[string]string{"rotated_at": s.now().UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, uuid.NewString(), ProviderOpenAI, token, props)
	return err
}

// ClearOpenAIAPIKey removes the stored key. It reports whether one existed.
func (s *Store) ClearOpenAIAPIKey(ctx context.Context) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, ProviderOpenAI)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
