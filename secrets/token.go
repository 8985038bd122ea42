package secrets

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/bassamadnan/mailpilot/gmail"
)

// TokenStore keeps the Gmail OAuth token in the keyring. It implements gmail.TokenStore.
type TokenStore struct {
	secrets *Store
}

func (s *Store) TokenStore() *TokenStore {
	return &TokenStore{secrets: s}
}

func (t *TokenStore) Load() (*oauth2.Token, error) {
	data, err := t.secrets.Get(gmailTokenKey)
	if errors.Is(err, ErrNotFound) {
		return nil, gmail.ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode stored token: %w", err)
	}
	return &tok, nil
}

func (t *TokenStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("nil token")
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return t.secrets.Set(gmailTokenKey, data)
}
