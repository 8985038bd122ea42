package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

var (
	// ErrNoToken means no OAuth token has been stored yet; run the consent flow first.
	ErrNoToken = errors.New("no stored oauth token")
	// ErrNoClientSecret means the OAuth client secret file is missing or unreadable.
	ErrNoClientSecret = errors.New("oauth client secret unavailable")
)

// TokenStore persists the OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// FileTokenStore keeps the token as JSON in a local file.
type FileTokenStore struct {
	Path string
}

func (s FileTokenStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", s.Path, err)
	}
	return tok, nil
}

func (s FileTokenStore) Save(tok *oauth2.Token) error {
	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to save oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// OAuthConfig reads the client secret file downloaded from the Google console.
func OAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read client secret file: %v", ErrNoClientSecret, err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse client secret file to config: %v", ErrNoClientSecret, err)
	}
	return cfg, nil
}

// ConsentURL returns the URL the user opens to grant access.
func ConsentURL(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode trades an authorization code for a token and stores it.
func ExchangeCode(ctx context.Context, cfg *oauth2.Config, code string, store TokenStore) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	if err := store.Save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// persistingTokenSource saves every token the underlying source hands out that differs
// from the last one seen, so refreshed access tokens survive a restart.
type persistingTokenSource struct {
	src    oauth2.TokenSource
	store  TokenStore
	logger zerolog.Logger

	mu   sync.Mutex
	last string
}

func newPersistingTokenSource(src oauth2.TokenSource, store TokenStore, initial *oauth2.Token, logger zerolog.Logger) *persistingTokenSource {
	return &persistingTokenSource{src: src, store: store, last: initial.AccessToken, logger: logger}
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.store.Save(tok); err != nil {
			p.logger.Warn().Err(err).Msg("could not persist refreshed token")
		} else {
			p.logger.Debug().Time("expiry", tok.Expiry).Msg("refreshed token saved")
		}
	}
	return tok, nil
}
