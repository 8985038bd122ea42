package secrets

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"github.com/bassamadnan/mailpilot/config"
)

const (
	backendEnv  = "MAILPILOT_KEYRING_BACKEND"
	passwordEnv = "MAILPILOT_KEYRING_PASSWORD" //nolint:gosec // env var name

	gmailTokenKey = "gmail:token"
	llmAPIKeyKey  = "llm:api_key"

	// Secret Service over D-Bus can hang when gnome-keyring is installed but not running.
	openTimeout = 5 * time.Second
)

var (
	ErrNotFound = errors.New("secret not found")

	errEmptyKey       = errors.New("empty secret name")
	errEmptyAPIKey    = errors.New("empty API key")
	errUnknownBackend = errors.New("unknown keyring backend")
	errOpenTimeout    = errors.New("keyring did not open in time")
	errNoPassword     = errors.New("file keyring needs a password and there is no terminal to ask on")
)

// Store reads and writes mailpilot's credentials in one keyring backend.
// The keyring is opened on every call and never cached.
type Store struct {
	backend string
	goos    string
	open    func(keyring.Config) (keyring.Keyring, error)
	isTTY   func() bool
}

// New returns a store for backend (auto, keychain, secret-service or file).
// MAILPILOT_KEYRING_BACKEND takes precedence over the configured value.
func New(backend string) *Store {
	if v := strings.TrimSpace(os.Getenv(backendEnv)); v != "" {
		backend = v
	}
	return &Store{
		backend: strings.ToLower(strings.TrimSpace(backend)),
		goos:    runtime.GOOS,
		open:    keyring.Open,
		isTTY:   func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

// Backend is the backend name in effect.
func (s *Store) Backend() string {
	if s.backend == "" {
		return "auto"
	}
	return s.backend
}

// backends picks the allowed keyring backends. On Linux without a session bus the encrypted
// file is the only usable choice; with one, opening is bounded by openTimeout.
func (s *Store) backends() (allowed []keyring.BackendType, bounded bool, err error) {
	switch s.Backend() {
	case "auto":
		if s.goos != "linux" {
			return nil, false, nil
		}
		if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
			return []keyring.BackendType{keyring.FileBackend}, false, nil
		}
		return nil, true, nil
	case "keychain":
		return []keyring.BackendType{keyring.KeychainBackend}, false, nil
	case "secret-service":
		return []keyring.BackendType{keyring.SecretServiceBackend}, false, nil
	case "file":
		return []keyring.BackendType{keyring.FileBackend}, false, nil
	default:
		return nil, false, fmt.Errorf("%w %q: use auto, keychain, secret-service or file", errUnknownBackend, s.backend)
	}
}

func (s *Store) passwordPrompt() keyring.PromptFunc {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return keyring.FixedStringPrompt(pw)
	}
	if s.isTTY() {
		return keyring.TerminalPrompt
	}
	return func(string) (string, error) {
		return "", fmt.Errorf("%w; set %s", errNoPassword, passwordEnv)
	}
}

func (s *Store) ring() (keyring.Keyring, error) {
	allowed, bounded, err := s.backends()
	if err != nil {
		return nil, err
	}
	dir, err := config.EnsureKeyringDir()
	if err != nil {
		return nil, err
	}
	cfg := keyring.Config{
		ServiceName:      config.AppName,
		AllowedBackends:  allowed,
		FileDir:          dir,
		FilePasswordFunc: s.passwordPrompt(),
	}
	if !bounded {
		ring, err := s.open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open keyring: %w", err)
		}
		return ring, nil
	}
	return s.openWithin(cfg, openTimeout)
}

func (s *Store) openWithin(cfg keyring.Config, timeout time.Duration) (keyring.Keyring, error) {
	type opened struct {
		ring keyring.Keyring
		err  error
	}
	ch := make(chan opened, 1)
	go func() {
		ring, err := s.open(cfg)
		ch <- opened{ring, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("open keyring: %w", res.err)
		}
		return res.ring, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %s; set %s=file to use the encrypted file instead",
			errOpenTimeout, timeout, backendEnv)
	}
}

func (s *Store) Set(name string, value []byte) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errEmptyKey
	}
	ring, err := s.ring()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: name, Data: value, Label: config.AppName}); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	return nil
}

// Get returns the stored value, or ErrNotFound.
func (s *Store) Get(name string) ([]byte, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errEmptyKey
	}
	ring, err := s.ring()
	if err != nil {
		return nil, err
	}
	item, err := ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return item.Data, nil
}

func (s *Store) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errEmptyAPIKey
	}
	return s.Set(llmAPIKeyKey, []byte(key))
}

// APIKey returns the language model key, or ErrNotFound.
func (s *Store) APIKey() (string, error) {
	data, err := s.Get(llmAPIKeyKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
