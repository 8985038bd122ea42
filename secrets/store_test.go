package secrets

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"

	"github.com/bassamadnan/mailpilot/gmail"
)

// memStore returns a store backed by an in-memory keyring.
func memStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("MAILPILOT_CONFIG_DIR", t.TempDir())
	t.Setenv(backendEnv, "")
	ring := keyring.NewArrayKeyring(nil)
	s := New("file")
	s.open = func(keyring.Config) (keyring.Keyring, error) { return ring, nil }
	return s
}

func TestSecretRoundTrip(t *testing.T) {
	s := memStore(t)

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(" k ", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get("k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := s.Set("  ", []byte("v")); !errors.Is(err, errEmptyKey) {
		t.Fatalf("expected errEmptyKey, got %v", err)
	}
}

func TestAPIKey(t *testing.T) {
	s := memStore(t)

	if err := s.SetAPIKey(""); !errors.Is(err, errEmptyAPIKey) {
		t.Fatalf("expected errEmptyAPIKey, got %v", err)
	}
	if _, err := s.APIKey(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetAPIKey(" gsk-123 \n"); err != nil {
		t.Fatal(err)
	}
	got, err := s.APIKey()
	if err != nil || got != "gsk-123" {
		t.Fatalf("APIKey = %q, %v", got, err)
	}
}

func TestTokenStore(t *testing.T) {
	var store gmail.TokenStore = memStore(t).TokenStore()

	if _, err := store.Load(); !errors.Is(err, gmail.ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}

	expiry := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	in := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: expiry}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.AccessToken != "access" || out.RefreshToken != "refresh" || !out.Expiry.Equal(expiry) {
		t.Fatalf("token = %+v", out)
	}
}

func TestEnvOverridesConfiguredBackend(t *testing.T) {
	t.Setenv(backendEnv, "")
	if got := New(" Keychain ").Backend(); got != "keychain" {
		t.Errorf("configured backend = %q", got)
	}
	if got := New("").Backend(); got != "auto" {
		t.Errorf("empty backend = %q, want auto", got)
	}
	t.Setenv(backendEnv, "file")
	if got := New("keychain").Backend(); got != "file" {
		t.Errorf("env backend = %q, want file", got)
	}
}

func TestBackends(t *testing.T) {
	t.Setenv(backendEnv, "")
	tests := []struct {
		name    string
		backend string
		goos    string
		dbus    string
		allowed []keyring.BackendType
		bounded bool
		wantErr bool
	}{
		{name: "auto on darwin", backend: "auto", goos: "darwin"},
		{name: "headless linux", backend: "auto", goos: "linux", allowed: []keyring.BackendType{keyring.FileBackend}},
		{name: "linux desktop", backend: "auto", goos: "linux", dbus: "unix:path=/run/user/1000/bus", bounded: true},
		{name: "explicit file", backend: "file", goos: "linux", allowed: []keyring.BackendType{keyring.FileBackend}},
		{name: "explicit keychain", backend: "keychain", goos: "linux", allowed: []keyring.BackendType{keyring.KeychainBackend}},
		{name: "unknown", backend: "vault", goos: "linux", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DBUS_SESSION_BUS_ADDRESS", tt.dbus)
			s := New(tt.backend)
			s.goos = tt.goos

			allowed, bounded, err := s.backends()
			if tt.wantErr {
				if !errors.Is(err, errUnknownBackend) {
					t.Fatalf("expected errUnknownBackend, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(allowed) != len(tt.allowed) || (len(allowed) == 1 && allowed[0] != tt.allowed[0]) {
				t.Errorf("allowed = %v, want %v", allowed, tt.allowed)
			}
			if bounded != tt.bounded {
				t.Errorf("bounded = %v, want %v", bounded, tt.bounded)
			}
		})
	}
}

func TestPasswordPrompt(t *testing.T) {
	s := New("file")
	s.isTTY = func() bool { return false }

	t.Setenv(passwordEnv, "")
	if pw, err := s.passwordPrompt()("prompt"); err != nil || pw != "" {
		t.Fatalf("empty password set on purpose: %q, %v", pw, err)
	}
}

func TestPasswordPromptWithoutTerminal(t *testing.T) {
	s := New("file")
	s.isTTY = func() bool { return false }
	if _, ok := os.LookupEnv(passwordEnv); ok {
		t.Skip(passwordEnv + " is set in the environment")
	}
	if _, err := s.passwordPrompt()("prompt"); !errors.Is(err, errNoPassword) {
		t.Fatalf("expected errNoPassword, got %v", err)
	}
}

func TestOpenWithinTimesOut(t *testing.T) {
	s := New("auto")
	block := make(chan struct{})
	defer close(block)
	s.open = func(keyring.Config) (keyring.Keyring, error) {
		<-block
		return nil, nil
	}

	if _, err := s.openWithin(keyring.Config{}, 10*time.Millisecond); !errors.Is(err, errOpenTimeout) {
		t.Fatalf("expected errOpenTimeout, got %v", err)
	}
}
