package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "rules", "filters.json"), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManagerCreatesEmptyFile(t *testing.T) {
	m := newTestManager(t)
	if _, err := os.Stat(m.Path()); err != nil {
		t.Fatalf("filters file not created: %v", err)
	}
	f := m.GetFilters()
	if len(f.IgnoreSenders)+len(f.IgnoreKeywordsInSubject)+len(f.IgnoreKeywordsInBody) != 0 {
		t.Fatalf("expected empty filters, got %+v", f)
	}
}

func TestAddAndRemovePersist(t *testing.T) {
	m := newTestManager(t)
	for _, err := range []error{
		m.AddIgnoreSender("noreply@shop.com"),
		m.AddIgnoreSender("NoReply@shop.com"),
		m.AddIgnoreKeywordInSubject("newsletter"),
		m.AddIgnoreKeywordInBody("unsubscribe"),
		m.AddIgnoreSender("  "),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	reloaded, err := NewManager(m.Path(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	want := Filters{
		IgnoreSenders:           []string{"noreply@shop.com"},
		IgnoreKeywordsInSubject: []string{"newsletter"},
		IgnoreKeywordsInBody:    []string{"unsubscribe"},
	}
	if got := reloaded.GetFilters(); !reflect.DeepEqual(got, want) {
		t.Fatalf("reloaded filters = %+v, want %+v", got, want)
	}

	if err := m.RemoveIgnoreSender("NOREPLY@shop.com"); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveIgnoreKeywordInSubject("missing"); err != nil {
		t.Fatal(err)
	}
	if got := m.GetFilters().IgnoreSenders; len(got) != 0 {
		t.Fatalf("sender not removed: %v", got)
	}
}

func TestGetFiltersReturnsCopy(t *testing.T) {
	m := newTestManager(t)
	if err := m.AddIgnoreSender("a@x.com"); err != nil {
		t.Fatal(err)
	}
	f := m.GetFilters()
	f.IgnoreSenders[0] = "changed"
	if m.GetFilters().IgnoreSenders[0] != "a@x.com" {
		t.Fatal("GetFilters exposed internal state")
	}
}

func TestScreen(t *testing.T) {
	m := newTestManager(t)
	_ = m.AddIgnoreSender("@promo.example")
	_ = m.AddIgnoreKeywordInSubject("Weekly Digest")
	_ = m.AddIgnoreKeywordInBody("unsubscribe")

	tests := []struct {
		sender, subject, snippet string
		drop                     bool
		rule                     string
	}{
		{"Deals <deals@PROMO.example>", "Hi", "", true, "sender:@promo.example"},
		{"jane@x.com", "Your weekly digest", "", true, "subject:Weekly Digest"},
		{"jane@x.com", "Hello", "click to Unsubscribe", true, "body:unsubscribe"},
		{"jane@x.com", "Is the Pixel in stock?", "thanks", false, ""},
	}
	for _, tt := range tests {
		drop, rule := m.Screen(tt.sender, tt.subject, tt.snippet)
		if drop != tt.drop || rule != tt.rule {
			t.Errorf("Screen(%q, %q, %q) = %v, %q; want %v, %q", tt.sender, tt.subject, tt.snippet, drop, rule, tt.drop, tt.rule)
		}
	}
}

func TestLoadFiltersRejectsBrokenJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(path, zerolog.Nop()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	body := []byte(`{"ignoreSenders":["spam@x.com"],"ignoreKeywordsInSubject":[],"ignoreKeywordsInBody":[]}`)
	if err := os.WriteFile(m.Path(), body, 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if drop, _ := m.Screen("spam@x.com", "", ""); drop {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("filters were not reloaded after the file changed")
}
