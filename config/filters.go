package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 200 * time.Millisecond

// Filters are local screening rules. Matching is a case-insensitive substring test.
type Filters struct {
	IgnoreSenders           []string `json:"ignoreSenders"`
	IgnoreKeywordsInSubject []string `json:"ignoreKeywordsInSubject"`
	IgnoreKeywordsInBody    []string `json:"ignoreKeywordsInBody"`
}

// Manager handles loading, saving, and accessing filter rules.
type Manager struct {
	filePath string
	filters  *Filters
	mu       sync.RWMutex
	logger   zerolog.Logger
}

// NewManager loads the rules at filePath, creating an empty rules file when there is none.
func NewManager(filePath string, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{
		filePath: filePath,
		filters:  emptyFilters(),
		logger:   logger.With().Str("component", "config").Logger(),
	}
	if err := m.LoadFilters(); err != nil {
		return nil, err
	}
	return m, nil
}

func emptyFilters() *Filters {
	return &Filters{
		IgnoreSenders:           []string{},
		IgnoreKeywordsInSubject: []string{},
		IgnoreKeywordsInBody:    []string{},
	}
}

// Path returns the rules file location.
func (m *Manager) Path() string { return m.filePath }

// LoadFilters loads filter rules from the JSON file.
func (m *Manager) LoadFilters() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.filters = emptyFilters()
			return m.saveFilters()
		}
		return fmt.Errorf("read filters: %w", err)
	}

	filters := emptyFilters()
	if err := json.Unmarshal(data, filters); err != nil {
		return fmt.Errorf("parse filters %s: %w", m.filePath, err)
	}
	m.filters = filters
	return nil
}

// saveFilters writes the rules; callers hold the write lock.
func (m *Manager) saveFilters() error {
	data, err := json.MarshalIndent(m.filters, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.filePath), 0o700); err != nil {
		return fmt.Errorf("ensure filters dir: %w", err)
	}
	return os.WriteFile(m.filePath, data, 0o644)
}

// GetFilters returns a copy of the current filters.
func (m *Manager) GetFilters() Filters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Filters{
		IgnoreSenders:           slices.Clone(m.filters.IgnoreSenders),
		IgnoreKeywordsInSubject: slices.Clone(m.filters.IgnoreKeywordsInSubject),
		IgnoreKeywordsInBody:    slices.Clone(m.filters.IgnoreKeywordsInBody),
	}
}

func (m *Manager) AddIgnoreSender(sender string) error {
	return m.update(func(f *Filters) bool { return add(&f.IgnoreSenders, sender) })
}

func (m *Manager) AddIgnoreKeywordInSubject(keyword string) error {
	return m.update(func(f *Filters) bool { return add(&f.IgnoreKeywordsInSubject, keyword) })
}

func (m *Manager) AddIgnoreKeywordInBody(keyword string) error {
	return m.update(func(f *Filters) bool { return add(&f.IgnoreKeywordsInBody, keyword) })
}

func (m *Manager) RemoveIgnoreSender(sender string) error {
	return m.update(func(f *Filters) bool { return remove(&f.IgnoreSenders, sender) })
}

func (m *Manager) RemoveIgnoreKeywordInSubject(keyword string) error {
	return m.update(func(f *Filters) bool { return remove(&f.IgnoreKeywordsInSubject, keyword) })
}

func (m *Manager) RemoveIgnoreKeywordInBody(keyword string) error {
	return m.update(func(f *Filters) bool { return remove(&f.IgnoreKeywordsInBody, keyword) })
}

// update applies fn and saves when it reports a change.
func (m *Manager) update(fn func(*Filters) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !fn(m.filters) {
		return nil
	}
	return m.saveFilters()
}

func add(list *[]string, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	for _, v := range *list {
		if strings.EqualFold(v, value) {
			return false
		}
	}
	*list = append(*list, value)
	return true
}

func remove(list *[]string, value string) bool {
	value = strings.TrimSpace(value)
	i := slices.IndexFunc(*list, func(v string) bool { return strings.EqualFold(v, value) })
	if i < 0 {
		return false
	}
	*list = slices.Delete(*list, i, i+1)
	return true
}

// Screen reports whether a message matches an ignore rule, and which one.
func (m *Manager) Screen(sender, subject, snippet string) (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rule, ok := firstMatch(sender, m.filters.IgnoreSenders); ok {
		return true, "sender:" + rule
	}
	if rule, ok := firstMatch(subject, m.filters.IgnoreKeywordsInSubject); ok {
		return true, "subject:" + rule
	}
	if rule, ok := firstMatch(snippet, m.filters.IgnoreKeywordsInBody); ok {
		return true, "body:" + rule
	}
	return false, ""
}

func firstMatch(text string, rules []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r != "" && strings.Contains(lower, strings.ToLower(r)) {
			return r, true
		}
	}
	return "", false
}

// Watch reloads the rules whenever the file changes on disk, until ctx is done.
// The directory is watched rather than the file so editors that replace the file are handled.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(m.filePath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	m.logger.Debug().Str("path", m.filePath).Msg("watching filters file")

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	reload := func() {
		if err := m.LoadFilters(); err != nil {
			m.logger.Warn().Err(err).Msg("filters reload failed; keeping previous rules")
			return
		}
		f := m.GetFilters()
		m.logger.Info().
			Int("senders", len(f.IgnoreSenders)).
			Int("subject_keywords", len(f.IgnoreKeywordsInSubject)).
			Int("body_keywords", len(f.IgnoreKeywordsInBody)).
			Msg("filters reloaded")
	}

	target := filepath.Clean(m.filePath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn().Err(err).Msg("filters watch error")
		}
	}
}
