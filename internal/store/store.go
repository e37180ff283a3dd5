// File: internal/store/store.go
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Settings keys understood by the durable store. The hub endpoint override and the
// bearer credential are the two values the settings surface reads and writes.
const (
	KeyHubEndpoint = "hub_endpoint"
	KeyHubToken    = "hub_token"
)

var settingsBucket = []byte("settings")

// Settings is the durable key-value store backing user-adjustable configuration.
type Settings struct {
	db  *bolt.DB
	log *zap.Logger
}

// OpenSettings opens (creating if necessary) the settings database at path.
func OpenSettings(path string, logger *zap.Logger) (*Settings, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(settingsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings bucket: %w", err)
	}
	return &Settings{db: db, log: logger.Named("settings")}, nil
}

// Get returns the stored value for key, or "" when unset.
func (s *Settings) Get(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(settingsBucket).Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key. An empty value deletes the key.
func (s *Settings) Set(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(settingsBucket)
		if value == "" {
			return b.Delete([]byte(key))
		}
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Settings) Close() error {
	return s.db.Close()
}

// SessionStore holds per-tab registration snapshots for the lifetime of the
// browser session. Entries are keyed "tab-<id>" and removed when the tab closes.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	log     *zap.Logger
}

// NewSessionStore creates an empty session store.
func NewSessionStore(logger *zap.Logger) *SessionStore {
	return &SessionStore{
		entries: make(map[string][]byte),
		log:     logger.Named("session_store"),
	}
}

func tabKey(tabID string) string {
	return "tab-" + tabID
}

// PutTabSession persists the registration snapshot for a tab, replacing any
// previous entry.
func (s *SessionStore) PutTabSession(tabID string, entry schemas.TabSession) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode tab session: %w", err)
	}
	s.mu.Lock()
	s.entries[tabKey(tabID)] = raw
	s.mu.Unlock()
	return nil
}

// GetTabSession returns the stored snapshot for a tab, with ok=false when absent.
func (s *SessionStore) GetTabSession(tabID string) (schemas.TabSession, bool, error) {
	s.mu.RLock()
	raw, ok := s.entries[tabKey(tabID)]
	s.mu.RUnlock()
	if !ok {
		return schemas.TabSession{}, false, nil
	}
	var entry schemas.TabSession
	if err := json.Unmarshal(raw, &entry); err != nil {
		return schemas.TabSession{}, false, fmt.Errorf("failed to decode tab session: %w", err)
	}
	return entry, true, nil
}

// DeleteTabSession drops the snapshot for a closed tab.
func (s *SessionStore) DeleteTabSession(tabID string) {
	s.mu.Lock()
	delete(s.entries, tabKey(tabID))
	s.mu.Unlock()
}
