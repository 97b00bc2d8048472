// Package session keeps the authenticated identity: the auth flag, bearer
// token and user profile. It is the only place those values are read or
// written, and it persists them in a bbolt file so they survive restarts.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dyike/QuantPilot/internal/models"
)

const (
	KeyAuthenticated = "isAuthenticated"
	KeyToken         = "token"
	KeyUserInfo      = "userInfo"
)

var bucketName = []byte("session")

// Keys lists every persisted session key.
func Keys() []string {
	return []string{KeyAuthenticated, KeyToken, KeyUserInfo}
}

type Store struct {
	mu            sync.RWMutex
	db            *bolt.DB
	authenticated bool
	token         string
	user          *models.UserInfo
}

// Open loads the persisted session at path, creating the file if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	s := &Store{db: db}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("create session bucket: %w", err)
		}
		s.authenticated = string(b.Get([]byte(KeyAuthenticated))) == "true"
		s.token = string(b.Get([]byte(KeyToken)))
		if raw := b.Get([]byte(KeyUserInfo)); len(raw) > 0 {
			var u models.UserInfo
			// A corrupt profile is dropped rather than failing startup.
			if json.Unmarshal(raw, &u) == nil {
				s.user = &u
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) HasToken() bool {
	return s.Token() != ""
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated && s.token != ""
}

// User returns a copy of the stored profile, or nil.
func (s *Store) User() *models.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Login records a successful authentication.
func (s *Store) Login(token string, user models.UserInfo) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token is required")
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user info: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Put([]byte(KeyAuthenticated), []byte("true")); err != nil {
			return err
		}
		if err := b.Put([]byte(KeyToken), []byte(token)); err != nil {
			return err
		}
		return b.Put([]byte(KeyUserInfo), raw)
	})
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.authenticated = true
	s.token = token
	s.user = &user
	return nil
}

// SetUser refreshes the stored profile without touching the token.
func (s *Store) SetUser(user models.UserInfo) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user info: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(KeyUserInfo), raw)
	})
	if err != nil {
		return fmt.Errorf("persist user info: %w", err)
	}
	s.user = &user
	return nil
}

// Teardown clears every session key. It is used for logout and whenever the
// backend rejects the token.
func (s *Store) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.token = ""
	s.user = nil
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, k := range Keys() {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) Logout() error {
	return s.Teardown()
}

// Persisted reports the raw value stored under key.
func (s *Store) Persisted(key string) (string, bool) {
	var (
		val   string
		found bool
	)
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(key)); v != nil {
			val, found = string(v), true
		}
		return nil
	})
	return val, found
}
