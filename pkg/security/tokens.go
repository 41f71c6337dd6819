package security

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sort"
	"sync"
	"time"

	te "github.com/harun/toolengine/pkg/toolexecutor"
)

// IssuedToken describes a token without revealing it
type IssuedToken struct {
	Hash          string           `json:"hash"`
	Subject       string           `json:"subject"`
	SecurityLevel te.SecurityLevel `json:"security_level"`
	IssuedAt      time.Time        `json:"issued_at"`
	ExpiresAt     time.Time        `json:"expires_at,omitempty"`
}

func (t IssuedToken) expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

type tokenFile struct {
	Tokens []IssuedToken `json:"tokens"`
}

// tokenStore keeps issued tokens by their SHA-256 digest; the plain token is
// only ever returned to the caller of Issue.
type tokenStore struct {
	mu      sync.Mutex
	file    *jsonFile
	entries map[string]IssuedToken
}

func newTokenStore(path string) (*tokenStore, error) {
	s := &tokenStore{
		file:    newJSONFile(path, "token"),
		entries: make(map[string]IssuedToken),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *tokenStore) put(entry IssuedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	s.entries[entry.Hash] = entry
	return s.saveLocked()
}

func (s *tokenStore) get(hash string) (IssuedToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	entry, ok := s.entries[hash]
	return entry, ok
}

func (s *tokenStore) remove(hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	if _, ok := s.entries[hash]; !ok {
		return false, nil
	}
	delete(s.entries, hash)
	return true, s.saveLocked()
}

// prune drops expired tokens and returns how many were removed
func (s *tokenStore) prune(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	removed := 0
	for hash, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, hash)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.saveLocked()
}

func (s *tokenStore) list() []IssuedToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return s.sortedLocked()
}

func (s *tokenStore) sortedLocked() []IssuedToken {
	out := make([]IssuedToken, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].Hash < out[j].Hash
		}
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out
}

func (s *tokenStore) refreshLocked() {
	if s.file.changed() {
		_ = s.load()
	}
}

func (s *tokenStore) load() error {
	var file tokenFile
	found, err := s.file.read(&file)
	if err != nil || !found {
		return err
	}

	entries := make(map[string]IssuedToken, len(file.Tokens))
	for _, entry := range file.Tokens {
		if entry.Hash == "" {
			continue
		}
		entries[entry.Hash] = entry
	}
	s.entries = entries
	return nil
}

func (s *tokenStore) saveLocked() error {
	return s.file.write(tokenFile{Tokens: s.sortedLocked()})
}

// DefaultTokenPath returns the issued-token file under dataDir
func DefaultTokenPath(dataDir string) string {
	return filepath.Join(dataDir, "security", "tokens.json")
}
