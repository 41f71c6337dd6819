package security

import (
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Revocation records a denied requester
type Revocation struct {
	RequesterID string    `json:"requester_id"`
	RevokedAt   time.Time `json:"revoked_at"`
	Reason      string    `json:"reason,omitempty"`
}

type revocationFile struct {
	Entries []Revocation `json:"entries"`
}

// revocationStore is a revocation set optionally mirrored to a JSON file. Edits
// made to the file by another process are picked up on the next read.
type revocationStore struct {
	mu      sync.Mutex
	file    *jsonFile
	now     func() time.Time
	entries map[string]Revocation
}

func newRevocationStore(path string, now func() time.Time) (*revocationStore, error) {
	s := &revocationStore{
		file:    newJSONFile(path, "revocation"),
		now:     now,
		entries: make(map[string]Revocation),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *revocationStore) add(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	if _, exists := s.entries[id]; exists {
		return nil
	}
	s.entries[id] = Revocation{RequesterID: id, RevokedAt: s.now(), Reason: reason}
	return s.saveLocked()
}

func (s *revocationStore) remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	if _, exists := s.entries[id]; !exists {
		return false, nil
	}
	delete(s.entries, id)
	return true, s.saveLocked()
}

func (s *revocationStore) contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	_, ok := s.entries[id]
	return ok
}

func (s *revocationStore) list() []Revocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return s.sortedLocked()
}

func (s *revocationStore) sortedLocked() []Revocation {
	out := make([]Revocation, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RevokedAt.Equal(out[j].RevokedAt) {
			return out[i].RequesterID < out[j].RequesterID
		}
		return out[i].RevokedAt.Before(out[j].RevokedAt)
	})
	return out
}

func (s *revocationStore) refreshLocked() {
	if s.file.changed() {
		_ = s.load()
	}
}

func (s *revocationStore) load() error {
	var file revocationFile
	found, err := s.file.read(&file)
	if err != nil || !found {
		return err
	}

	entries := make(map[string]Revocation, len(file.Entries))
	for _, entry := range file.Entries {
		if entry.RequesterID == "" {
			continue
		}
		entries[entry.RequesterID] = entry
	}
	s.entries = entries
	return nil
}

func (s *revocationStore) saveLocked() error {
	return s.file.write(revocationFile{Entries: s.sortedLocked()})
}

// DefaultRevocationPath returns the revocation file under dataDir
func DefaultRevocationPath(dataDir string) string {
	return filepath.Join(dataDir, "security", "revoked.json")
}
