package composite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// PlanStore holds the plans found in a directory and, once watching, keeps
// them in sync with file changes.
type PlanStore struct {
	dir                string
	stabilityThreshold time.Duration
	onChange           func(id string, plan *Plan)

	mu     sync.RWMutex
	plans  map[string]*Plan
	byPath map[string]string

	watcher        *fsnotify.Watcher
	done           chan struct{}
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
	stopOnce       sync.Once
}

// PlanStoreConfig configures a PlanStore
type PlanStoreConfig struct {
	Dir                string
	StabilityThreshold time.Duration
	// OnChange is called after a plan is loaded (plan set) or removed (plan nil)
	OnChange func(id string, plan *Plan)
}

// NewPlanStore creates a store and loads the directory once
func NewPlanStore(config PlanStoreConfig) (*PlanStore, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("plan directory is required")
	}
	if config.StabilityThreshold == 0 {
		config.StabilityThreshold = 100 * time.Millisecond
	}

	s := &PlanStore{
		dir:                config.Dir,
		stabilityThreshold: config.StabilityThreshold,
		onChange:           config.OnChange,
		plans:              make(map[string]*Plan),
		byPath:             make(map[string]string),
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
	}

	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PlanStore) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read plan directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isPlanFile(entry.Name()) {
			continue
		}
		s.loadFile(filepath.Join(s.dir, entry.Name()))
	}
	return nil
}

// loadFile loads or reloads one file; a broken file keeps its previous plan
func (s *PlanStore) loadFile(path string) {
	plan, err := LoadPlan(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to load plan")
		return
	}

	s.mu.Lock()
	if oldID, ok := s.byPath[path]; ok && oldID != plan.ID {
		delete(s.plans, oldID)
	}
	s.plans[plan.ID] = plan
	s.byPath[path] = plan.ID
	s.mu.Unlock()

	log.Info().Str("plan", plan.ID).Str("path", path).Msg("Plan loaded")
	if s.onChange != nil {
		s.onChange(plan.ID, plan)
	}
}

func (s *PlanStore) removeFile(path string) {
	s.mu.Lock()
	id, ok := s.byPath[path]
	if ok {
		delete(s.byPath, path)
		delete(s.plans, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	log.Info().Str("plan", id).Str("path", path).Msg("Plan removed")
	if s.onChange != nil {
		s.onChange(id, nil)
	}
}

// Get returns a plan by id
func (s *PlanStore) Get(id string) (*Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	return plan, ok
}

// IDs lists loaded plan ids, sorted
func (s *PlanStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.plans))
	for id := range s.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Watch starts reloading plans as files in the directory change
func (s *PlanStore) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch plan directory: %w", err)
	}
	s.watcher = watcher

	go s.eventLoop()

	log.Info().Str("path", s.dir).Msg("Plan store watching")
	return nil
}

// Stop stops watching
func (s *PlanStore) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
	})

	s.debounceMu.Lock()
	for _, timer := range s.debounceTimers {
		timer.Stop()
	}
	clear(s.debounceTimers)
	s.debounceMu.Unlock()

	if s.watcher == nil {
		return nil
	}
	if err := s.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (s *PlanStore) eventLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if s.shouldIgnore(event.Name) {
				continue
			}
			s.debounceEvent(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Plan watcher error")

		case <-s.done:
			return
		}
	}
}

// debounceEvent coalesces bursts of writes to the same file
func (s *PlanStore) debounceEvent(event fsnotify.Event) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if timer, exists := s.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	s.debounceTimers[event.Name] = time.AfterFunc(s.stabilityThreshold, func() {
		s.debounceMu.Lock()
		delete(s.debounceTimers, event.Name)
		s.debounceMu.Unlock()

		select {
		case <-s.done:
			return
		default:
			s.processEvent(event)
		}
	})
}

func (s *PlanStore) processEvent(event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if _, err := os.Stat(event.Name); err == nil {
			s.loadFile(event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// a rename is followed by a create for the new name
		s.removeFile(event.Name)
	}
}

func (s *PlanStore) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || !isPlanFile(base)
}
