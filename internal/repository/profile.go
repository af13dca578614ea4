package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

// ProfileStore persists index profiles as an ordered JSON array.
type ProfileStore interface {
	Load() ([]entity.IndexProfile, error)
	Save(profiles []entity.IndexProfile) error
	Add(p entity.IndexProfile) error
	Remove(name string) (bool, error)
	Replace(name string, p entity.IndexProfile) (bool, error)
	Get(name string) (entity.IndexProfile, bool)
	List() []entity.IndexProfile
}

type profileStore struct {
	path     string
	logger   *slog.Logger
	schema   *jsonschema.Schema
	mu       sync.RWMutex
	profiles []entity.IndexProfile
}

// NewProfileStore opens the store at path and loads it. Missing or corrupt files
// are replaced by the default profiles, which are written back immediately.
func NewProfileStore(path string, logger *slog.Logger) (ProfileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := common.CompileSchema("profiles.json", profilesSchema())
	if err != nil {
		return nil, err
	}
	s := &profileStore{path: path, logger: logger, schema: schema}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func profilesSchema() map[string]any {
	field := map[string]any{
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"value":       map[string]any{"type": "string"},
			"placeholder": map[string]any{"type": "string"},
			"required":    map[string]any{"type": "boolean"},
			"field_type":  map[string]any{"type": "string"},
			"options":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":     "object",
			"required": []string{"name"},
			"properties": map[string]any{
				"name":           map[string]any{"type": "string"},
				"description":    map[string]any{"type": "string"},
				"output_pattern": map[string]any{"type": "string"},
				"input_folder":   map[string]any{"type": "string"},
				"output_folder":  map[string]any{"type": "string"},
				"fields":         map[string]any{"type": "array", "items": field},
			},
		},
	}
}

// Load re-reads the file. The returned slice is a copy.
func (s *profileStore) Load() ([]entity.IndexProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.read()
	if err != nil {
		s.logger.Warn("failed to load profiles, seeding defaults", "path", s.path, "error", err)
	}
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
		s.profiles = profiles
		if err := s.write(); err != nil {
			return nil, err
		}
		s.logger.Info("seeded default profiles", "path", s.path, "count", len(profiles))
	} else {
		s.profiles = profiles
		s.logger.Debug("profiles loaded", "path", s.path, "count", len(profiles))
	}
	return cloneProfiles(s.profiles), nil
}

func (s *profileStore) read() ([]entity.IndexProfile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	if err := common.ValidateJSONAgainstSchema(s.schema, data); err != nil {
		return nil, err
	}
	var profiles []entity.IndexProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	return profiles, nil
}

// Save replaces the whole list and persists it.
func (s *profileStore) Save(profiles []entity.IndexProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = cloneProfiles(profiles)
	return s.write()
}

func (s *profileStore) Add(p entity.IndexProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, p.Clone())
	if err := s.write(); err != nil {
		return err
	}
	s.logger.Info("profile added", "name", p.Name)
	return nil
}

// Remove drops every profile named name and persists only if something changed.
func (s *profileStore) Remove(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]entity.IndexProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(s.profiles) {
		return false, nil
	}
	s.profiles = kept
	if err := s.write(); err != nil {
		return false, err
	}
	s.logger.Info("profile removed", "name", name)
	return true, nil
}

// Replace swaps the first profile named name for p.
func (s *profileStore) Replace(name string, p entity.IndexProfile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.profiles {
		if s.profiles[i].Name == name {
			s.profiles[i] = p.Clone()
			if err := s.write(); err != nil {
				return false, err
			}
			s.logger.Info("profile replaced", "name", name, "new_name", p.Name)
			return true, nil
		}
	}
	return false, nil
}

// Get returns a copy of the first profile named name.
func (s *profileStore) Get(name string) (entity.IndexProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.Name == name {
			return p.Clone(), true
		}
	}
	return entity.IndexProfile{}, false
}

func (s *profileStore) List() []entity.IndexProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProfiles(s.profiles)
}

// write persists s.profiles through a temp file and rename. Callers hold mu.
func (s *profileStore) write() error {
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return common.NewAppError(common.CodeStorage, "encode profiles", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return common.NewAppError(common.CodeStorage, "create profiles dir", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".profiles-*.json")
	if err != nil {
		return common.NewAppError(common.CodeStorage, "create temp profiles file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return common.NewAppError(common.CodeStorage, "write profiles", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return common.NewAppError(common.CodeStorage, "close profiles", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		s.logger.Error("failed to save profiles", "path", s.path, "error", err)
		return common.NewAppError(common.CodeStorage, "save profiles", err)
	}
	return nil
}

func cloneProfiles(in []entity.IndexProfile) []entity.IndexProfile {
	out := make([]entity.IndexProfile, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
