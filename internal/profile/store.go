package profile

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// Store looks up structured facts about named entities
type Store interface {
	FindFacts(ctx context.Context, nameOrAlias string) ([]model.ProfileFact, error)
}

// MemoryStore holds profiles in memory
type MemoryStore struct {
	mu       sync.RWMutex
	profiles []model.Profile
}

// NewMemoryStore creates a store over the given profiles
func NewMemoryStore(profiles ...model.Profile) *MemoryStore {
	return &MemoryStore{profiles: append([]model.Profile(nil), profiles...)}
}

type profileFile struct {
	Profiles []model.Profile `yaml:"profiles"`
}

// LoadYAMLFile reads profiles from a YAML document with a top-level "profiles" list
func LoadYAMLFile(path string) ([]model.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}
	for i, p := range f.Profiles {
		if p.ID == "" {
			f.Profiles[i].ID = fmt.Sprintf("profile-%d", i+1)
		}
		for j, fact := range p.Facts {
			if fact.ID == "" {
				f.Profiles[i].Facts[j].ID = fmt.Sprintf("%s-fact-%d", f.Profiles[i].ID, j+1)
			}
		}
	}
	return f.Profiles, nil
}

// Add appends or replaces a profile by id
func (s *MemoryStore) Add(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.profiles {
		if s.profiles[i].ID == p.ID {
			s.profiles[i] = p
			return
		}
	}
	s.profiles = append(s.profiles, p)
}

// FindFacts returns the facts of every profile whose name or alias matches
func (s *MemoryStore) FindFacts(ctx context.Context, nameOrAlias string) ([]model.ProfileFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var facts []model.ProfileFact
	for _, p := range s.profiles {
		if score := matchProfile(p, nameOrAlias); score > 0 {
			facts = append(facts, factsFor(p, score)...)
		}
	}
	return facts, nil
}

// Open builds the configured profile store
func Open(cfg model.ProfilesConfig) (Store, error) {
	switch cfg.Backend {
	case "", "yaml":
		if cfg.Path == "" {
			return NewMemoryStore(), nil
		}
		profiles, err := LoadYAMLFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewMemoryStore(profiles...), nil
	case "sqlite", "postgres":
		dsn := cfg.DSN
		if dsn == "" && cfg.Backend == "sqlite" {
			dsn = cfg.Path
		}
		if dsn == "" {
			return nil, fmt.Errorf("profiles backend %s requires a dsn", cfg.Backend)
		}
		return OpenGormStore(cfg.Backend, dsn)
	default:
		return nil, fmt.Errorf("unknown profiles backend: %s (supported: yaml, sqlite, postgres)", cfg.Backend)
	}
}
