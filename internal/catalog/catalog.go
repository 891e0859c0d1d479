// Package catalog loads the goal catalog from YAML and seeds it into the database.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aimd54/callcenter-gamification/internal/models"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

// File models the goals YAML file.
type File struct {
	Goals []GoalSpec `yaml:"goals"`
}

// GoalSpec is one goal as written in the catalog file.
type GoalSpec struct {
	Code        string                  `yaml:"code"`
	Kind        models.GoalKind         `yaml:"kind"`
	Title       string                  `yaml:"title"`
	Description string                  `yaml:"description"`
	Icon        string                  `yaml:"icon"`
	Condition   models.TriggerCondition `yaml:"condition"`
	Reward      int                     `yaml:"reward"`
	Active      *bool                   `yaml:"active"` // defaults to true
	Window      models.MissionWindow    `yaml:"window"`
}

// Goal converts the entry to a model.
func (s GoalSpec) Goal() models.Goal {
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	return models.Goal{
		Code:        s.Code,
		Kind:        s.Kind,
		Title:       s.Title,
		Description: s.Description,
		Icon:        s.Icon,
		Condition:   s.Condition,
		Reward:      s.Reward,
		Active:      active,
		Window:      s.Window,
	}
}

// Load reads and validates the catalog file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read goal catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse goal catalog: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every goal and rejects duplicate codes.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Goals))
	for i, gs := range f.Goals {
		if gs.Code == "" {
			return fmt.Errorf("goal #%d: code is required", i+1)
		}
		if gs.Title == "" {
			return fmt.Errorf("goal %q: title is required", gs.Code)
		}
		if seen[gs.Code] {
			return fmt.Errorf("goal %q: duplicate code", gs.Code)
		}
		seen[gs.Code] = true

		goal := gs.Goal()
		if err := goal.Validate(); err != nil {
			return err
		}
		if goal.IsMission() && goal.Window.Period == "" {
			return fmt.Errorf("goal %q: missions need a window period", gs.Code)
		}
		if !goal.IsMission() && (goal.Window.Period != "" || goal.Window.StartsAt != nil || goal.Window.ExpiresAt != nil) {
			return fmt.Errorf("goal %q: achievements cannot have a window", gs.Code)
		}
	}
	return nil
}

// GoalRepository defines the catalog write the seeder needs.
type GoalRepository interface {
	UpsertByCode(ctx context.Context, goal *models.Goal) error
}

// Seeder writes catalog goals to the database.
type Seeder struct {
	repo GoalRepository
	log  *logger.Logger
}

// NewSeeder creates a new seeder.
func NewSeeder(repo GoalRepository, log *logger.Logger) *Seeder {
	return &Seeder{repo: repo, log: log}
}

// Seed upserts every goal of the catalog by code and returns how many were written.
// Progress of existing goals is untouched.
func (s *Seeder) Seed(ctx context.Context, f *File) (int, error) {
	for i, gs := range f.Goals {
		goal := gs.Goal()
		if err := s.repo.UpsertByCode(ctx, &goal); err != nil {
			return i, fmt.Errorf("failed to seed goal %s: %w", gs.Code, err)
		}
		s.log.Debug().
			Str("goal", goal.Code).
			Str("kind", string(goal.Kind)).
			Bool("active", goal.Active).
			Msg("Seeded goal")
	}

	s.log.Info().Int("goals", len(f.Goals)).Msg("Goal catalog seeded")
	return len(f.Goals), nil
}

// SeedFile loads the catalog at path and seeds it.
func (s *Seeder) SeedFile(ctx context.Context, path string) (int, error) {
	f, err := Load(path)
	if err != nil {
		return 0, err
	}
	return s.Seed(ctx, f)
}
