package content

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kiwicki/asgardbot/internal/domain"
)

// Seed is one task definition in a YAML seed file. Requires points at an
// earlier task in the same file by its 1-based position; the real task id is
// assigned at import time.
type Seed struct {
	Description   string     `yaml:"description"`
	Points        int        `yaml:"points"`
	Answers       []string   `yaml:"answers"`
	CaseSensitive bool       `yaml:"case_sensitive"`
	Requires      int        `yaml:"requires"`
	Mode          string     `yaml:"mode"`
	At            *time.Time `yaml:"at"`
}

type seedFile struct {
	Tasks []Seed `yaml:"tasks"`
}

// Load reads and validates a YAML seed file.
func Load(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, s := range f.Tasks {
		if err := s.validate(i); err != nil {
			return nil, err
		}
	}
	return f.Tasks, nil
}

func (s Seed) validate(index int) error {
	ordinal := index + 1
	if s.Description == "" {
		return fmt.Errorf("seed %d: description is required", ordinal)
	}
	if s.Points < 0 {
		return fmt.Errorf("seed %d: points must be >= 0", ordinal)
	}
	if s.Requires != 0 && (s.Requires < 0 || s.Requires >= ordinal) {
		return fmt.Errorf("seed %d: %w: requires=%d", ordinal, domain.ErrBadSeedReference, s.Requires)
	}
	switch s.Mode {
	case "", string(domain.DeliveryBroadcast), string(domain.DeliveryDirect):
	default:
		return fmt.Errorf("seed %d: unknown delivery mode %q", ordinal, s.Mode)
	}
	return nil
}

// Task materializes the seed as a task without an id. prereqID is the already
// assigned id of the required task, or nil.
func (s Seed) Task(prereqID *int) *domain.Task {
	mode := domain.DeliveryBroadcast
	if s.Mode == string(domain.DeliveryDirect) {
		mode = domain.DeliveryDirect
	}
	return &domain.Task{
		Points:         s.Points,
		CorrectAnswers: s.Answers,
		CaseSensitive:  s.CaseSensitive,
		PrerequisiteID: prereqID,
		DeliveryMode:   mode,
		ScheduledAt:    s.At,
		Description:    s.Description,
	}
}

// TaskAdder is the slice of the engine the importer needs.
type TaskAdder interface {
	AddTask(t *domain.Task) (int, error)
}

// Import creates every seed in order, resolving Requires references to the
// ids assigned along the way. Returns the created ids.
func Import(adder TaskAdder, seeds []Seed) ([]int, error) {
	ids := make([]int, 0, len(seeds))
	for i, s := range seeds {
		var prereq *int
		if s.Requires > 0 {
			id := ids[s.Requires-1]
			prereq = &id
		}
		id, err := adder.AddTask(s.Task(prereq))
		if err != nil {
			return ids, fmt.Errorf("import seed %d: %w", i+1, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
