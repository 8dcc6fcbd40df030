package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kiwicki/asgardbot/internal/domain"
	"github.com/kiwicki/asgardbot/internal/game"
)

// backupStamp is DDMMYY_HHMMSS, appended to the snapshot path on rotation.
const backupStamp = "020106_150405"

// Store persists the whole game aggregate as a single JSON snapshot file.
// Every save first renames the previous snapshot to a timestamped .bak, so a
// full backup trail accumulates next to the file. Pruning that trail is the
// deployment's job, not the store's.
type Store struct {
	Path string

	now func() time.Time
}

// New returns a store writing to path.
func New(path string) *Store {
	return &Store{Path: path, now: time.Now}
}

// Load reads the snapshot. A missing file yields a fresh empty game which is
// persisted immediately, so the file always exists after the first load.
func (s *Store) Load() (*game.Game, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		g := game.NewGame()
		if err := s.Save(g); err != nil {
			return nil, err
		}
		slog.Info("created fresh game snapshot", "path", s.Path)
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	g := game.NewGame()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	// Maps decode to nil when absent from an older snapshot.
	if g.Tasks == nil {
		g.Tasks = make(map[int]*domain.Task)
	}
	if g.Players == nil {
		g.Players = make(map[string]*domain.Player)
	}
	if g.Unlocks == nil {
		g.Unlocks = make(map[int]int)
	}
	return g, nil
}

// Save rotates the existing snapshot to <path><DDMMYY_HHMMSS>.bak and writes
// the new one. Implements game.Saver.
func (s *Store) Save(g *game.Game) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if _, err := os.Stat(s.Path); err == nil {
		if err := os.Rename(s.Path, s.backupName()); err != nil {
			return fmt.Errorf("rotate snapshot backup: %w", err)
		}
	}

	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// backupName returns an unused backup path. The stamp only has second
// precision, so saves within the same second get a numeric suffix instead of
// overwriting the earlier backup.
func (s *Store) backupName() string {
	stamp := s.now().Format(backupStamp)
	name := s.Path + stamp + ".bak"
	for i := 1; ; i++ {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s%s-%d.bak", s.Path, stamp, i)
	}
}
