package game

import (
	"github.com/kiwicki/asgardbot/internal/domain"
)

// Game is the aggregate root: every task, every player and the unlock index
// mapping a prerequisite task to the task it unlocks. One instance lives for
// the whole process and is round-tripped through the snapshot store.
type Game struct {
	Tasks   map[int]*domain.Task      `json:"tasks"`
	Players map[string]*domain.Player `json:"players"`
	// Unlocks maps prerequisite task id to the dependent task id. A
	// prerequisite has at most one dependent.
	Unlocks map[int]int `json:"unlockIndex"`
}

// NewGame returns an empty game.
func NewGame() *Game {
	return &Game{
		Tasks:   make(map[int]*domain.Task),
		Players: make(map[string]*domain.Player),
		Unlocks: make(map[int]int),
	}
}

// NextTaskID returns the id for the next created task: one past the highest
// existing id. Deleted ids are never reused, so a fresh task can't collide
// with a surviving one.
func (g *Game) NextTaskID() int {
	max := 0
	for id := range g.Tasks {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// EnsurePlayer returns the player with the given id, creating it if absent.
func (g *Game) EnsurePlayer(id string) *domain.Player {
	if p, ok := g.Players[id]; ok {
		return p
	}
	p := domain.NewPlayer(id)
	g.Players[id] = p
	return p
}
