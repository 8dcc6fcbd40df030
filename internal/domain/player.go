package domain

// Player holds one participant's score and completion history.
type Player struct {
	ID            string       `json:"id"`
	Score         int          `json:"score"`
	CompletedTask map[int]bool `json:"completedTaskIds"`
	WrongAttempts map[int]int  `json:"wrongAttemptCounts,omitempty"`
	SolveRank     map[int]int  `json:"solveRank,omitempty"`
}

// NewPlayer returns a fresh player with zero score.
func NewPlayer(id string) *Player {
	return &Player{
		ID:            id,
		CompletedTask: make(map[int]bool),
		WrongAttempts: make(map[int]int),
		SolveRank:     make(map[int]int),
	}
}

// Completed reports whether the player has already solved the task.
func (p *Player) Completed(taskID int) bool {
	return p.CompletedTask[taskID]
}

// RecordCorrect awards the task's points and marks it completed. Re-recording
// an already completed task is a no-op, so points are counted exactly once.
// The task's solved counter is bumped and its post-increment value becomes the
// player's solve rank: the first solver gets rank 1.
func (p *Player) RecordCorrect(t *Task) {
	if p.Completed(t.ID) {
		return
	}
	p.Score += t.Points
	p.CompletedTask[t.ID] = true
	t.SolvedCount++
	p.SolveRank[t.ID] = t.SolvedCount
}

// RecordIncorrect counts a wrong attempt. It increments unconditionally; the
// caller is expected to filter out attempts on already solved tasks.
func (p *Player) RecordIncorrect(t *Task) {
	p.WrongAttempts[t.ID]++
}
