package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/kiwicki/asgardbot/internal/domain"
)

// Messenger is the outbound side of the chat platform as the engine sees it.
// Transport details live in internal/messenger.
type Messenger interface {
	SendDirect(ctx context.Context, text string, recipients []string) ([]domain.Receipt, error)
	SendToChannel(ctx context.Context, text, channel string, at *time.Time) (domain.Receipt, error)
}

// Saver persists the full game aggregate. The snapshot store implements it.
type Saver interface {
	Save(g *Game) error
}

// MessageKind classifies the outcome of an inbound event.
type MessageKind string

const (
	OuterMessage MessageKind = "outer_message"
	RightAnswer  MessageKind = "right_answer"
	WrongAnswer  MessageKind = "wrong_answer"
	AdminMessage MessageKind = "admin_message"
)

// Event is one inbound chat message, with the task context already resolved
// by the caller from reply metadata. TaskID is nil for ambient chatter.
type Event struct {
	Text      string
	PlayerID  string
	ChannelID string
	TaskID    *int
}

// Result is what the engine wants said back to the player.
type Result struct {
	Kind  MessageKind
	Reply string
	// Unlocked is set when a correct answer triggered delivery of a
	// dependent task.
	Unlocked *domain.Task
}

// Standing is one leaderboard row.
type Standing struct {
	PlayerID string
	Score    int
	Solved   int
}

// Engine owns the game aggregate. Every operation runs under one mutex, so
// each inbound event is handled to completion before the next mutation: one
// logical writer, no interleaving. State is mutated in memory first, outbound
// sends come after, and the snapshot is written after every mutating call.
type Engine struct {
	mu      sync.Mutex
	game    *Game
	msg     Messenger
	saver   Saver
	channel string
	rnd     *rand.Rand
}

// NewEngine wires the engine. A nil rnd falls back to a time-seeded source;
// tests pass a fixed seed for deterministic flavor lines.
func NewEngine(g *Game, msg Messenger, saver Saver, channel string, rnd *rand.Rand) *Engine {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{game: g, msg: msg, saver: saver, channel: channel, rnd: rnd}
}

// AddPlayer registers a player. Safe to call on every inbound update.
func (e *Engine) AddPlayer(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.game.Players[id]; ok {
		return nil
	}
	e.game.EnsurePlayer(id)
	return e.persistLocked()
}

// AddTask inserts a task and returns its id. A zero id gets the next free
// one; ids of deleted tasks are not reused. Inserting an explicit id that is
// already taken fails with ErrTaskExists rather than silently dropping the
// task. A prerequisite registers the unlock edge prerequisite -> new task.
func (e *Engine) AddTask(t *domain.Task) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.ID == 0 {
		t.ID = e.game.NextTaskID()
	}
	if _, exists := e.game.Tasks[t.ID]; exists {
		return t.ID, domain.ErrTaskExists
	}
	e.game.Tasks[t.ID] = t
	if t.PrerequisiteID != nil {
		e.game.Unlocks[*t.PrerequisiteID] = t.ID
	}
	return t.ID, e.persistLocked()
}

// DeleteTask removes a task. Points already awarded for it stay awarded, and
// unlock edges pointing at it are left in place; resolving either is a
// deliberate non-goal of deletion.
func (e *Engine) DeleteTask(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.game.Tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(e.game.Tasks, id)
	return e.persistLocked()
}

// EditTask applies a typed partial update. Changing the prerequisite moves
// the unlock edge; editing never schedules delivery by itself — that is an
// explicit SendTask call.
func (e *Engine) EditTask(id int, patch domain.TaskPatch) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.game.Tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if patch.ClearPrereq || patch.PrerequisiteID != nil {
		if t.PrerequisiteID != nil && e.game.Unlocks[*t.PrerequisiteID] == t.ID {
			delete(e.game.Unlocks, *t.PrerequisiteID)
		}
	}
	t.Apply(patch)
	if t.PrerequisiteID != nil {
		e.game.Unlocks[*t.PrerequisiteID] = t.ID
	}
	return *t, e.persistLocked()
}

// HandleAnswer is the answer state machine. The outcome is a pure function of
// task existence, completion status and answer correctness; only the two
// scoring branches mutate state.
func (e *Engine) HandleAnswer(ctx context.Context, ev Event) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.TaskID == nil {
		return Result{Kind: OuterMessage, Reply: e.pick(outerQuotes)}, nil
	}
	task, ok := e.game.Tasks[*ev.TaskID]
	if !ok {
		return Result{Kind: OuterMessage, Reply: msgNoSuchTask}, nil
	}
	if p, ok := e.game.Players[ev.PlayerID]; ok && p.Completed(task.ID) {
		return Result{Kind: OuterMessage, Reply: msgAlreadySolved}, nil
	}

	player := e.game.EnsurePlayer(ev.PlayerID)
	if !task.CheckAnswer(ev.Text) {
		player.RecordIncorrect(task)
		return Result{Kind: WrongAnswer, Reply: e.pick(wrongQuotes)}, e.persistLocked()
	}

	player.RecordCorrect(task)
	res := Result{Kind: RightAnswer, Reply: e.pick(correctQuotes)}
	res.Unlocked = e.deliverUnlockedLocked(ctx, task.ID, player.ID)
	return res, e.persistLocked()
}

// CompleteForPlayer is the administrative override: branch four of the state
// machine without the answer check, guarded by the same already-completed
// check. Used for manual grading of tasks that have no text answer.
func (e *Engine) CompleteForPlayer(ctx context.Context, playerID string, taskID int) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.game.Tasks[taskID]
	if !ok {
		return Result{}, domain.ErrTaskNotFound
	}
	if p, ok := e.game.Players[playerID]; ok && p.Completed(taskID) {
		return Result{}, domain.ErrTaskAlreadyDone
	}

	player := e.game.EnsurePlayer(playerID)
	player.RecordCorrect(task)
	res := Result{
		Kind:  AdminMessage,
		Reply: fmt.Sprintf("✅ Task %d marked as completed for %s (+%d points).", taskID, playerID, task.Points),
	}
	res.Unlocked = e.deliverUnlockedLocked(ctx, taskID, playerID)
	return res, e.persistLocked()
}

// SendTask delivers a task: broadcast posts once to the quest channel
// (deferred when the task is scheduled), direct sends to every current
// player. Receipts are recorded and persisted.
func (e *Engine) SendTask(ctx context.Context, taskID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.game.Tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if task.Description == "" {
		return domain.ErrTaskNotSendable
	}

	switch task.DeliveryMode {
	case domain.DeliveryDirect:
		recipients := e.playerIDsLocked()
		if len(recipients) == 0 {
			return domain.ErrNoRecipients
		}
		receipts, err := e.msg.SendDirect(ctx, task.Render(), recipients)
		for _, r := range receipts {
			task.MarkDelivered(r)
		}
		if err != nil {
			return fmt.Errorf("send task %d: %w", taskID, err)
		}
	default:
		if task.Delivered() {
			return domain.ErrAlreadyDelivered
		}
		receipt, err := e.msg.SendToChannel(ctx, task.Render(), e.channel, task.ScheduledAt)
		if err != nil {
			return fmt.Errorf("send task %d: %w", taskID, err)
		}
		task.MarkDelivered(receipt)
	}
	return e.persistLocked()
}

// ResetTaskDeliveries clears a task's receipts so a broadcast can be posted
// again.
func (e *Engine) ResetTaskDeliveries(taskID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.game.Tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	task.ResetDeliveries()
	return e.persistLocked()
}

// TaskByID returns a copy of the task.
func (e *Engine) TaskByID(id int) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.game.Tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return *t, nil
}

// Tasks returns copies of all tasks ordered by id.
func (e *Engine) Tasks() []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Task, 0, len(e.game.Tasks))
	for _, t := range e.game.Tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlayerByID returns a copy of the player's state.
func (e *Engine) PlayerByID(id string) (domain.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.game.Players[id]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	cp := *p
	cp.CompletedTask = copyIntBoolMap(p.CompletedTask)
	cp.WrongAttempts = copyIntIntMap(p.WrongAttempts)
	cp.SolveRank = copyIntIntMap(p.SolveRank)
	return cp, nil
}

// Leaderboard returns standings sorted by score, ties broken by player id.
func (e *Engine) Leaderboard() []Standing {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Standing, 0, len(e.game.Players))
	for _, p := range e.game.Players {
		out = append(out, Standing{PlayerID: p.ID, Score: p.Score, Solved: len(p.CompletedTask)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

// ConfirmScheduledSend upgrades a schedule-only receipt once the deferred
// send has fired: the receipt gains the posted message id, so replies to the
// message resolve to the task and edits reach it. Unknown schedule ids are
// ignored; the task may have been reset or deleted while the timer ran.
func (e *Engine) ConfirmScheduledSend(scheduleID string, messageID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.game.Tasks {
		for i, r := range t.DeliveryReceipts {
			if r.ScheduleID != scheduleID {
				continue
			}
			t.DeliveryReceipts[i].MessageID = messageID
			t.DeliveryReceipts[i].ScheduleID = ""
			return e.persistLocked()
		}
	}
	slog.Debug("scheduled send confirmed for unknown receipt", "schedule_id", scheduleID)
	return nil
}

// ResolveReceipt maps a delivered message back to its task id. This is how
// a reply to a task message regains its task context.
func (e *Engine) ResolveReceipt(chat string, messageID int) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.game.Tasks {
		for _, r := range t.DeliveryReceipts {
			if r.Chat == chat && r.MessageID == messageID {
				return id, true
			}
		}
	}
	return 0, false
}

// Flush persists the aggregate. Called on shutdown.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistLocked()
}

// deliverUnlockedLocked sends the dependent of a just-completed task directly
// to the solver, if one is registered. A send failure is logged and does not
// undo the completed score: state consistency wins over delivery guarantees.
func (e *Engine) deliverUnlockedLocked(ctx context.Context, completedID int, playerID string) *domain.Task {
	depID, ok := e.game.Unlocks[completedID]
	if !ok {
		return nil
	}
	dep, ok := e.game.Tasks[depID]
	if !ok {
		// Dangling edge left behind by DeleteTask.
		slog.Warn("unlock edge points at missing task", "prerequisite", completedID, "dependent", depID)
		return nil
	}
	receipts, err := e.msg.SendDirect(ctx, dep.Render(), []string{playerID})
	for _, r := range receipts {
		if err := dep.MarkDelivered(r); err != nil {
			slog.Warn("record unlocked delivery", "task", dep.ID, "error", err)
		}
	}
	if err != nil {
		slog.Error("deliver unlocked task", "task", dep.ID, "player", playerID, "error", err)
	}
	return dep
}

func (e *Engine) playerIDsLocked() []string {
	ids := make([]string, 0, len(e.game.Players))
	for id := range e.game.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) persistLocked() error {
	if err := e.saver.Save(e.game); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (e *Engine) pick(pool []string) string {
	return pool[e.rnd.Intn(len(pool))]
}

func copyIntBoolMap(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntIntMap(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
