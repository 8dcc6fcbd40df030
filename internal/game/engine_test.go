package game_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/kiwicki/asgardbot/internal/domain"
	"github.com/kiwicki/asgardbot/internal/game"
)

type directSend struct {
	Text       string
	Recipients []string
}

type channelSend struct {
	Text    string
	Channel string
	At      *time.Time
}

// fakeMessenger records outbound traffic and can be told to fail. A channel
// send with a future timestamp yields a schedule-only receipt, the way the
// real adapter defers it.
type fakeMessenger struct {
	direct    []directSend
	channel   []channelSend
	fail      bool
	nextID    int
	scheduled int
}

func (f *fakeMessenger) SendDirect(_ context.Context, text string, recipients []string) ([]domain.Receipt, error) {
	if f.fail {
		return nil, errors.New("messenger down")
	}
	f.direct = append(f.direct, directSend{Text: text, Recipients: recipients})
	receipts := make([]domain.Receipt, 0, len(recipients))
	for _, r := range recipients {
		f.nextID++
		receipts = append(receipts, domain.Receipt{Chat: r, MessageID: f.nextID})
	}
	return receipts, nil
}

func (f *fakeMessenger) SendToChannel(_ context.Context, text, channel string, at *time.Time) (domain.Receipt, error) {
	if f.fail {
		return domain.Receipt{}, errors.New("messenger down")
	}
	f.channel = append(f.channel, channelSend{Text: text, Channel: channel, At: at})
	if at != nil && time.Until(*at) > 0 {
		f.scheduled++
		return domain.Receipt{Chat: channel, ScheduleID: fmt.Sprintf("s%d", f.scheduled)}, nil
	}
	f.nextID++
	return domain.Receipt{Chat: channel, MessageID: f.nextID}, nil
}

// fakeSaver counts snapshot writes and can be told to fail.
type fakeSaver struct {
	saves int
	err   error
}

func (f *fakeSaver) Save(*game.Game) error {
	if f.err != nil {
		return f.err
	}
	f.saves++
	return nil
}

func newTestEngine() (*game.Engine, *fakeMessenger, *fakeSaver) {
	msg := &fakeMessenger{}
	saver := &fakeSaver{}
	eng := game.NewEngine(game.NewGame(), msg, saver, "C1", rand.New(rand.NewSource(1)))
	return eng, msg, saver
}

func taskID(id int) *int { return &id }

func seedScenario(t *testing.T, eng *game.Engine) {
	t.Helper()
	if _, err := eng.AddTask(&domain.Task{Points: 10, CorrectAnswers: []string{"Odin"}, Description: "Who is the Allfather?"}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if err := eng.AddPlayer("U1"); err != nil {
		t.Fatalf("add player: %v", err)
	}
}

func TestCorrectAnswerScores(t *testing.T) {
	eng, _, _ := newTestEngine()
	seedScenario(t, eng)

	res, err := eng.HandleAnswer(context.Background(), game.Event{
		Text: "odin", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(1),
	})
	if err != nil {
		t.Fatalf("handle answer: %v", err)
	}
	if res.Kind != game.RightAnswer {
		t.Fatalf("expected RightAnswer, got %s", res.Kind)
	}
	if res.Reply == "" {
		t.Fatal("expected a flavor reply")
	}

	player, err := eng.PlayerByID("U1")
	if err != nil {
		t.Fatalf("player lookup: %v", err)
	}
	if player.Score != 10 {
		t.Fatalf("expected score 10, got %d", player.Score)
	}
	task, _ := eng.TaskByID(1)
	if task.SolvedCount != 1 {
		t.Fatalf("expected solvedCount 1, got %d", task.SolvedCount)
	}
}

func TestRepeatAnswerIsAlreadySolved(t *testing.T) {
	eng, _, saver := newTestEngine()
	seedScenario(t, eng)

	ev := game.Event{Text: "odin", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(1)}
	if _, err := eng.HandleAnswer(context.Background(), ev); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	savesAfterFirst := saver.saves

	res, err := eng.HandleAnswer(context.Background(), ev)
	if err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if res.Kind != game.OuterMessage {
		t.Fatalf("expected OuterMessage for repeat, got %s", res.Kind)
	}
	player, _ := eng.PlayerByID("U1")
	if player.Score != 10 {
		t.Fatalf("score changed on repeat: %d", player.Score)
	}
	if saver.saves != savesAfterFirst {
		t.Fatal("repeat answer persisted state")
	}
}

func TestWrongAnswerCounts(t *testing.T) {
	eng, _, _ := newTestEngine()
	seedScenario(t, eng)

	res, err := eng.HandleAnswer(context.Background(), game.Event{
		Text: "wrong", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(1),
	})
	if err != nil {
		t.Fatalf("handle answer: %v", err)
	}
	if res.Kind != game.WrongAnswer {
		t.Fatalf("expected WrongAnswer, got %s", res.Kind)
	}

	player, _ := eng.PlayerByID("U1")
	if player.WrongAttempts[1] != 1 {
		t.Fatalf("expected 1 wrong attempt, got %d", player.WrongAttempts[1])
	}
	if player.Score != 0 {
		t.Fatalf("wrong answer changed score: %d", player.Score)
	}
}

func TestCorrectAnswerUnlocksDependent(t *testing.T) {
	eng, msg, _ := newTestEngine()
	seedScenario(t, eng)
	if _, err := eng.AddTask(&domain.Task{
		Points:         5,
		CorrectAnswers: []string{"Heimdall"},
		Description:    "Who guards the bridge?",
		PrerequisiteID: taskID(1),
		DeliveryMode:   domain.DeliveryDirect,
	}); err != nil {
		t.Fatalf("add dependent: %v", err)
	}

	res, err := eng.HandleAnswer(context.Background(), game.Event{
		Text: "Odin", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(1),
	})
	if err != nil {
		t.Fatalf("handle answer: %v", err)
	}
	if res.Unlocked == nil || res.Unlocked.ID != 2 {
		t.Fatalf("expected task 2 unlocked, got %+v", res.Unlocked)
	}

	if len(msg.direct) != 1 {
		t.Fatalf("expected 1 direct send, got %d", len(msg.direct))
	}
	if got := msg.direct[0].Recipients; len(got) != 1 || got[0] != "U1" {
		t.Fatalf("dependent not sent to solver: %v", got)
	}

	task, _ := eng.TaskByID(2)
	if len(task.DeliveryReceipts) != 1 || task.DeliveryReceipts[0].Chat != "U1" {
		t.Fatalf("dependent receipt missing: %+v", task.DeliveryReceipts)
	}
}

func TestAmbientChatterIsOuterMessage(t *testing.T) {
	eng, _, saver := newTestEngine()
	seedScenario(t, eng)
	savesBefore := saver.saves

	res, err := eng.HandleAnswer(context.Background(), game.Event{
		Text: "anything", PlayerID: "U1", ChannelID: "C1",
	})
	if err != nil {
		t.Fatalf("handle answer: %v", err)
	}
	if res.Kind != game.OuterMessage {
		t.Fatalf("expected OuterMessage, got %s", res.Kind)
	}
	if res.Reply == "" {
		t.Fatal("expected an ambient quip")
	}

	player, _ := eng.PlayerByID("U1")
	if player.Score != 0 || len(player.WrongAttempts) != 0 {
		t.Fatalf("ambient chatter mutated player: %+v", player)
	}
	if saver.saves != savesBefore {
		t.Fatal("ambient chatter persisted state")
	}
}

func TestUnknownTaskIsOuterMessage(t *testing.T) {
	eng, _, _ := newTestEngine()
	seedScenario(t, eng)

	res, err := eng.HandleAnswer(context.Background(), game.Event{
		Text: "odin", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(99),
	})
	if err != nil {
		t.Fatalf("handle answer: %v", err)
	}
	if res.Kind != game.OuterMessage {
		t.Fatalf("expected OuterMessage, got %s", res.Kind)
	}
}

func TestFlavorSelectionIsSeedDeterministic(t *testing.T) {
	replies := func(seed int64) []string {
		msg := &fakeMessenger{}
		eng := game.NewEngine(game.NewGame(), msg, &fakeSaver{}, "C1", rand.New(rand.NewSource(seed)))
		var out []string
		for i := 0; i < 5; i++ {
			res, err := eng.HandleAnswer(context.Background(), game.Event{Text: "hi", PlayerID: "U1", ChannelID: "C1"})
			if err != nil {
				t.Fatalf("handle answer: %v", err)
			}
			out = append(out, res.Reply)
		}
		return out
	}

	first := replies(42)
	second := replies(42)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed diverged at %d: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestPersistFailurePropagates(t *testing.T) {
	msg := &fakeMessenger{}
	saver := &fakeSaver{}
	eng := game.NewEngine(game.NewGame(), msg, saver, "C1", rand.New(rand.NewSource(1)))
	if _, err := eng.AddTask(&domain.Task{Points: 1, CorrectAnswers: []string{"a"}, Description: "d"}); err != nil {
		t.Fatalf("add task: %v", err)
	}

	saver.err = errors.New("disk full")
	_, err := eng.HandleAnswer(context.Background(), game.Event{
		Text: "a", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(1),
	})
	if err == nil {
		t.Fatal("expected persist failure to propagate")
	}
}

func TestSendFailureDoesNotUndoScore(t *testing.T) {
	eng, msg, _ := newTestEngine()
	seedScenario(t, eng)
	if _, err := eng.AddTask(&domain.Task{
		Points: 5, CorrectAnswers: []string{"x"}, Description: "d",
		PrerequisiteID: taskID(1), DeliveryMode: domain.DeliveryDirect,
	}); err != nil {
		t.Fatalf("add dependent: %v", err)
	}

	msg.fail = true
	res, err := eng.HandleAnswer(context.Background(), game.Event{
		Text: "Odin", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(1),
	})
	if err != nil {
		t.Fatalf("handle answer: %v", err)
	}
	if res.Kind != game.RightAnswer {
		t.Fatalf("expected RightAnswer, got %s", res.Kind)
	}

	player, _ := eng.PlayerByID("U1")
	if player.Score != 10 {
		t.Fatalf("send failure corrupted score: %d", player.Score)
	}
}

func TestCompleteForPlayer(t *testing.T) {
	eng, _, _ := newTestEngine()
	seedScenario(t, eng)

	res, err := eng.CompleteForPlayer(context.Background(), "U1", 1)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Kind != game.AdminMessage {
		t.Fatalf("expected AdminMessage, got %s", res.Kind)
	}
	player, _ := eng.PlayerByID("U1")
	if player.Score != 10 {
		t.Fatalf("expected score 10, got %d", player.Score)
	}

	if _, err := eng.CompleteForPlayer(context.Background(), "U1", 1); !errors.Is(err, domain.ErrTaskAlreadyDone) {
		t.Fatalf("expected ErrTaskAlreadyDone, got %v", err)
	}
	if _, err := eng.CompleteForPlayer(context.Background(), "U1", 99); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestSendTaskBroadcastOnce(t *testing.T) {
	eng, msg, _ := newTestEngine()
	seedScenario(t, eng)

	if err := eng.SendTask(context.Background(), 1); err != nil {
		t.Fatalf("send task: %v", err)
	}
	if len(msg.channel) != 1 || msg.channel[0].Channel != "C1" {
		t.Fatalf("broadcast not posted to quest channel: %+v", msg.channel)
	}

	if err := eng.SendTask(context.Background(), 1); !errors.Is(err, domain.ErrAlreadyDelivered) {
		t.Fatalf("expected ErrAlreadyDelivered, got %v", err)
	}

	if err := eng.ResetTaskDeliveries(1); err != nil {
		t.Fatalf("reset deliveries: %v", err)
	}
	if err := eng.SendTask(context.Background(), 1); err != nil {
		t.Fatalf("send after reset: %v", err)
	}
	if len(msg.channel) != 2 {
		t.Fatalf("expected 2 posts after reset, got %d", len(msg.channel))
	}
}

func TestConfirmScheduledSendUpgradesReceipt(t *testing.T) {
	eng, _, saver := newTestEngine()
	at := time.Now().Add(time.Hour)
	if _, err := eng.AddTask(&domain.Task{
		Points: 1, CorrectAnswers: []string{"a"}, Description: "later", ScheduledAt: &at,
	}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if err := eng.SendTask(context.Background(), 1); err != nil {
		t.Fatalf("send task: %v", err)
	}

	task, _ := eng.TaskByID(1)
	if len(task.DeliveryReceipts) != 1 || task.DeliveryReceipts[0].ScheduleID != "s1" {
		t.Fatalf("expected a schedule-only receipt, got %+v", task.DeliveryReceipts)
	}
	if _, ok := eng.ResolveReceipt("C1", 42); ok {
		t.Fatal("resolved a message that has not been posted yet")
	}

	saves := saver.saves
	if err := eng.ConfirmScheduledSend("s1", 42); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if id, ok := eng.ResolveReceipt("C1", 42); !ok || id != 1 {
		t.Fatalf("posted message does not resolve to its task: id=%d ok=%v", id, ok)
	}
	task, _ = eng.TaskByID(1)
	if r := task.DeliveryReceipts[0]; r.MessageID != 42 || r.ScheduleID != "" {
		t.Fatalf("receipt not upgraded: %+v", r)
	}
	if saver.saves != saves+1 {
		t.Fatalf("upgrade not persisted: %d saves, want %d", saver.saves, saves+1)
	}

	// A schedule id with no receipt left is quietly ignored.
	if err := eng.ConfirmScheduledSend("gone", 7); err != nil {
		t.Fatalf("confirm unknown: %v", err)
	}
}

func TestSendTaskDirectReachesAllPlayers(t *testing.T) {
	eng, msg, _ := newTestEngine()
	if _, err := eng.AddTask(&domain.Task{
		Points: 3, CorrectAnswers: []string{"a"}, Description: "d",
		DeliveryMode: domain.DeliveryDirect,
	}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	for _, id := range []string{"U2", "U1", "U3"} {
		if err := eng.AddPlayer(id); err != nil {
			t.Fatalf("add player: %v", err)
		}
	}

	if err := eng.SendTask(context.Background(), 1); err != nil {
		t.Fatalf("send task: %v", err)
	}
	if len(msg.direct) != 1 {
		t.Fatalf("expected 1 direct batch, got %d", len(msg.direct))
	}
	got := msg.direct[0].Recipients
	want := []string{"U1", "U2", "U3"}
	if len(got) != len(want) {
		t.Fatalf("recipients mismatch: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recipients not sorted: %v", got)
		}
	}

	task, _ := eng.TaskByID(1)
	if len(task.DeliveryReceipts) != 3 {
		t.Fatalf("expected 3 receipts, got %d", len(task.DeliveryReceipts))
	}
}

func TestEditTaskMovesUnlockEdge(t *testing.T) {
	eng, _, _ := newTestEngine()
	seedScenario(t, eng)
	if _, err := eng.AddTask(&domain.Task{Points: 2, CorrectAnswers: []string{"b"}, Description: "second"}); err != nil {
		t.Fatalf("add second: %v", err)
	}
	if _, err := eng.AddTask(&domain.Task{
		Points: 3, CorrectAnswers: []string{"c"}, Description: "third",
		PrerequisiteID: taskID(1), DeliveryMode: domain.DeliveryDirect,
	}); err != nil {
		t.Fatalf("add third: %v", err)
	}

	// Move the prerequisite of task 3 from task 1 to task 2.
	if _, err := eng.EditTask(3, domain.TaskPatch{PrerequisiteID: taskID(2)}); err != nil {
		t.Fatalf("edit task: %v", err)
	}

	// Solving task 1 no longer unlocks anything.
	res, err := eng.HandleAnswer(context.Background(), game.Event{
		Text: "Odin", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(1),
	})
	if err != nil {
		t.Fatalf("answer task 1: %v", err)
	}
	if res.Unlocked != nil {
		t.Fatalf("stale unlock edge survived edit: %+v", res.Unlocked)
	}

	// Solving task 2 now unlocks task 3.
	res, err = eng.HandleAnswer(context.Background(), game.Event{
		Text: "b", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(2),
	})
	if err != nil {
		t.Fatalf("answer task 2: %v", err)
	}
	if res.Unlocked == nil || res.Unlocked.ID != 3 {
		t.Fatalf("expected task 3 unlocked, got %+v", res.Unlocked)
	}
}

func TestDeleteTaskLeavesDanglingEdge(t *testing.T) {
	eng, msg, _ := newTestEngine()
	seedScenario(t, eng)
	if _, err := eng.AddTask(&domain.Task{
		Points: 2, CorrectAnswers: []string{"b"}, Description: "second",
		PrerequisiteID: taskID(1), DeliveryMode: domain.DeliveryDirect,
	}); err != nil {
		t.Fatalf("add second: %v", err)
	}
	if err := eng.DeleteTask(2); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The edge 1 -> 2 is still registered but must not break answering.
	res, err := eng.HandleAnswer(context.Background(), game.Event{
		Text: "Odin", PlayerID: "U1", ChannelID: "C1", TaskID: taskID(1),
	})
	if err != nil {
		t.Fatalf("handle answer: %v", err)
	}
	if res.Kind != game.RightAnswer || res.Unlocked != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(msg.direct) != 0 {
		t.Fatal("delivered a deleted task")
	}
}

func TestAddTaskAfterDeleteKeepsNewTask(t *testing.T) {
	eng, _, _ := newTestEngine()
	for i, answer := range []string{"a", "b", "c"} {
		if _, err := eng.AddTask(&domain.Task{Points: 1, CorrectAnswers: []string{answer}, Description: "t"}); err != nil {
			t.Fatalf("add task %d: %v", i+1, err)
		}
	}
	if err := eng.DeleteTask(2); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The fresh task must not land on a live id: task 3 stays intact and the
	// new one is reachable under its own id.
	id, err := eng.AddTask(&domain.Task{Points: 99, CorrectAnswers: []string{"new"}, Description: "fourth"})
	if err != nil {
		t.Fatalf("add after delete: %v", err)
	}
	if id != 4 {
		t.Fatalf("expected id 4, got %d", id)
	}
	created, err := eng.TaskByID(id)
	if err != nil {
		t.Fatalf("lookup created: %v", err)
	}
	if created.Description != "fourth" || created.Points != 99 {
		t.Fatalf("created task lost: %+v", created)
	}
	if survivor, err := eng.TaskByID(3); err != nil || survivor.Description != "t" {
		t.Fatalf("surviving task damaged: %+v, %v", survivor, err)
	}

	// An explicit id that is taken is an error, never a silent drop.
	if _, err := eng.AddTask(&domain.Task{ID: 3, Points: 1, CorrectAnswers: []string{"x"}, Description: "dupe"}); !errors.Is(err, domain.ErrTaskExists) {
		t.Fatalf("expected ErrTaskExists, got %v", err)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	eng, _, _ := newTestEngine()
	for i, tc := range []struct {
		answer string
		points int
	}{{"a", 10}, {"b", 5}, {"c", 10}} {
		if _, err := eng.AddTask(&domain.Task{Points: tc.points, CorrectAnswers: []string{tc.answer}, Description: "t"}); err != nil {
			t.Fatalf("add task %d: %v", i+1, err)
		}
	}

	ctx := context.Background()
	answer := func(player, text string, id int) {
		t.Helper()
		if _, err := eng.HandleAnswer(ctx, game.Event{Text: text, PlayerID: player, ChannelID: "C1", TaskID: taskID(id)}); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}
	answer("U1", "a", 1)
	answer("U1", "b", 2)
	answer("U2", "a", 1)
	answer("U3", "c", 3)

	top := eng.Leaderboard()
	if len(top) != 3 {
		t.Fatalf("expected 3 standings, got %d", len(top))
	}
	if top[0].PlayerID != "U1" || top[0].Score != 15 {
		t.Fatalf("expected U1 leading with 15, got %+v", top[0])
	}
	// U2 and U3 tie on 10; the tie breaks by id.
	if top[1].PlayerID != "U2" || top[2].PlayerID != "U3" {
		t.Fatalf("tie-break wrong: %+v", top[1:])
	}
}

func TestResolveReceipt(t *testing.T) {
	eng, _, _ := newTestEngine()
	seedScenario(t, eng)
	if err := eng.SendTask(context.Background(), 1); err != nil {
		t.Fatalf("send task: %v", err)
	}

	task, _ := eng.TaskByID(1)
	r := task.DeliveryReceipts[0]
	id, ok := eng.ResolveReceipt(r.Chat, r.MessageID)
	if !ok || id != 1 {
		t.Fatalf("resolve failed: id=%d ok=%v", id, ok)
	}
	if _, ok := eng.ResolveReceipt("C1", 9999); ok {
		t.Fatal("resolved a receipt that was never issued")
	}
}
