package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryMode controls how a task reaches players.
type DeliveryMode string

const (
	// DeliveryBroadcast posts the task once to the quest channel.
	DeliveryBroadcast DeliveryMode = "broadcast"
	// DeliveryDirect sends the task individually to each current player.
	DeliveryDirect DeliveryMode = "direct"
)

// Receipt is an opaque handle to a sent message, kept so the task text can be
// edited or deleted later. ScheduleID is set when the send was deferred and
// has not fired yet.
type Receipt struct {
	Chat       string `json:"chat"`
	MessageID  int    `json:"messageId"`
	ScheduleID string `json:"scheduleId,omitempty"`
}

// Task is one quest item: a question (or announcement), its reward, its
// answer-checking rule and its delivery bookkeeping.
type Task struct {
	ID               int          `json:"id"`
	Points           int          `json:"points"`
	CorrectAnswers   []string     `json:"correctAnswers"`
	CaseSensitive    bool         `json:"caseSensitive"`
	PrerequisiteID   *int         `json:"prerequisiteId,omitempty"`
	DeliveryMode     DeliveryMode `json:"deliveryMode"`
	ScheduledAt      *time.Time   `json:"scheduledAt,omitempty"`
	Description      string       `json:"description"`
	SolvedCount      int          `json:"solvedCount"`
	DeliveryReceipts []Receipt    `json:"deliveryReceipts,omitempty"`
}

// CheckAnswer reports whether candidate matches one of the accepted answers.
// Insensitive matching compares lowercased strings, not case folds: 'ſ' does
// not pass for "s". Tasks with no accepted answers are announcements and can
// never be solved.
func (t *Task) CheckAnswer(candidate string) bool {
	if len(t.CorrectAnswers) == 0 {
		return false
	}
	for _, answer := range t.CorrectAnswers {
		if t.CaseSensitive {
			if candidate == answer {
				return true
			}
		} else if strings.ToLower(candidate) == strings.ToLower(answer) {
			return true
		}
	}
	return false
}

// Delivered reports whether at least one delivery receipt is recorded.
func (t *Task) Delivered() bool {
	return len(t.DeliveryReceipts) > 0
}

// MarkDelivered appends a delivery receipt. A broadcast task keeps a single
// receipt: re-marking it returns ErrAlreadyDelivered so the same announcement
// is never posted to the channel twice. Direct tasks append one receipt per
// recipient.
func (t *Task) MarkDelivered(r Receipt) error {
	if t.DeliveryMode == DeliveryBroadcast && t.Delivered() {
		return ErrAlreadyDelivered
	}
	t.DeliveryReceipts = append(t.DeliveryReceipts, r)
	return nil
}

// ResetDeliveries clears all receipts, allowing a broadcast task to be posted
// again.
func (t *Task) ResetDeliveries() {
	t.DeliveryReceipts = nil
}

// Render returns the display text, prefixed with the task id and reward.
func (t *Task) Render() string {
	if t.Points == 1 {
		return fmt.Sprintf("⚔️ Task %d (1 point)\n\n%s", t.ID, t.Description)
	}
	return fmt.Sprintf("⚔️ Task %d (%d points)\n\n%s", t.ID, t.Points, t.Description)
}

// TaskPatch is a partial update for a task. Nil fields are left untouched;
// the Clear flags reset their optional counterparts.
type TaskPatch struct {
	Description    *string
	Points         *int
	CorrectAnswers []string
	CaseSensitive  *bool
	PrerequisiteID *int
	ClearPrereq    bool
	DeliveryMode   *DeliveryMode
	ScheduledAt    *time.Time
	ClearSchedule  bool
}

// Apply copies the set fields of the patch onto the task. The task id is
// immutable and is not part of the patch.
func (t *Task) Apply(p TaskPatch) {
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Points != nil {
		t.Points = *p.Points
	}
	if p.CorrectAnswers != nil {
		t.CorrectAnswers = p.CorrectAnswers
	}
	if p.CaseSensitive != nil {
		t.CaseSensitive = *p.CaseSensitive
	}
	if p.ClearPrereq {
		t.PrerequisiteID = nil
	} else if p.PrerequisiteID != nil {
		t.PrerequisiteID = p.PrerequisiteID
	}
	if p.DeliveryMode != nil {
		t.DeliveryMode = *p.DeliveryMode
	}
	if p.ClearSchedule {
		t.ScheduledAt = nil
	} else if p.ScheduledAt != nil {
		t.ScheduledAt = p.ScheduledAt
	}
}
