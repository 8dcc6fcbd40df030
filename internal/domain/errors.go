package domain

import "errors"

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskExists       = errors.New("task id already taken")
	ErrTaskAlreadyDone  = errors.New("task already completed")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrAlreadyDelivered = errors.New("task already delivered")
	ErrTaskNotSendable  = errors.New("task has no description to send")
	ErrNoRecipients     = errors.New("no recipients for direct delivery")
	ErrBadSeedReference = errors.New("seed references an unknown task")
)
