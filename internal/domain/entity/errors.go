package entity

import "errors"

var (
	// Turn errors
	ErrInvalidTurnID    = errors.New("invalid turn id")
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidChatID    = errors.New("invalid chat id")
	ErrEmptyTurnContent = errors.New("turn content is empty")

	// Conversation errors
	ErrInvalidConversationID = errors.New("invalid conversation id")
)
