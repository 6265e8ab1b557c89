// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package chat implements the conversation domain of the Kaiwa client.
//
// # Architecture
//
// The package mirrors the backend's chat resources (conversations,
// messages, per-mode settings) and layers the client-only concerns on
// top: simulated assistant replies and the grouped, searchable sidebar.
package chat

import "time"

// Mode selects the assistant behavior a conversation is bound to.
type Mode string

const (
	// ModeSimilarQuestions surfaces related questions for a prompt.
	ModeSimilarQuestions Mode = "similar_questions"
	// ModeImageProcessing analyzes and enhances uploaded images.
	ModeImageProcessing Mode = "image_processing"
)

// IsValid reports whether m is a recognised [Mode] value.
func (m Mode) IsValid() bool {
	switch m {
	case ModeSimilarQuestions, ModeImageProcessing:
		return true
	}
	return false
}

// Modes lists every recognised mode in display order.
func Modes() []Mode {
	return []Mode{ModeSimilarQuestions, ModeImageProcessing}
}

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message typed by the account holder.
	RoleUser Role = "user"
	// RoleAssistant marks a generated reply.
	RoleAssistant Role = "assistant"
	// RoleSystem marks backend-injected notices.
	RoleSystem Role = "system"
)

// Chat is a single conversation owned by the authenticated account.
//
// # Overview
//
// The list endpoints decorate each chat with its message count and most
// recent message so the sidebar renders without per-chat round trips.
type Chat struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Title      string    `json:"title"`
	Mode       Mode      `json:"mode"`
	IsPinned   bool      `json:"is_pinned"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	MessageCount int      `json:"message_count"`
	LastMessage  *Message `json:"last_message,omitempty"`
}

// Detail is a chat expanded with its full message history.
type Detail struct {
	Chat
	Messages []Message `json:"messages"`
}

// Message is a single utterance inside a chat.
type Message struct {
	ID        int64          `json:"id"`
	ChatID    int64          `json:"chat_id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsSimulated reports whether the message was generated locally rather
// than produced by the backend.
func (message Message) IsSimulated() bool {
	simulated, ok := message.Metadata["simulated"].(bool)
	return ok && simulated
}

// Settings carries the per-mode assistant configuration for an account.
type Settings struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Mode      Mode           `json:"mode"`
	Settings  map[string]any `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DefaultSettings returns the backend's fallback configuration for a mode.
//
// The values match what the settings endpoint serves when the account has
// never customized the mode.
func DefaultSettings(mode Mode) map[string]any {
	switch mode {
	case ModeSimilarQuestions:
		return map[string]any{
			"max_questions":        5,
			"similarity_threshold": 0.8,
			"include_context":      true,
		}
	case ModeImageProcessing:
		return map[string]any{
			"max_file_size":     "10MB",
			"supported_formats": []string{"jpg", "jpeg", "png", "gif", "webp"},
			"auto_enhance":      false,
		}
	}
	return map[string]any{}
}

// MaxTitleLen is the backend's upper bound on conversation titles.
const MaxTitleLen = 200

// CreateInput is the payload for opening a new conversation.
type CreateInput struct {
	Title string `json:"title"`
	Mode  Mode   `json:"mode"`
}

// UpdateInput is the partial payload for mutating a conversation.
// Nil fields are left untouched; the mode of a chat is fixed at creation.
type UpdateInput struct {
	Title      *string `json:"title,omitempty"`
	IsPinned   *bool   `json:"is_pinned,omitempty"`
	IsArchived *bool   `json:"is_archived,omitempty"`
}
