// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/transport"
	"github.com/taibuivan/kaiwa/internal/platform/validate"
	"github.com/taibuivan/kaiwa/pkg/pagination"
)

// # Endpoint Map

const (
	chatsPath    = "/api/chats"
	settingsPath = "/api/chats/settings"
)

func chatPath(chatID int64) string {
	return fmt.Sprintf("%s/%d", chatsPath, chatID)
}

func messagesPath(chatID int64) string {
	return fmt.Sprintf("%s/%d/messages", chatsPath, chatID)
}

func settingsModePath(mode Mode) string {
	return fmt.Sprintf("%s/%s", settingsPath, mode)
}

// ListFilter holds the parameters for a filtered conversation list.
type ListFilter struct {
	// Mode restricts the list to one assistant mode; empty means all.
	Mode Mode
	// IncludeArchived also returns archived conversations.
	IncludeArchived bool
	// Page bounds the result window.
	Page pagination.Params
}

// # Backend Surface

// Service is the typed surface over the backend's /api/chats endpoints.
type Service struct {
	client *transport.Client
}

// NewService constructs the chat endpoint surface on top of the transport client.
func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

/*
Create opens a new conversation.

Parameters:
  - context: context.Context
  - input: CreateInput

Returns:
  - *Chat: Created conversation with a zero message count
  - error: Validation or transport failures
*/
func (service *Service) Create(context context.Context, input CreateInput) (*Chat, error) {
	validator := &validate.Validator{}
	err := validator.
		Required("title", input.Title).
		MaxLen("title", input.Title, MaxTitleLen).
		Custom("mode", !input.Mode.IsValid(), "Unknown assistant mode").
		Err()
	if err != nil {
		return nil, err
	}

	created := &Chat{}
	err = service.client.Do(context, transport.Request{
		Method: http.MethodPost,
		Path:   chatsPath,
		Body:   input,
		Out:    created,
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

/*
List returns the account's conversations, pinned first, then most recently
updated. Each entry carries its message count and last message.

Parameters:
  - context: context.Context
  - filter: ListFilter

Returns:
  - []Chat: Window of conversations
  - error: Transport failures
*/
func (service *Service) List(context context.Context, filter ListFilter) ([]Chat, error) {
	page := filter.Page.Normalize()

	query := url.Values{}
	query.Set("limit", strconv.Itoa(page.Limit))
	query.Set("offset", strconv.Itoa(page.Offset))
	if filter.Mode != "" {
		query.Set("mode", string(filter.Mode))
	}
	if filter.IncludeArchived {
		query.Set("include_archived", "true")
	}

	chats := []Chat{}
	err := service.client.Do(context, transport.Request{
		Method: http.MethodGet,
		Path:   chatsPath,
		Query:  query,
		Out:    &chats,
	})
	if err != nil {
		return nil, err
	}

	return chats, nil
}

/*
Get fetches one conversation with its full message history.

Parameters:
  - context: context.Context
  - chatID: int64

Returns:
  - *Detail: Conversation with messages in chronological order
  - error: NotFound or transport failures
*/
func (service *Service) Get(context context.Context, chatID int64) (*Detail, error) {
	detail := &Detail{}

	err := service.client.Do(context, transport.Request{
		Method: http.MethodGet,
		Path:   chatPath(chatID),
		Out:    detail,
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

/*
Update applies a partial mutation to a conversation.

Parameters:
  - context: context.Context
  - chatID: int64
  - input: UpdateInput

Returns:
  - *Chat: Updated conversation
  - error: NotFound, validation, or transport failures
*/
func (service *Service) Update(context context.Context, chatID int64, input UpdateInput) (*Chat, error) {
	if input.Title != nil {
		validator := &validate.Validator{}
		err := validator.
			Required("title", *input.Title).
			MaxLen("title", *input.Title, MaxTitleLen).
			Err()
		if err != nil {
			return nil, err
		}
	}

	updated := &Chat{}
	err := service.client.Do(context, transport.Request{
		Method: http.MethodPut,
		Path:   chatPath(chatID),
		Body:   input,
		Out:    updated,
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Rename changes a conversation's title.
func (service *Service) Rename(context context.Context, chatID int64, title string) (*Chat, error) {
	return service.Update(context, chatID, UpdateInput{Title: &title})
}

// SetPinned pins or unpins a conversation.
func (service *Service) SetPinned(context context.Context, chatID int64, pinned bool) (*Chat, error) {
	return service.Update(context, chatID, UpdateInput{IsPinned: &pinned})
}

// SetArchived archives or restores a conversation.
func (service *Service) SetArchived(context context.Context, chatID int64, archived bool) (*Chat, error) {
	return service.Update(context, chatID, UpdateInput{IsArchived: &archived})
}

/*
Delete permanently removes a conversation and its messages.

Parameters:
  - context: context.Context
  - chatID: int64

Returns:
  - error: NotFound or transport failures
*/
func (service *Service) Delete(context context.Context, chatID int64) error {
	return service.client.Do(context, transport.Request{
		Method: http.MethodDelete,
		Path:   chatPath(chatID),
	})
}

/*
SendMessage appends an account-authored message to a conversation.

Description: The backend assigns the user role itself; a client cannot
impersonate the assistant. The conversation's updated timestamp moves,
which resorts it in the sidebar.

Parameters:
  - context: context.Context
  - chatID: int64
  - content: string
  - metadata: map[string]any

Returns:
  - *Message: Stored message
  - error: NotFound, validation, or transport failures
*/
func (service *Service) SendMessage(context context.Context, chatID int64, content string, metadata map[string]any) (*Message, error) {
	validator := &validate.Validator{}
	if err := validator.Required("content", content).Err(); err != nil {
		return nil, err
	}

	body := map[string]any{"content": content}
	if metadata != nil {
		body["message_metadata"] = metadata
	}

	message := &Message{}
	err := service.client.Do(context, transport.Request{
		Method: http.MethodPost,
		Path:   messagesPath(chatID),
		Body:   body,
		Out:    message,
	})
	if err != nil {
		return nil, err
	}

	return message, nil
}

/*
Messages returns a window of a conversation's history in chronological
order.

Parameters:
  - context: context.Context
  - chatID: int64
  - page: pagination.Params

Returns:
  - []Message: Oldest-first window
  - error: NotFound or transport failures
*/
func (service *Service) Messages(context context.Context, chatID int64, page pagination.Params) ([]Message, error) {
	page = page.Normalize()

	query := url.Values{}
	query.Set("limit", strconv.Itoa(page.Limit))
	query.Set("offset", strconv.Itoa(page.Offset))

	messages := []Message{}
	err := service.client.Do(context, transport.Request{
		Method: http.MethodGet,
		Path:   messagesPath(chatID),
		Query:  query,
		Out:    &messages,
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}

/*
Settings fetches the account's configuration for one assistant mode.

Description: An account that never customized the mode receives the
backend's defaults with a zero settings ID.

Parameters:
  - context: context.Context
  - mode: Mode

Returns:
  - *Settings: Stored or default configuration
  - error: Transport failures
*/
func (service *Service) Settings(context context.Context, mode Mode) (*Settings, error) {
	if !mode.IsValid() {
		return nil, apperr.Validation("Unknown assistant mode")
	}

	settings := &Settings{}
	err := service.client.Do(context, transport.Request{
		Method: http.MethodGet,
		Path:   settingsModePath(mode),
		Out:    settings,
	})
	if err != nil {
		return nil, err
	}

	return settings, nil
}

/*
UpdateSettings stores the account's configuration for one assistant mode,
creating it when absent.

Parameters:
  - context: context.Context
  - mode: Mode
  - values: map[string]any

Returns:
  - *Settings: Stored configuration
  - error: Validation or transport failures
*/
func (service *Service) UpdateSettings(context context.Context, mode Mode, values map[string]any) (*Settings, error) {
	if !mode.IsValid() {
		return nil, apperr.Validation("Unknown assistant mode")
	}

	settings := &Settings{}
	err := service.client.Do(context, transport.Request{
		Method: http.MethodPut,
		Path:   settingsModePath(mode),
		Body:   map[string]any{"settings": values},
		Out:    settings,
	})
	if err != nil {
		return nil, err
	}

	return settings, nil
}
