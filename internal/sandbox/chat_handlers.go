// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/kaiwa/internal/chat"
	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/validate"
	"github.com/taibuivan/kaiwa/pkg/pagination"
)

// # Request Payloads

type chatCreateRequest struct {
	Title string    `json:"title"`
	Mode  chat.Mode `json:"mode"`
}

// messageCreateRequest accepts the backend's metadata field name; the
// response serves it back as plain metadata.
type messageCreateRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"message_metadata"`
}

type settingsCreateRequest struct {
	Mode     chat.Mode      `json:"mode"`
	Settings map[string]any `json:"settings"`
}

type settingsUpdateRequest struct {
	Settings map[string]any `json:"settings"`
}

/*
createChat opens a new conversation.

POST /api/chats

Response:
  - 201: chat.Chat: Created conversation with message_count 0
  - 422: Title or mode validation failures
*/
func (server *Server) createChat(writer http.ResponseWriter, request *http.Request) {
	var input chatCreateRequest

	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	validator := &validate.Validator{}
	validator.Required("title", input.Title).
		MaxLen("title", input.Title, chat.MaxTitleLen).
		Custom("mode", !input.Mode.IsValid(), "Unknown assistant mode")

	if err := validator.Err(); err != nil {
		writeError(writer, apperr.As(err))
		return
	}

	created := server.state.CreateChat(accountFrom(request).ID, input.Title, input.Mode)
	writeJSON(writer, http.StatusCreated, created)
}

/*
listChats returns the account's conversations for the sidebar.

GET /api/chats?mode=&include_archived=&limit=&offset=

Response:
  - 200: []chat.Chat: Pinned first, then most recently updated
  - 422: Unknown mode filter
*/
func (server *Server) listChats(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	mode := chat.Mode(query.Get("mode"))
	if mode != "" && !mode.IsValid() {
		writeValidation(writer, "query", []apperr.FieldError{
			{Field: "mode", Message: "Unknown assistant mode"},
		})
		return
	}

	includeArchived, _ := strconv.ParseBool(query.Get("include_archived"))
	page := pagination.FromRequest(request)

	chats := server.state.ListChats(accountFrom(request).ID, mode, includeArchived, page)
	writeJSON(writer, http.StatusOK, chats)
}

/*
getChat returns one conversation with its full history.

GET /api/chats/{chatID}

Response:
  - 200: chat.Detail
  - 404: Chat not found
*/
func (server *Server) getChat(writer http.ResponseWriter, request *http.Request) {
	chatID, ok := chatIDParam(writer, request)
	if !ok {
		return
	}

	detail, appErr := server.state.GetChat(accountFrom(request).ID, chatID)
	if appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeJSON(writer, http.StatusOK, detail)
}

/*
updateChat applies a partial update to a conversation.

PUT /api/chats/{chatID}

Description: Only title, is_pinned, and is_archived are mutable; a chat's
mode is fixed at creation. Absent fields are left untouched.

Response:
  - 200: chat.Chat: Updated conversation
  - 404: Chat not found
  - 422: Title validation failures
*/
func (server *Server) updateChat(writer http.ResponseWriter, request *http.Request) {
	chatID, ok := chatIDParam(writer, request)
	if !ok {
		return
	}

	var input chat.UpdateInput
	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	if input.Title != nil {
		validator := &validate.Validator{}
		validator.Required("title", *input.Title).
			MaxLen("title", *input.Title, chat.MaxTitleLen)

		if err := validator.Err(); err != nil {
			writeError(writer, apperr.As(err))
			return
		}
	}

	updated, appErr := server.state.UpdateChat(accountFrom(request).ID, chatID, input)
	if appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeJSON(writer, http.StatusOK, updated)
}

/*
deleteChat removes a conversation and its messages.

DELETE /api/chats/{chatID}

Response:
  - 200: Chat deleted successfully
  - 404: Chat not found
*/
func (server *Server) deleteChat(writer http.ResponseWriter, request *http.Request) {
	chatID, ok := chatIDParam(writer, request)
	if !ok {
		return
	}

	if appErr := server.state.DeleteChat(accountFrom(request).ID, chatID); appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeMessage(writer, "Chat deleted successfully")
}

/*
createMessage appends a user message to a conversation.

POST /api/chats/{chatID}/messages

Response:
  - 201: chat.Message: Stored message, role forced to user
  - 404: Chat not found
  - 422: Empty content
*/
func (server *Server) createMessage(writer http.ResponseWriter, request *http.Request) {
	chatID, ok := chatIDParam(writer, request)
	if !ok {
		return
	}

	var input messageCreateRequest
	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	validator := &validate.Validator{}
	if err := validator.Required("content", input.Content).Err(); err != nil {
		writeError(writer, apperr.As(err))
		return
	}

	message, appErr := server.state.AddMessage(accountFrom(request).ID, chatID, input.Content, input.Metadata)
	if appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeJSON(writer, http.StatusCreated, message)
}

/*
listMessages returns a window of a conversation's messages, oldest first.

GET /api/chats/{chatID}/messages?limit=&offset=

Response:
  - 200: []chat.Message
  - 404: Chat not found
*/
func (server *Server) listMessages(writer http.ResponseWriter, request *http.Request) {
	chatID, ok := chatIDParam(writer, request)
	if !ok {
		return
	}

	messages, appErr := server.state.ListMessages(accountFrom(request).ID, chatID, pagination.FromRequest(request))
	if appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeJSON(writer, http.StatusOK, messages)
}

/*
createSettings stores a mode's configuration for the first time.

POST /api/chats/settings

Response:
  - 201: chat.Settings
  - 409: Settings already exist for this mode
  - 422: Unknown assistant mode
*/
func (server *Server) createSettings(writer http.ResponseWriter, request *http.Request) {
	var input settingsCreateRequest

	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	validator := &validate.Validator{}
	if err := validator.Custom("mode", !input.Mode.IsValid(), "Unknown assistant mode").Err(); err != nil {
		writeError(writer, apperr.As(err))
		return
	}

	created, appErr := server.state.CreateSettings(accountFrom(request).ID, input.Mode, input.Settings)
	if appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeJSON(writer, http.StatusCreated, created)
}

/*
getSettings returns a mode's configuration, or its defaults.

GET /api/chats/settings/{mode}

Response:
  - 200: chat.Settings: Stored values, or defaults with a zero ID
  - 422: Unknown assistant mode
*/
func (server *Server) getSettings(writer http.ResponseWriter, request *http.Request) {
	mode, ok := modeParam(writer, request)
	if !ok {
		return
	}

	writeJSON(writer, http.StatusOK, server.state.GetSettings(accountFrom(request).ID, mode))
}

/*
updateSettings replaces a mode's configuration, creating it when absent.

PUT /api/chats/settings/{mode}

Response:
  - 200: chat.Settings
  - 422: Unknown assistant mode
*/
func (server *Server) updateSettings(writer http.ResponseWriter, request *http.Request) {
	mode, ok := modeParam(writer, request)
	if !ok {
		return
	}

	var input settingsUpdateRequest
	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	writeJSON(writer, http.StatusOK, server.state.UpsertSettings(accountFrom(request).ID, mode, input.Settings))
}

// # Parameter Extraction

// chatIDParam parses the chat ID path segment, answering 422 like the
// production backend does for a non-integer value.
func chatIDParam(writer http.ResponseWriter, request *http.Request) (int64, bool) {
	raw := chi.URLParam(request, "chatID")

	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeValidation(writer, "path", []apperr.FieldError{
			{Field: "chat_id", Message: "Input should be a valid integer"},
		})
		return 0, false
	}

	return chatID, true
}

// modeParam parses the assistant mode path segment.
func modeParam(writer http.ResponseWriter, request *http.Request) (chat.Mode, bool) {
	mode := chat.Mode(chi.URLParam(request, "mode"))

	if !mode.IsValid() {
		writeValidation(writer, "path", []apperr.FieldError{
			{Field: "mode", Message: "Unknown assistant mode"},
		})
		return "", false
	}

	return mode, true
}
