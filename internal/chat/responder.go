// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Responder produces assistant replies locally.
//
// # Overview
//
// The backend stores conversations but does not run a model; replies are
// generated on the client and tagged as simulated so they are never
// mistaken for persisted backend messages. The same prompt always yields
// the same reply, which keeps transcripts reproducible.
type Responder struct {
	now func() time.Time
}

// NewResponder constructs a simulated-reply generator.
func NewResponder() *Responder {
	return &Responder{now: time.Now}
}

/*
Respond generates the assistant reply for a prompt.

Parameters:
  - chatID: int64
  - mode: Mode
  - content: string
  - settings: map[string]any

Returns:
  - Message: Local assistant message tagged as simulated
*/
func (responder *Responder) Respond(chatID int64, mode Mode, content string, settings map[string]any) Message {
	var reply string

	switch mode {
	case ModeImageProcessing:
		reply = imageReply(content)
	default:
		reply = similarQuestionsReply(content, maxQuestions(settings))
	}

	return Message{
		ChatID:  chatID,
		Role:    RoleAssistant,
		Content: reply,
		Metadata: map[string]any{
			"simulated": true,
			"mode":      string(mode),
		},
		CreatedAt: responder.now(),
	}
}

// maxQuestions resolves the question cap from mode settings, falling back
// to the backend default.
func maxQuestions(settings map[string]any) int {
	fallback := 5

	raw, ok := settings["max_questions"]
	if !ok {
		return fallback
	}

	// JSON decoding yields float64 for numbers; direct construction
	// yields int.
	switch value := raw.(type) {
	case int:
		if value > 0 {
			return value
		}
	case float64:
		if value > 0 {
			return int(value)
		}
	}

	return fallback
}

// questionStems are combined with the prompt's topic to produce related
// questions. Selection is keyed off the prompt so replies are stable.
var questionStems = []string{
	"What are the common variations of %s?",
	"How would %s change with different constraints?",
	"What background is needed to understand %s?",
	"Which edge cases of %s are usually missed?",
	"How is %s typically tested?",
	"What are frequent mistakes when approaching %s?",
	"How does %s compare to related problems?",
	"What simpler version of %s is worth solving first?",
}

func similarQuestionsReply(content string, limit int) string {
	topic := topicOf(content)
	if limit > len(questionStems) {
		limit = len(questionStems)
	}

	start := int(hashOf(content) % uint32(len(questionStems)))

	lines := make([]string, 0, limit+1)
	lines = append(lines, "Here are some related questions:")
	for i := 0; i < limit; i++ {
		stem := questionStems[(start+i)%len(questionStems)]
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, fmt.Sprintf(stem, topic)))
	}

	return strings.Join(lines, "\n")
}

func imageReply(content string) string {
	return fmt.Sprintf(
		"Image analysis complete. Detected subject: %s. "+
			"No enhancement was applied; enable auto_enhance in the mode settings to change that.",
		topicOf(content),
	)
}

// topicOf reduces a prompt to a short topic phrase for templating.
func topicOf(content string) string {
	trimmed := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(content), "?.!"))
	if trimmed == "" {
		return "your question"
	}

	words := strings.Fields(trimmed)
	if len(words) > 6 {
		words = words[len(words)-6:]
	}

	return strings.ToLower(strings.Join(words, " "))
}

func hashOf(content string) uint32 {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(content))
	return hasher.Sum32()
}
