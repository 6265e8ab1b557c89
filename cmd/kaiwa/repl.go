// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/taibuivan/kaiwa/internal/chat"
	"github.com/taibuivan/kaiwa/internal/platform/prefs"
)

// replTitleLen caps how much of the opening message becomes the chat title.
const replTitleLen = 50

/*
chatRepl runs the interactive conversation loop.

Description: With a CHAT_ID argument it resumes that conversation and replays
its transcript. Without one it starts fresh and defers creation until the
first message, which also names the chat. Assistant replies are produced
locally and are not persisted, so only your side of the conversation survives
a restart.

Parameters:
  - c: *cli.Context

Returns:
  - error: When the session or the initial chat lookup fails
*/
func chatRepl(c *cli.Context) error {
	if c.Args().Len() > 1 {
		return errors.New("chat takes at most one argument: CHAT_ID")
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if _, err := d.requireSession(c.Context); err != nil {
		return err
	}

	session := &replSession{deps: d}

	if c.Args().Len() == 1 {
		chatID, err := parseChatID(c.Args().First())
		if err != nil {
			return err
		}

		detail, err := d.chats.Get(c.Context, chatID)
		if err != nil {
			return err
		}

		session.chatID = detail.ID
		session.title = detail.Title
		session.mode = detail.Mode
		session.transcript = detail.Messages
	} else {
		mode, err := d.activeMode(c.String(flagMode))
		if err != nil {
			return err
		}
		session.mode = mode
	}

	session.settings = d.fetchSettings(c.Context, session.mode)

	session.banner()
	return session.loop(c.Context)
}

// replSession holds the state of one interactive conversation.
type replSession struct {
	deps       *deps
	chatID     int64
	title      string
	mode       chat.Mode
	settings   map[string]any
	transcript []chat.Message
}

func (session *replSession) banner() {
	if session.chatID != 0 {
		styleHeading.Println(session.title)
	}
	styleFaint.Printf("Mode: %s. Replies are simulated locally.\n", session.mode)
	styleFaint.Println("Commands: /mode [name], /history, /quit.")

	if len(session.transcript) > 0 {
		session.printHistory()
	}
}

func (session *replSession) loop(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		styleUser.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			styleFaint.Println("Session closed.")
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := session.command(ctx, line); quit {
				return nil
			}
			continue
		}

		// A failed exchange should not kill the loop; the user can retry
		// or /quit.
		if err := session.exchange(ctx, line); err != nil {
			styleError.Println(err)
		}
	}
}

// command handles a slash command. The returned flag asks the loop to end.
func (session *replSession) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)

	switch fields[0] {
	case "/quit", "/exit":
		styleFaint.Println("Session closed.")
		return true
	case "/history":
		session.printHistory()
	case "/mode":
		session.switchMode(ctx, fields[1:])
	default:
		styleError.Printf("Unknown command %s. Commands: /mode, /history, /quit.\n", fields[0])
	}
	return false
}

// switchMode changes the assistant mode of a session that has not created
// its chat yet. A conversation's mode is fixed once it exists.
func (session *replSession) switchMode(ctx context.Context, arguments []string) {
	if len(arguments) == 0 {
		fmt.Printf("Mode: %s (available: %s)\n", session.mode, modeList())
		return
	}
	if session.chatID != 0 {
		styleError.Println("The mode is fixed once a chat exists; start a new chat to switch.")
		return
	}

	mode := chat.Mode(arguments[0])
	if !mode.IsValid() {
		styleError.Printf("Unknown assistant mode %q (valid: %s)\n", arguments[0], modeList())
		return
	}

	session.mode = mode
	session.settings = session.deps.fetchSettings(ctx, mode)
	styleFaint.Printf("Mode switched to %s.\n", mode)
}

func (session *replSession) exchange(ctx context.Context, content string) error {
	// 1. First message of a fresh session creates the chat and names it.
	if session.chatID == 0 {
		created, err := session.deps.chats.Create(ctx, chat.CreateInput{
			Title: titleFromMessage(content),
			Mode:  session.mode,
		})
		if err != nil {
			return err
		}

		session.chatID = created.ID
		session.title = created.Title
		styleFaint.Printf("Started chat %d: %s\n", created.ID, created.Title)
	}

	// 2. Persist the user message.
	sent, err := session.deps.chats.SendMessage(ctx, session.chatID, content, map[string]any{
		"client": "terminal",
	})
	if err != nil {
		return err
	}
	session.transcript = append(session.transcript, *sent)

	// 3. Answer locally.
	reply := session.deps.responder.Respond(session.chatID, session.mode, content, session.settings)
	session.transcript = append(session.transcript, reply)
	printMessage(reply)

	return nil
}

func (session *replSession) printHistory() {
	if len(session.transcript) == 0 {
		styleFaint.Println("No messages yet.")
		return
	}

	for _, message := range session.transcript {
		printMessage(message)
	}
}

func printMessage(message chat.Message) {
	if message.Role == chat.RoleUser {
		styleUser.Print("you> ")
	} else {
		styleReply.Print("kaiwa> ")
	}
	fmt.Println(message.Content)
}

// titleFromMessage derives a chat title from the opening message.
func titleFromMessage(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= replTitleLen {
		return string(runes)
	}
	return string(runes[:replTitleLen-3]) + "..."
}

/*
fetchSettings resolves the reply tuning for a mode.

Description: Live server values win and refresh the local cache. When the
server is unreachable the last cached copy serves, and built-in defaults are
the floor so the responder always has something to work with.

Parameters:
  - ctx: context.Context
  - mode: The assistant mode to resolve settings for

Returns:
  - map[string]any: The effective settings values
*/
func (d *deps) fetchSettings(ctx context.Context, mode chat.Mode) map[string]any {
	settings, err := d.chats.Settings(ctx, mode)
	if err == nil {
		d.cacheSettings(mode, settings.Settings)
		return settings.Settings
	}

	d.log.Warn("settings_fetch_failed",
		slog.String("mode", string(mode)),
		slog.String("error", err.Error()))

	if cached, ok := d.prefs.Load().SettingsCache[string(mode)]; ok {
		return cached
	}
	return chat.DefaultSettings(mode)
}

// cacheSettings records the last-seen settings for a mode. Write failures
// are logged and swallowed.
func (d *deps) cacheSettings(mode chat.Mode, values map[string]any) {
	err := d.prefs.Update(func(preferences *prefs.Preferences) {
		if preferences.SettingsCache == nil {
			preferences.SettingsCache = make(map[string]map[string]any)
		}
		preferences.SettingsCache[string(mode)] = values
	})
	if err != nil {
		d.log.Warn("settings_cache_write_failed", slog.String("error", err.Error()))
	}
}
