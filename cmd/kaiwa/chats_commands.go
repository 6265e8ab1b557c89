// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/urfave/cli/v2"

	"github.com/taibuivan/kaiwa/internal/chat"
	"github.com/taibuivan/kaiwa/pkg/pagination"
)

// parseChatID converts a positional argument into a conversation id.
func parseChatID(raw string) (int64, error) {
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chatID <= 0 {
		return 0, fmt.Errorf("CHAT_ID must be a positive integer, got %q", raw)
	}
	return chatID, nil
}

func chatsList(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("chats list takes no arguments; use flags")
	}

	output := c.String(flagOutput)
	if err := validateOutputFormat(output); err != nil {
		return err
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if _, err := d.requireSession(c.Context); err != nil {
		return err
	}

	filter := chat.ListFilter{
		IncludeArchived: c.Bool(flagIncludeArchived),
		Page:            pagination.Params{Limit: c.Int(flagLimit)},
	}
	if raw := c.String(flagMode); raw != "" {
		mode, err := d.activeMode(raw)
		if err != nil {
			return err
		}
		filter.Mode = mode
	}

	listed, err := d.chats.List(c.Context, filter)
	if err != nil {
		return err
	}

	if query := c.String(flagSearch); query != "" {
		listed = chat.Search(listed, query)
	}

	if len(listed) == 0 {
		fmt.Println("No chats found.")
		return nil
	}

	if output == outputJSON {
		return printJSON(listed)
	}

	renderChatGroups(listed)
	return nil
}

// renderChatGroups prints the sidebar view: recency buckets with a table of
// conversations inside each.
func renderChatGroups(listed []chat.Chat) {
	now := time.Now()

	for index, group := range chat.GroupByRecency(listed, now) {
		if index > 0 {
			fmt.Println()
		}
		styleHeading.Println(group.Label)

		table := uitable.New()
		table.MaxColWidth = 48
		table.AddRow("ID", "TITLE", "MODE", "MSGS", "UPDATED", "FLAGS")
		for _, conversation := range group.Chats {
			table.AddRow(
				conversation.ID,
				conversation.Title,
				string(conversation.Mode),
				conversation.MessageCount,
				humanizeSince(conversation.UpdatedAt, now),
				chatFlags(conversation),
			)
		}
		fmt.Println(table)
	}
}

func chatsCreate(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return errors.New("chats create requires a TITLE argument")
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if _, err := d.requireSession(c.Context); err != nil {
		return err
	}

	mode, err := d.activeMode(c.String(flagMode))
	if err != nil {
		return err
	}

	// Unquoted multi-word titles arrive as separate arguments
	title := strings.Join(c.Args().Slice(), " ")

	created, err := d.chats.Create(c.Context, chat.CreateInput{Title: title, Mode: mode})
	if err != nil {
		return err
	}

	styleSuccess.Printf("Chat %d created.\n", created.ID)
	styleFaint.Printf("Open it with 'kaiwa chat %d'.\n", created.ID)
	return nil
}

func chatsRename(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return errors.New("chats rename requires two arguments: CHAT_ID NEW_TITLE")
	}

	chatID, err := parseChatID(c.Args().First())
	if err != nil {
		return err
	}
	title := strings.Join(c.Args().Slice()[1:], " ")

	d, err := newDeps()
	if err != nil {
		return err
	}

	if _, err := d.requireSession(c.Context); err != nil {
		return err
	}

	renamed, err := d.chats.Rename(c.Context, chatID, title)
	if err != nil {
		return err
	}

	styleSuccess.Printf("Chat %d renamed to %q.\n", renamed.ID, renamed.Title)
	return nil
}

func chatsPin(c *cli.Context) error {
	return setChatPinned(c, true, "pinned")
}

func chatsUnpin(c *cli.Context) error {
	return setChatPinned(c, false, "unpinned")
}

func setChatPinned(c *cli.Context, pinned bool, verb string) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("chats %s requires one argument: CHAT_ID", c.Command.Name)
	}

	chatID, err := parseChatID(c.Args().First())
	if err != nil {
		return err
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if _, err := d.requireSession(c.Context); err != nil {
		return err
	}

	if _, err := d.chats.SetPinned(c.Context, chatID, pinned); err != nil {
		return err
	}

	styleSuccess.Printf("Chat %d %s.\n", chatID, verb)
	return nil
}

func chatsArchive(c *cli.Context) error {
	return setChatArchived(c, true, "archived")
}

func chatsRestore(c *cli.Context) error {
	return setChatArchived(c, false, "restored")
}

func setChatArchived(c *cli.Context, archived bool, verb string) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("chats %s requires one argument: CHAT_ID", c.Command.Name)
	}

	chatID, err := parseChatID(c.Args().First())
	if err != nil {
		return err
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if _, err := d.requireSession(c.Context); err != nil {
		return err
	}

	if _, err := d.chats.SetArchived(c.Context, chatID, archived); err != nil {
		return err
	}

	styleSuccess.Printf("Chat %d %s.\n", chatID, verb)
	return nil
}

func chatsDelete(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("chats delete requires one argument: CHAT_ID")
	}

	chatID, err := parseChatID(c.Args().First())
	if err != nil {
		return err
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if _, err := d.requireSession(c.Context); err != nil {
		return err
	}

	if err := d.chats.Delete(c.Context, chatID); err != nil {
		return err
	}

	styleSuccess.Printf("Chat %d deleted.\n", chatID)
	return nil
}
