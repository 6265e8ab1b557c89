// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/taibuivan/kaiwa/internal/chat"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// Shared display styles.
var (
	styleSuccess = color.New(color.FgGreen)
	styleError   = color.New(color.FgRed)
	styleHeading = color.New(color.Bold)
	styleFaint   = color.New(color.Faint)
	styleUser    = color.New(color.FgCyan, color.Bold)
	styleReply   = color.New(color.FgGreen, color.Bold)
)

func validateOutputFormat(output string) error {
	switch strings.ToLower(output) {
	case outputTable, outputJSON:
		return nil
	}
	return fmt.Errorf("unsupported output format %q (supported: table, json)", output)
}

// printJSON renders any value as indented JSON on stdout.
func printJSON(value any) error {
	pretty, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	fmt.Println(string(pretty))
	return nil
}

// modeList renders the recognised assistant modes for usage messages.
func modeList() string {
	names := make([]string, 0, len(chat.Modes()))
	for _, mode := range chat.Modes() {
		names = append(names, string(mode))
	}
	return strings.Join(names, ", ")
}

// humanizeSince renders a past timestamp as a short age like "5m" or "3d".
func humanizeSince(at time.Time, now time.Time) string {
	elapsed := now.Sub(at)

	switch {
	case elapsed < time.Minute:
		return "now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd", int(elapsed.Hours()/24))
	}
}

// chatFlags renders the state markers shown in the chat table.
func chatFlags(conversation chat.Chat) string {
	markers := []string{}
	if conversation.IsPinned {
		markers = append(markers, "pinned")
	}
	if conversation.IsArchived {
		markers = append(markers, "archived")
	}
	return strings.Join(markers, ",")
}
