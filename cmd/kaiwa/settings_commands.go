// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/urfave/cli/v2"

	"github.com/taibuivan/kaiwa/internal/chat"
	"github.com/taibuivan/kaiwa/internal/platform/prefs"
)

func settingsShow(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("settings show takes no arguments; use --mode")
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

	mode, err := d.activeMode(c.String(flagMode))
	if err != nil {
		return err
	}

	settings, err := d.chats.Settings(c.Context, mode)
	if err != nil {
		return err
	}
	d.cacheSettings(mode, settings.Settings)

	if output == outputJSON {
		return printJSON(settings)
	}

	styleHeading.Printf("Settings for %s\n", mode)
	if settings.ID == 0 {
		styleFaint.Println("Defaults; nothing saved for this account yet.")
	}
	renderSettingsTable(settings.Settings)
	return nil
}

func settingsSet(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return errors.New("settings set requires at least one KEY=VALUE argument")
	}

	updates := make(map[string]any, c.Args().Len())
	for _, argument := range c.Args().Slice() {
		key, raw, found := strings.Cut(argument, "=")
		if !found || key == "" {
			return fmt.Errorf("argument %q is not in KEY=VALUE form", argument)
		}
		updates[key] = coerceValue(raw)
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

	current, err := d.chats.Settings(c.Context, mode)
	if err != nil {
		return err
	}

	// The update endpoint replaces the whole value map, so merge the edits
	// onto the current values first.
	merged := make(map[string]any, len(current.Settings)+len(updates))
	for key, value := range current.Settings {
		merged[key] = value
	}
	for key, value := range updates {
		merged[key] = value
	}

	saved, err := d.chats.UpdateSettings(c.Context, mode, merged)
	if err != nil {
		return err
	}
	d.cacheSettings(mode, saved.Settings)

	styleSuccess.Printf("Settings updated for %s.\n", mode)
	renderSettingsTable(saved.Settings)
	return nil
}

func modeCommand(c *cli.Context) error {
	if c.Args().Len() > 1 {
		return errors.New("mode takes at most one argument: MODE")
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if c.Args().Len() == 0 {
		fmt.Printf("Active mode: %s\n", d.prefs.Load().ActiveMode)
		styleFaint.Printf("Available: %s\n", modeList())
		return nil
	}

	mode := chat.Mode(c.Args().First())
	if !mode.IsValid() {
		return fmt.Errorf("unknown assistant mode %q (valid: %s)", c.Args().First(), modeList())
	}

	if err := d.prefs.Update(func(preferences *prefs.Preferences) {
		preferences.ActiveMode = string(mode)
	}); err != nil {
		return err
	}

	styleSuccess.Printf("Active mode set to %s.\n", mode)
	return nil
}

func renderSettingsTable(values map[string]any) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	table := uitable.New()
	table.AddRow("KEY", "VALUE")
	for _, key := range keys {
		table.AddRow(key, fmt.Sprintf("%v", values[key]))
	}
	fmt.Println(table)
}

// coerceValue converts a KEY=VALUE literal into the JSON-shaped type the
// settings map stores. Integers are tried before booleans so "1" stays a
// count rather than becoming true.
func coerceValue(raw string) any {
	if integer, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return int(integer)
	}
	if float, err := strconv.ParseFloat(raw, 64); err == nil {
		return float
	}
	if boolean, err := strconv.ParseBool(raw); err == nil {
		return boolean
	}
	return raw
}
