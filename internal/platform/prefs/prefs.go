// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package prefs persists non-sensitive UI preferences.
//
// Preferences live in a small JSON file in the state directory, deliberately
// separate from credential storage: nothing in this file grants access to
// anything.
package prefs

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// PreferencesFile is the file name inside the state directory.
const PreferencesFile = "prefs.json"

// DefaultMode is the assistant mode selected before the user ever picks one.
const DefaultMode = "similar_questions"

// Preferences is the durable UI state of the terminal client.
type Preferences struct {
	// ActiveMode is the assistant mode new chats open with.
	ActiveMode string `json:"active_mode"`
	// SidebarCollapsed hides the conversation list in the REPL.
	SidebarCollapsed bool `json:"sidebar_collapsed"`
	// SettingsCache holds the last-seen per-mode settings so the REPL can
	// render without a round trip. Keyed by mode name.
	SettingsCache map[string]map[string]any `json:"settings_cache,omitempty"`
}

// defaults returns the preferences of a fresh installation.
func defaults() Preferences {
	return Preferences{ActiveMode: DefaultMode}
}

// Store reads and writes the preferences file.
//
// # Concurrency
//
// Store serializes access within the process. Concurrent processes last-write
// win, which is acceptable for cosmetic state.
type Store struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

// NewStore creates a preferences store rooted at the given state directory.
func NewStore(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}

	return &Store{
		path: filepath.Join(dir, PreferencesFile),
		log:  log,
	}
}

/*
Load reads the preferences file.

Description: A missing or unreadable file yields the defaults; preferences
are never worth failing startup over.

Returns:
  - Preferences: Stored values or defaults
*/
func (store *Store) Load() Preferences {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.loadLocked()
}

/*
Save replaces the preferences file.

Parameters:
  - preferences: Preferences

Returns:
  - error: Filesystem failures
*/
func (store *Store) Save(preferences Preferences) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.saveLocked(preferences)
}

/*
Update applies a mutation to the stored preferences atomically within the
process.

Parameters:
  - mutate: func(*Preferences)

Returns:
  - error: Filesystem failures
*/
func (store *Store) Update(mutate func(*Preferences)) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	preferences := store.loadLocked()
	mutate(&preferences)
	return store.saveLocked(preferences)
}

func (store *Store) loadLocked() Preferences {
	data, err := os.ReadFile(store.path)
	if err != nil {
		if !os.IsNotExist(err) {
			store.log.Warn("preferences_read_failed", slog.Any("error", err))
		}
		return defaults()
	}

	preferences := defaults()
	if err := json.Unmarshal(data, &preferences); err != nil {
		store.log.Warn("preferences_decode_failed", slog.Any("error", err))
		return defaults()
	}

	if preferences.ActiveMode == "" {
		preferences.ActiveMode = DefaultMode
	}

	return preferences
}

func (store *Store) saveLocked(preferences Preferences) error {
	data, err := json.MarshalIndent(preferences, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(store.path, data, 0o600)
}
