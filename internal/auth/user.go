// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package auth implements the client-side session layer of Kaiwa.
//
// It owns the token storage tiers, the session state machine, and the typed
// surface over the backend's /api/auth endpoints. Everything else in the
// client (chat, CLI commands) consumes sessions through this package and
// never touches credential material directly.
package auth

import (
	"encoding/json"
	"time"
)

// # Domain Entities

// User is the authenticated profile as known to the client.
//
// Extra holds any response fields the backend adds over time; they survive
// decode/merge cycles without code changes here.
type User struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	MFAEnabled  bool       `json:"mfa_enabled"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`

	Extra map[string]any `json:"-"`
}

// knownUserFields are the JSON keys decoded into typed fields; everything
// else lands in Extra.
var knownUserFields = map[string]bool{
	"id": true, "email": true, "first_name": true, "last_name": true,
	"is_active": true, "is_verified": true, "mfa_enabled": true,
	"last_login_at": true, "created_at": true,
}

// UnmarshalJSON decodes the typed fields and collects unknown keys into Extra.
func (user *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := (*alias)(user)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		if knownUserFields[key] {
			continue
		}
		if user.Extra == nil {
			user.Extra = map[string]any{}
		}
		user.Extra[key] = value
	}

	return nil
}

// FullName returns the display name assembled from the profile parts.
func (user *User) FullName() string {
	switch {
	case user.FirstName != "" && user.LastName != "":
		return user.FirstName + " " + user.LastName
	case user.FirstName != "":
		return user.FirstName
	case user.LastName != "":
		return user.LastName
	default:
		return user.Email
	}
}

// Merge shallow-merges partial profile fields into a copy of the user.
//
// Known keys overwrite their typed fields; unknown keys land in Extra. The
// receiver is never mutated so controller snapshots stay stable.
func (user User) Merge(partial map[string]any) User {
	merged := user

	if merged.Extra != nil {
		extra := make(map[string]any, len(merged.Extra))
		for key, value := range merged.Extra {
			extra[key] = value
		}
		merged.Extra = extra
	}

	for key, value := range partial {
		switch key {
		case "email":
			if s, ok := value.(string); ok {
				merged.Email = s
			}
		case "first_name":
			if s, ok := value.(string); ok {
				merged.FirstName = s
			}
		case "last_name":
			if s, ok := value.(string); ok {
				merged.LastName = s
			}
		case "is_active":
			if b, ok := value.(bool); ok {
				merged.IsActive = b
			}
		case "is_verified":
			if b, ok := value.(bool); ok {
				merged.IsVerified = b
			}
		case "mfa_enabled":
			if b, ok := value.(bool); ok {
				merged.MFAEnabled = b
			}
		default:
			if merged.Extra == nil {
				merged.Extra = map[string]any{}
			}
			merged.Extra[key] = value
		}
	}

	return merged
}
