// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination provides shared types and helpers for list endpoints.
//
// # Overview
//
// It standardizes how window-based navigation is requested via query
// parameters and how an in-memory result set is sliced to match. The chat
// API paginates with a limit/offset window rather than page numbers.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultLimit is the number of items per window if not specified.
	DefaultLimit = 50
	// MaxLimit is the upper bound for items per window to prevent system abuse.
	MaxLimit = 100
)

// Params holds the parsed limit and offset from a request's query string.
type Params struct {
	Limit  int
	Offset int
}

// Window returns the clamped [start, end) slice bounds for a collection of
// the given total size.
func (p Params) Window(total int) (int, int) {
	start := p.Offset
	if start > total {
		start = total
	}

	end := start + p.Limit
	if end > total {
		end = total
	}

	return start, end
}

// Normalize clamps out-of-range values to the documented bounds.
//
// Invalid, negative, or excessive values fall back to [DefaultLimit] and a
// zero offset.
func (p Params) Normalize() Params {
	if p.Limit < 1 || p.Limit > MaxLimit {
		p.Limit = DefaultLimit
	}

	if p.Offset < 0 {
		p.Offset = 0
	}

	return p
}

// FromRequest parses "limit" and "offset" query parameters from an HTTP request.
//
// # Clamping
//
// Values outside the documented bounds are normalized via [Params.Normalize].
func FromRequest(r *http.Request) Params {
	return Params{
		Limit:  parseIntParam(r, "limit", DefaultLimit),
		Offset: parseIntParam(r, "offset", 0),
	}.Normalize()
}

// parseIntParam parses a single integer query parameter with a fallback default.
func parseIntParam(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}

	return n
}
