// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package textnorm folds arbitrary Unicode strings into a canonical
// search form.
//
// # Usage
//
// Chat titles are matched case- and accent-insensitively in the sidebar
// search (e.g., "Résumé Tips" matches "resume"). This package handles
// normalization, accent removal, and case folding.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold converts an arbitrary Unicode string into its canonical search form.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFD (decomposes accented chars: é → e + combining acute).
// 2. Removes combining marks (accents).
// 3. Converts to lowercase.
// 4. Collapses runs of whitespace into single spaces and trims the ends.
func Fold(s string) string {
	// 1. Normalize and remove accents
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn))
	result, _, _ := transform.String(t, s)

	// 2. Lowercase
	result = strings.ToLower(result)

	// 3. Collapse whitespace
	result = strings.Join(strings.Fields(result), " ")

	return result
}

// Contains reports whether haystack contains needle after both are folded.
//
// An empty needle matches everything, mirroring [strings.Contains].
func Contains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// isMn reports whether r is a Unicode non-spacing mark (e.g., accents).
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
