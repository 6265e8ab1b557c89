// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import "github.com/urfave/cli/v2"

// Flag names shared across commands.
const (
	flagAcceptTerms     = "accept-terms"
	flagEmail           = "email"
	flagFirstName       = "first-name"
	flagIncludeArchived = "include-archived"
	flagLastName        = "last-name"
	flagLimit           = "limit"
	flagMode            = "mode"
	flagOutput          = "output"
	flagPassword        = "password"
	flagPort            = "port"
	flagSearch          = "search"
)

var (
	cliFlagOutput = &cli.StringFlag{
		Name:    flagOutput,
		Aliases: []string{"o"},
		Usage:   "Output format. Supported formats: table, json",
		Value:   "table",
	}

	cliFlagMode = &cli.StringFlag{
		Name:    flagMode,
		Aliases: []string{"m"},
		Usage:   "Assistant mode (similar_questions, image_processing)",
	}
)
