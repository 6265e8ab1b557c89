// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command kaiwa is the terminal client for the Kaiwa study assistant. It
// talks to the backend API, keeps the session alive across invocations, and
// carries an in-process sandbox backend for offline development.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/taibuivan/kaiwa/internal/platform/constants"
	"github.com/taibuivan/kaiwa/pkg/pagination"
)

func main() {
	app := cli.NewApp()
	app.Name = constants.AppName
	app.Usage = "Terminal client for the Kaiwa study assistant"
	app.Version = constants.AppVersion
	app.Commands = []*cli.Command{
		{
			Name:  "register",
			Usage: "Create a new account and log in",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagEmail,
					Usage:    "Email address for the new account",
					Required: true,
				},
				&cli.StringFlag{
					Name:     flagPassword,
					Usage:    "Password for the new account",
					Required: true,
				},
				&cli.StringFlag{
					Name:  flagFirstName,
					Usage: "First name",
				},
				&cli.StringFlag{
					Name:  flagLastName,
					Usage: "Last name",
				},
				&cli.BoolFlag{
					Name:  flagAcceptTerms,
					Usage: "Accept the terms and conditions",
				},
			},
			Action: register,
		},
		{
			Name:  "login",
			Usage: "Log in with email and password",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagEmail,
					Usage:    "Email address of the account",
					Required: true,
				},
				&cli.StringFlag{
					Name:     flagPassword,
					Usage:    "Password of the account",
					Required: true,
				},
			},
			Action: login,
		},
		{
			Name:   "logout",
			Usage:  "Log out and discard stored tokens",
			Action: logout,
		},
		{
			Name:   "whoami",
			Usage:  "Show the logged-in account",
			Flags:  []cli.Flag{cliFlagOutput},
			Action: whoami,
		},
		{
			Name:      "forgot-password",
			Usage:     "Request a password reset email",
			ArgsUsage: "EMAIL",
			Action:    forgotPassword,
		},
		{
			Name:      "reset-password",
			Usage:     "Set a new password with a reset token",
			ArgsUsage: "TOKEN NEW_PASSWORD",
			Action:    resetPassword,
		},
		{
			Name:      "verify-email",
			Usage:     "Verify the account email with a token",
			ArgsUsage: "TOKEN",
			Action:    verifyEmail,
		},
		{
			Name:  "chats",
			Usage: "Manage conversations",
			Subcommands: []*cli.Command{
				{
					Name:  "list",
					Usage: "List conversations, newest first",
					Flags: []cli.Flag{
						cliFlagMode,
						&cli.BoolFlag{
							Name:  flagIncludeArchived,
							Usage: "Include archived conversations",
						},
						&cli.StringFlag{
							Name:  flagSearch,
							Usage: "Filter by title or last message content",
						},
						&cli.IntFlag{
							Name:  flagLimit,
							Usage: "Maximum number of conversations to list",
							Value: pagination.DefaultLimit,
						},
						cliFlagOutput,
					},
					Action: chatsList,
				},
				{
					Name:      "create",
					Usage:     "Create a conversation",
					ArgsUsage: "TITLE",
					Flags:     []cli.Flag{cliFlagMode},
					Action:    chatsCreate,
				},
				{
					Name:      "rename",
					Usage:     "Rename a conversation",
					ArgsUsage: "CHAT_ID NEW_TITLE",
					Action:    chatsRename,
				},
				{
					Name:      "pin",
					Usage:     "Pin a conversation to the top of the list",
					ArgsUsage: "CHAT_ID",
					Action:    chatsPin,
				},
				{
					Name:      "unpin",
					Usage:     "Unpin a conversation",
					ArgsUsage: "CHAT_ID",
					Action:    chatsUnpin,
				},
				{
					Name:      "archive",
					Usage:     "Archive a conversation",
					ArgsUsage: "CHAT_ID",
					Action:    chatsArchive,
				},
				{
					Name:      "restore",
					Usage:     "Restore an archived conversation",
					ArgsUsage: "CHAT_ID",
					Action:    chatsRestore,
				},
				{
					Name:      "delete",
					Usage:     "Delete a conversation and its messages",
					ArgsUsage: "CHAT_ID",
					Action:    chatsDelete,
				},
			},
		},
		{
			Name:      "chat",
			Usage:     "Open an interactive conversation",
			ArgsUsage: "[CHAT_ID]",
			Flags:     []cli.Flag{cliFlagMode},
			Action:    chatRepl,
		},
		{
			Name:  "settings",
			Usage: "Inspect and tune assistant settings",
			Subcommands: []*cli.Command{
				{
					Name:   "show",
					Usage:  "Show the effective settings for a mode",
					Flags:  []cli.Flag{cliFlagMode, cliFlagOutput},
					Action: settingsShow,
				},
				{
					Name:      "set",
					Usage:     "Change settings values for a mode",
					ArgsUsage: "KEY=VALUE ...",
					Flags:     []cli.Flag{cliFlagMode},
					Action:    settingsSet,
				},
			},
		},
		{
			Name:      "mode",
			Usage:     "Show or set the active assistant mode",
			ArgsUsage: "[MODE]",
			Action:    modeCommand,
		},
		{
			Name:  "sandbox",
			Usage: "Run the local development backend",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagPort,
					Usage: "Port to listen on",
				},
			},
			Action: sandboxCommand,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		styleError.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
