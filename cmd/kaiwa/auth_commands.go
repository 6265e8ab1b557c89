// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"errors"
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/urfave/cli/v2"

	"github.com/taibuivan/kaiwa/internal/auth"
)

func register(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("register takes no arguments; use flags")
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	input := auth.RegisterInput{
		Email:           c.String(flagEmail),
		Password:        c.String(flagPassword),
		ConfirmPassword: c.String(flagPassword),
		FirstName:       c.String(flagFirstName),
		LastName:        c.String(flagLastName),
		TermsAccepted:   c.Bool(flagAcceptTerms),
	}

	result := d.controller.Register(c.Context, input)
	if !result.Success {
		return errors.New(result.Err)
	}

	styleSuccess.Printf("Account created for %s.\n", result.User.Email)
	if result.AutoLogin {
		fmt.Printf("You are now logged in as %s.\n", result.User.FullName())
	}
	styleFaint.Println("A verification link was sent to your email address.")

	return nil
}

func login(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("login takes no arguments; use flags")
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	result := d.controller.Login(c.Context, c.String(flagEmail), c.String(flagPassword))
	if !result.Success {
		return errors.New(result.Err)
	}

	styleSuccess.Printf("Logged in as %s.\n", result.User.FullName())
	return nil
}

func logout(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("logout takes no arguments")
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	// Local teardown always succeeds, whatever the backend said about the
	// refresh token.
	d.controller.Logout(c.Context)

	fmt.Println("Logged out.")
	return nil
}

func whoami(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("whoami takes no arguments")
	}

	output := c.String(flagOutput)
	if err := validateOutputFormat(output); err != nil {
		return err
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	user, err := d.requireSession(c.Context)
	if err != nil {
		return err
	}

	if output == outputJSON {
		return printJSON(user)
	}

	verified := "no"
	if user.IsVerified {
		verified = "yes"
	}

	lastLogin := "never"
	if user.LastLoginAt != nil {
		lastLogin = user.LastLoginAt.Local().Format("2006-01-02 15:04")
	}

	table := uitable.New()
	table.AddRow("NAME", user.FullName())
	table.AddRow("EMAIL", user.Email)
	table.AddRow("VERIFIED", verified)
	table.AddRow("LAST LOGIN", lastLogin)
	table.AddRow("MEMBER SINCE", user.CreatedAt.Local().Format("2006-01-02"))
	fmt.Println(table)

	return nil
}

func forgotPassword(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("forgot-password requires one argument: EMAIL")
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if err := d.api.ForgotPassword(c.Context, c.Args().First()); err != nil {
		return err
	}

	// The backend answers identically whether or not the account exists
	fmt.Println("If your email is registered, you will receive a password reset link.")
	return nil
}

func resetPassword(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return errors.New("reset-password requires two arguments: TOKEN NEW_PASSWORD")
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if err := d.api.ResetPassword(c.Context, c.Args().Get(0), c.Args().Get(1)); err != nil {
		return err
	}

	styleSuccess.Println("Password reset successfully. Log in with your new password.")
	return nil
}

func verifyEmail(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("verify-email requires one argument: TOKEN")
	}

	d, err := newDeps()
	if err != nil {
		return err
	}

	if err := d.api.VerifyEmail(c.Context, c.Args().First()); err != nil {
		return err
	}

	styleSuccess.Println("Email verified.")
	return nil
}
