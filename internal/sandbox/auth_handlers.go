// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"log/slog"
	"net/http"
	"regexp"

	"github.com/taibuivan/kaiwa/internal/auth"
	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/validate"
)

// namePattern mirrors the backend's constraint on profile name fields.
var namePattern = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)

// # Request Payloads

// registerRequest carries the fields the backend reads; the client also
// sends confirm_password and terms_accepted, which are ignored here just
// as the production backend ignores them.
type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

/*
register creates a new account.

POST /api/auth/register

Response:
  - 201: auth.User: Created profile
  - 409: Email already registered
  - 422: Field validation failures
  - 429: Rate limit exceeded (3 per minute)
*/
func (server *Server) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	validator := &validate.Validator{}
	validator.Required(auth.FieldEmail, input.Email).
		Email(auth.FieldEmail, input.Email).
		Required(auth.FieldFirstName, input.FirstName).
		MaxLen(auth.FieldFirstName, input.FirstName, 50).
		Custom(auth.FieldFirstName, input.FirstName != "" && !namePattern.MatchString(input.FirstName),
			"Name can only contain letters, spaces, hyphens, and apostrophes").
		Required(auth.FieldLastName, input.LastName).
		MaxLen(auth.FieldLastName, input.LastName, 50).
		Custom(auth.FieldLastName, input.LastName != "" && !namePattern.MatchString(input.LastName),
			"Name can only contain letters, spaces, hyphens, and apostrophes").
		Password(auth.FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		writeError(writer, apperr.As(err))
		return
	}

	user, verificationToken, appErr := server.state.CreateAccount(input.Email, input.FirstName, input.LastName, input.Password)
	if appErr != nil {
		writeError(writer, appErr)
		return
	}

	// Stands in for the verification email a real deployment would send
	server.log.Info("verification_token_issued",
		slog.String("email", user.Email),
		slog.String("token", verificationToken),
	)

	writeJSON(writer, http.StatusCreated, user)
}

/*
login exchanges credentials for a token pair.

POST /api/auth/login

Response:
  - 200: auth.TokenPair
  - 401: Incorrect email or password / Account is disabled
  - 423: Account is temporarily locked
  - 429: Rate limit exceeded (10 per minute)
*/
func (server *Server) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	validator := &validate.Validator{}
	validator.Required(auth.FieldEmail, input.Email).
		Required(auth.FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		writeError(writer, apperr.As(err))
		return
	}

	user, appErr := server.state.Authenticate(input.Email, input.Password)
	if appErr != nil {
		writeError(writer, appErr)
		return
	}

	server.writeTokenPair(writer, user.ID)
}

/*
refresh rotates a token pair.

POST /api/auth/refresh

Response:
  - 200: auth.TokenPair: Freshly rotated pair
  - 401: Invalid or expired refresh token
  - 429: Rate limit exceeded (20 per minute)
*/
func (server *Server) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	if err := requireRefreshToken(input); err != nil {
		writeError(writer, err)
		return
	}

	access, refresh, appErr := server.state.RotateRefresh(input.RefreshToken)
	if appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeJSON(writer, http.StatusOK, auth.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(auth.AccessTokenTTL.Seconds()),
	})
}

/*
logout revokes a refresh token.

POST /api/auth/logout

Response:
  - 200: Successfully logged out
  - 400: Invalid refresh token
*/
func (server *Server) logout(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	if err := requireRefreshToken(input); err != nil {
		writeError(writer, err)
		return
	}

	if !server.state.RevokeRefresh(input.RefreshToken) {
		writeDetail(writer, http.StatusBadRequest, "Invalid refresh token")
		return
	}

	writeMessage(writer, "Successfully logged out")
}

/*
me returns the authenticated profile.

GET /api/auth/me

Response:
  - 200: auth.User
  - 401: Could not validate credentials
*/
func (server *Server) me(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusOK, accountFrom(request))
}

/*
forgotPassword starts the password recovery flow.

POST /api/auth/forgot-password

Description: Answers with the same message whether or not the email is
registered, so the endpoint cannot be used to enumerate accounts.

Response:
  - 200: Generic acknowledgement
  - 429: Rate limit exceeded (3 per minute)
*/
func (server *Server) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	validator := &validate.Validator{}
	validator.Required(auth.FieldEmail, input.Email).
		Email(auth.FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		writeError(writer, apperr.As(err))
		return
	}

	if token, issued := server.state.RequestPasswordReset(input.Email); issued {
		// Stands in for the reset email a real deployment would send
		server.log.Info("password_reset_token_issued",
			slog.String("email", input.Email),
			slog.String("token", token),
		)
	}

	writeMessage(writer, "If your email is registered, you will receive a password reset link")
}

/*
resetPassword completes the password recovery flow.

POST /api/auth/reset-password

Response:
  - 200: Password reset successfully
  - 400: Invalid or expired reset token / Cannot reuse recent passwords
  - 422: Weak replacement password
  - 429: Rate limit exceeded (5 per minute)
*/
func (server *Server) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := decodeJSON(request, &input); err != nil {
		writeInvalidJSON(writer)
		return
	}

	validator := &validate.Validator{}
	validator.Required(auth.FieldToken, input.Token).
		Password(auth.FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		writeError(writer, apperr.As(err))
		return
	}

	if appErr := server.state.ResetPassword(input.Token, input.NewPassword); appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeMessage(writer, "Password reset successfully")
}

/*
verifyEmail confirms email ownership.

POST /api/auth/verify-email?token=...

Description: This is the one endpoint whose token travels as a query
parameter rather than in the body.

Response:
  - 200: Email verified successfully
  - 400: Invalid or expired verification token
  - 422: Missing token parameter
*/
func (server *Server) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	token := request.URL.Query().Get(auth.FieldToken)
	if token == "" {
		writeValidation(writer, "query", []apperr.FieldError{
			{Field: auth.FieldToken, Message: "Field required"},
		})
		return
	}

	if appErr := server.state.VerifyEmail(token); appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeMessage(writer, "Email verified successfully")
}

// requireRefreshToken rejects a body whose refresh_token field is absent.
func requireRefreshToken(input refreshRequest) *apperr.AppError {
	validator := &validate.Validator{}
	if err := validator.Required("refresh_token", input.RefreshToken).Err(); err != nil {
		return apperr.As(err)
	}
	return nil
}

// writeTokenPair mints and writes a fresh pair for the account.
func (server *Server) writeTokenPair(writer http.ResponseWriter, accountID int64) {
	access, refresh, appErr := server.state.IssueTokens(accountID)
	if appErr != nil {
		writeError(writer, appErr)
		return
	}

	writeJSON(writer, http.StatusOK, auth.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(auth.AccessTokenTTL.Seconds()),
	})
}
