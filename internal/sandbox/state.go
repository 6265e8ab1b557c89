// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/kaiwa/internal/auth"
	"github.com/taibuivan/kaiwa/internal/chat"
	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
	"github.com/taibuivan/kaiwa/internal/platform/sec"
	"github.com/taibuivan/kaiwa/pkg/pagination"
)

// # Token Budgets

const (
	// resetTokenTTL is the lifetime of a password-reset token.
	resetTokenTTL = time.Hour

	// verificationTokenTTL is the lifetime of an email-verification token.
	verificationTokenTTL = 24 * time.Hour

	// passwordHistoryDepth is how many recent hashes a new password is
	// checked against on reset.
	passwordHistoryDepth = 5

	// opaqueTokenBytes is the entropy of refresh, reset, and verification tokens.
	opaqueTokenBytes = 32
)

// # Storage Records

// account is the authoritative record for one registered user.
type account struct {
	profile      auth.User
	passwordHash string

	failedLogins int
	lockedUntil  time.Time

	// passwordHistory holds the most recent hashes, newest first.
	passwordHistory []string
}

// refreshRecord tracks one live refresh token, keyed by its SHA-256 digest.
// Rotation and logout remove the record, so presence means validity.
type refreshRecord struct {
	accountID int64
	expiresAt time.Time
}

// actionToken is a single-use password-reset or email-verification token.
type actionToken struct {
	accountID int64
	expiresAt time.Time
}

// conversation pairs a chat's stored fields with its ordered message log.
type conversation struct {
	data     chat.Chat
	messages []chat.Message
}

// # State Definition

// State is the sandbox's entire world: accounts, credentials, and chats,
// all held in process memory.
//
// # Concurrency
//
// Every operation takes the single state mutex, which is more than fast
// enough for a development backend and keeps invariants trivial to audit.
//
// # Semantics
//
// The operations reproduce the production backend's observable behavior:
// status codes, detail strings, lockout arithmetic, token rotation, and
// default settings all match what the client is written against.
type State struct {
	mu     sync.Mutex
	clock  func() time.Time
	tokens *sec.TokenService

	nextAccountID  int64
	nextChatID     int64
	nextMessageID  int64
	nextSettingsID int64

	accounts map[int64]*account
	emails   map[string]int64

	refreshTokens      map[string]*refreshRecord
	resetTokens        map[string]*actionToken
	verificationTokens map[string]*actionToken

	// lastResetTokens and lastVerificationTokens remember the most recent
	// plaintext token per account so tests and the operator log can
	// complete flows that would normally travel by email.
	lastResetTokens        map[int64]string
	lastVerificationTokens map[int64]string

	chats    map[int64]*conversation
	settings map[int64]map[chat.Mode]*chat.Settings
}

// NewState constructs an empty world signing access tokens with the secret.
func NewState(secret string) *State {
	return &State{
		clock:                  time.Now,
		tokens:                 sec.NewTokenService(secret),
		accounts:               map[int64]*account{},
		emails:                 map[string]int64{},
		refreshTokens:          map[string]*refreshRecord{},
		resetTokens:            map[string]*actionToken{},
		verificationTokens:     map[string]*actionToken{},
		lastResetTokens:        map[int64]string{},
		lastVerificationTokens: map[int64]string{},
		chats:                  map[int64]*conversation{},
		settings:               map[int64]map[chat.Mode]*chat.Settings{},
	}
}

// # Account Lifecycle

/*
CreateAccount registers a new user and issues an email-verification token.

Parameters:
  - email: string
  - firstName: string
  - lastName: string
  - password: string

Returns:
  - *auth.User: Created profile
  - string: Verification token, normally delivered by email
  - *apperr.AppError: Conflict when the email is taken
*/
func (state *State) CreateAccount(email, firstName, lastName, password string) (*auth.User, string, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()

	key := emailKey(email)
	if _, exists := state.emails[key]; exists {
		return nil, "", apperr.Conflict("Email already registered")
	}

	hash, err := sec.HashPassword(password)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}

	state.nextAccountID++
	acct := &account{
		profile: auth.User{
			ID:        state.nextAccountID,
			Email:     email,
			FirstName: firstName,
			LastName:  lastName,
			IsActive:  true,
			CreatedAt: state.clock(),
		},
		passwordHash:    hash,
		passwordHistory: []string{hash},
	}

	state.accounts[acct.profile.ID] = acct
	state.emails[key] = acct.profile.ID

	token, tokenErr := state.issueActionTokenLocked(acct.profile.ID, state.verificationTokens, verificationTokenTTL)
	if tokenErr != nil {
		return nil, "", tokenErr
	}
	state.lastVerificationTokens[acct.profile.ID] = token

	profile := acct.profile
	return &profile, token, nil
}

/*
Authenticate checks credentials and enforces the lockout policy.

Description: The lock is checked before the password so a locked account
reveals nothing about credential correctness. A wrong password increments
the failure counter and trips a 30-minute lock at the fifth failure; a
successful login resets the counter and stamps last_login_at.

Parameters:
  - email: string
  - password: string

Returns:
  - *auth.User: Profile on success
  - *apperr.AppError: Locked, incorrect-credentials, or disabled failures
*/
func (state *State) Authenticate(email, password string) (*auth.User, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()

	now := state.clock()
	acct := state.accountByEmailLocked(email)

	// 1. A live lock rejects the attempt before any password work
	if acct != nil && acct.lockedUntil.After(now) {
		return nil, apperr.AccountLocked("Account is temporarily locked due to multiple failed login attempts")
	}

	// 2. Unknown email and wrong password are indistinguishable to the caller
	if acct == nil || !sec.CheckPasswordHash(password, acct.passwordHash) {
		if acct != nil {
			acct.failedLogins++
			if acct.failedLogins >= constants.MaxLoginAttempts {
				acct.lockedUntil = now.Add(constants.LockoutDuration)
			}
		}
		return nil, apperr.Unauthenticated("Incorrect email or password")
	}

	// 3. Correct credentials on a disabled account do not count as failures
	if !acct.profile.IsActive {
		return nil, apperr.Unauthenticated("Account is disabled")
	}

	// 4. Success clears the failure history
	acct.failedLogins = 0
	acct.lockedUntil = time.Time{}
	acct.profile.LastLoginAt = &now

	profile := acct.profile
	return &profile, nil
}

// # Token Lifecycle

/*
IssueTokens mints a fresh access/refresh pair for an account.

Parameters:
  - accountID: int64

Returns:
  - string: Signed JWT access token
  - string: Opaque refresh token
  - *apperr.AppError: Internal failures only
*/
func (state *State) IssueTokens(accountID int64) (string, string, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.issueTokensLocked(accountID)
}

/*
VerifyAccess resolves a bearer token to its account.

Description: Any failure collapses into the same credentials error so a
probing client cannot distinguish a bad signature from a deleted account.

Parameters:
  - token: string

Returns:
  - *auth.User: Profile bound to the token
  - *apperr.AppError: Unauthenticated on any defect
*/
func (state *State) VerifyAccess(token string) (*auth.User, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()

	claims, err := state.tokens.VerifyToken(token)
	if err != nil || claims.TokenType != "access" {
		return nil, credentialsError()
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, credentialsError()
	}

	acct, exists := state.accounts[accountID]
	if !exists {
		return nil, credentialsError()
	}

	profile := acct.profile
	return &profile, nil
}

/*
RotateRefresh exchanges a live refresh token for a brand new pair.

Description: The old token is revoked in the same critical section that
mints the replacement, so a rotated token can never be replayed.

Parameters:
  - token: string

Returns:
  - string: New access token
  - string: New refresh token
  - *apperr.AppError: Unauthenticated when the token is unknown, expired, or
    the account is disabled
*/
func (state *State) RotateRefresh(token string) (string, string, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()

	key := sec.HashToken(token)
	record, exists := state.refreshTokens[key]
	if !exists || !record.expiresAt.After(state.clock()) {
		return "", "", apperr.Unauthenticated("Invalid or expired refresh token")
	}

	acct, found := state.accounts[record.accountID]
	if !found {
		return "", "", apperr.Unauthenticated("Invalid or expired refresh token")
	}
	if !acct.profile.IsActive {
		return "", "", apperr.Unauthenticated("Account is disabled")
	}

	delete(state.refreshTokens, key)
	return state.issueTokensLocked(record.accountID)
}

/*
RevokeRefresh invalidates a refresh token.

Parameters:
  - token: string

Returns:
  - bool: false when the token was not live to begin with
*/
func (state *State) RevokeRefresh(token string) bool {
	state.mu.Lock()
	defer state.mu.Unlock()

	key := sec.HashToken(token)
	if _, exists := state.refreshTokens[key]; !exists {
		return false
	}

	delete(state.refreshTokens, key)
	return true
}

// # Account Recovery

/*
RequestPasswordReset issues a reset token when the email is registered.

Parameters:
  - email: string

Returns:
  - string: Reset token, empty for unknown emails
  - bool: Whether the email matched an account
*/
func (state *State) RequestPasswordReset(email string) (string, bool) {
	state.mu.Lock()
	defer state.mu.Unlock()

	acct := state.accountByEmailLocked(email)
	if acct == nil {
		return "", false
	}

	token, err := state.issueActionTokenLocked(acct.profile.ID, state.resetTokens, resetTokenTTL)
	if err != nil {
		return "", false
	}
	state.lastResetTokens[acct.profile.ID] = token

	return token, true
}

/*
ResetPassword completes the recovery flow with a reset token.

Description: The new password is rejected when it matches any of the five
most recent hashes. A reuse rejection does not consume the token; only a
successful reset does.

Parameters:
  - token: string
  - newPassword: string

Returns:
  - *apperr.AppError: Bad-token or password-reuse failures
*/
func (state *State) ResetPassword(token, newPassword string) *apperr.AppError {
	state.mu.Lock()
	defer state.mu.Unlock()

	record, exists := state.resetTokens[token]
	if !exists || !record.expiresAt.After(state.clock()) {
		return apperr.FromStatus(http.StatusBadRequest, "Invalid or expired reset token")
	}

	acct, found := state.accounts[record.accountID]
	if !found {
		return apperr.FromStatus(http.StatusBadRequest, "Invalid or expired reset token")
	}

	for _, oldHash := range acct.passwordHistory {
		if sec.CheckPasswordHash(newPassword, oldHash) {
			return apperr.FromStatus(http.StatusBadRequest, "Cannot reuse recent passwords")
		}
	}

	hash, err := sec.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}

	acct.passwordHash = hash
	acct.passwordHistory = append([]string{hash}, acct.passwordHistory...)
	if len(acct.passwordHistory) > passwordHistoryDepth {
		acct.passwordHistory = acct.passwordHistory[:passwordHistoryDepth]
	}

	delete(state.resetTokens, token)
	return nil
}

/*
VerifyEmail consumes a verification token and marks the account verified.

Parameters:
  - token: string

Returns:
  - *apperr.AppError: Bad-token failure
*/
func (state *State) VerifyEmail(token string) *apperr.AppError {
	state.mu.Lock()
	defer state.mu.Unlock()

	record, exists := state.verificationTokens[token]
	if !exists || !record.expiresAt.After(state.clock()) {
		return apperr.FromStatus(http.StatusBadRequest, "Invalid or expired verification token")
	}

	if acct, found := state.accounts[record.accountID]; found {
		acct.profile.IsVerified = true
	}

	delete(state.verificationTokens, token)
	return nil
}

// # Conversations

/*
CreateChat opens a new conversation for an account.

Parameters:
  - accountID: int64
  - title: string
  - mode: chat.Mode

Returns:
  - chat.Chat: The stored conversation with a zero message count
*/
func (state *State) CreateChat(accountID int64, title string, mode chat.Mode) chat.Chat {
	state.mu.Lock()
	defer state.mu.Unlock()

	now := state.clock()
	state.nextChatID++

	conv := &conversation{
		data: chat.Chat{
			ID:        state.nextChatID,
			UserID:    accountID,
			Title:     title,
			Mode:      mode,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	state.chats[conv.data.ID] = conv

	return state.renderChatLocked(conv)
}

/*
ListChats returns an account's conversations, decorated for the sidebar.

Description: Pinned conversations sort first, then most recently updated.
Archived conversations are hidden unless requested, and an empty mode
matches every mode.

Parameters:
  - accountID: int64
  - mode: chat.Mode
  - includeArchived: bool
  - page: pagination.Params

Returns:
  - []chat.Chat: The requested window, never nil
*/
func (state *State) ListChats(accountID int64, mode chat.Mode, includeArchived bool, page pagination.Params) []chat.Chat {
	state.mu.Lock()
	defer state.mu.Unlock()

	matched := make([]*conversation, 0, len(state.chats))
	for _, conv := range state.chats {
		if conv.data.UserID != accountID {
			continue
		}
		if mode != "" && conv.data.Mode != mode {
			continue
		}
		if conv.data.IsArchived && !includeArchived {
			continue
		}
		matched = append(matched, conv)
	}

	sort.Slice(matched, func(i, j int) bool {
		left, right := matched[i].data, matched[j].data
		if left.IsPinned != right.IsPinned {
			return left.IsPinned
		}
		return left.UpdatedAt.After(right.UpdatedAt)
	})

	start, end := page.Window(len(matched))
	window := make([]chat.Chat, 0, end-start)
	for _, conv := range matched[start:end] {
		window = append(window, state.renderChatLocked(conv))
	}

	return window
}

/*
GetChat returns one conversation with its full message history.

Parameters:
  - accountID: int64
  - chatID: int64

Returns:
  - *chat.Detail: Conversation plus messages in creation order
  - *apperr.AppError: NotFound when absent or owned by someone else
*/
func (state *State) GetChat(accountID, chatID int64) (*chat.Detail, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()

	conv, appErr := state.ownedChatLocked(accountID, chatID)
	if appErr != nil {
		return nil, appErr
	}

	detail := &chat.Detail{
		Chat:     state.renderChatLocked(conv),
		Messages: append([]chat.Message{}, conv.messages...),
	}
	return detail, nil
}

/*
UpdateChat applies a partial update and bumps the activity timestamp.

Parameters:
  - accountID: int64
  - chatID: int64
  - input: chat.UpdateInput

Returns:
  - *chat.Chat: The updated conversation
  - *apperr.AppError: NotFound when absent or owned by someone else
*/
func (state *State) UpdateChat(accountID, chatID int64, input chat.UpdateInput) (*chat.Chat, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()

	conv, appErr := state.ownedChatLocked(accountID, chatID)
	if appErr != nil {
		return nil, appErr
	}

	if input.Title != nil {
		conv.data.Title = *input.Title
	}
	if input.IsPinned != nil {
		conv.data.IsPinned = *input.IsPinned
	}
	if input.IsArchived != nil {
		conv.data.IsArchived = *input.IsArchived
	}
	conv.data.UpdatedAt = state.clock()

	rendered := state.renderChatLocked(conv)
	return &rendered, nil
}

/*
DeleteChat removes a conversation and its messages.

Parameters:
  - accountID: int64
  - chatID: int64

Returns:
  - *apperr.AppError: NotFound when absent or owned by someone else
*/
func (state *State) DeleteChat(accountID, chatID int64) *apperr.AppError {
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, appErr := state.ownedChatLocked(accountID, chatID); appErr != nil {
		return appErr
	}

	delete(state.chats, chatID)
	return nil
}

/*
AddMessage appends a user message to a conversation.

Description: The role is always forced to user regardless of what the
client sent; assistant turns exist only on the client side.

Parameters:
  - accountID: int64
  - chatID: int64
  - content: string
  - metadata: map[string]any

Returns:
  - *chat.Message: The stored message
  - *apperr.AppError: NotFound when the chat is absent or foreign
*/
func (state *State) AddMessage(accountID, chatID int64, content string, metadata map[string]any) (*chat.Message, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()

	conv, appErr := state.ownedChatLocked(accountID, chatID)
	if appErr != nil {
		return nil, appErr
	}

	state.nextMessageID++
	message := chat.Message{
		ID:        state.nextMessageID,
		ChatID:    chatID,
		Role:      chat.RoleUser,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: state.clock(),
	}

	conv.messages = append(conv.messages, message)
	conv.data.UpdatedAt = message.CreatedAt

	return &message, nil
}

/*
ListMessages returns a window of a conversation's messages, oldest first.

Parameters:
  - accountID: int64
  - chatID: int64
  - page: pagination.Params

Returns:
  - []chat.Message: The requested window, never nil
  - *apperr.AppError: NotFound when the chat is absent or foreign
*/
func (state *State) ListMessages(accountID, chatID int64, page pagination.Params) ([]chat.Message, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()

	conv, appErr := state.ownedChatLocked(accountID, chatID)
	if appErr != nil {
		return nil, appErr
	}

	start, end := page.Window(len(conv.messages))
	return append([]chat.Message{}, conv.messages[start:end]...), nil
}

// # Assistant Settings

/*
CreateSettings stores a mode's configuration for the first time.

Parameters:
  - accountID: int64
  - mode: chat.Mode
  - values: map[string]any

Returns:
  - *chat.Settings: The stored record
  - *apperr.AppError: Conflict when the mode is already configured
*/
func (state *State) CreateSettings(accountID int64, mode chat.Mode, values map[string]any) (*chat.Settings, *apperr.AppError) {
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, exists := state.settings[accountID][mode]; exists {
		return nil, apperr.Conflict("Settings already exist for this mode")
	}

	record := state.storeSettingsLocked(accountID, mode, values)
	return &record, nil
}

/*
GetSettings returns a mode's configuration, falling back to defaults.

Description: The defaults are served with a zero ID so callers can tell
they are looking at fallback values rather than a stored record.

Parameters:
  - accountID: int64
  - mode: chat.Mode

Returns:
  - chat.Settings: Stored or default configuration
*/
func (state *State) GetSettings(accountID int64, mode chat.Mode) chat.Settings {
	state.mu.Lock()
	defer state.mu.Unlock()

	if record, exists := state.settings[accountID][mode]; exists {
		return *record
	}

	now := state.clock()
	return chat.Settings{
		UserID:    accountID,
		Mode:      mode,
		Settings:  chat.DefaultSettings(mode),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

/*
UpsertSettings replaces a mode's configuration, creating it when absent.

Parameters:
  - accountID: int64
  - mode: chat.Mode
  - values: map[string]any

Returns:
  - chat.Settings: The stored record
*/
func (state *State) UpsertSettings(accountID int64, mode chat.Mode, values map[string]any) chat.Settings {
	state.mu.Lock()
	defer state.mu.Unlock()

	if record, exists := state.settings[accountID][mode]; exists {
		record.Settings = values
		record.UpdatedAt = state.clock()
		return *record
	}

	return state.storeSettingsLocked(accountID, mode, values)
}

// # Test Hooks

// ResetTokenFor returns the most recent reset token issued to an email.
func (state *State) ResetTokenFor(email string) string {
	state.mu.Lock()
	defer state.mu.Unlock()

	if acct := state.accountByEmailLocked(email); acct != nil {
		return state.lastResetTokens[acct.profile.ID]
	}
	return ""
}

// VerificationTokenFor returns the most recent verification token for an email.
func (state *State) VerificationTokenFor(email string) string {
	state.mu.Lock()
	defer state.mu.Unlock()

	if acct := state.accountByEmailLocked(email); acct != nil {
		return state.lastVerificationTokens[acct.profile.ID]
	}
	return ""
}

// SetAccountActive flips an account's active flag, for exercising the
// disabled-account paths.
func (state *State) SetAccountActive(email string, active bool) {
	state.mu.Lock()
	defer state.mu.Unlock()

	if acct := state.accountByEmailLocked(email); acct != nil {
		acct.profile.IsActive = active
	}
}

// # Internal Helpers

// issueTokensLocked mints a pair for the account. Caller holds the mutex.
func (state *State) issueTokensLocked(accountID int64) (string, string, *apperr.AppError) {
	access, err := state.tokens.GenerateAccessToken(strconv.FormatInt(accountID, 10), auth.AccessTokenTTL)
	if err != nil {
		return "", "", apperr.Internal(err)
	}

	refresh, err := sec.GenerateSecureToken(opaqueTokenBytes)
	if err != nil {
		return "", "", apperr.Internal(err)
	}

	state.refreshTokens[sec.HashToken(refresh)] = &refreshRecord{
		accountID: accountID,
		expiresAt: state.clock().Add(auth.RefreshTokenTTL),
	}

	return access, refresh, nil
}

// issueActionTokenLocked mints a single-use token into the given registry.
func (state *State) issueActionTokenLocked(accountID int64, registry map[string]*actionToken, ttl time.Duration) (string, *apperr.AppError) {
	token, err := sec.GenerateSecureToken(opaqueTokenBytes)
	if err != nil {
		return "", apperr.Internal(err)
	}

	registry[token] = &actionToken{
		accountID: accountID,
		expiresAt: state.clock().Add(ttl),
	}
	return token, nil
}

// accountByEmailLocked resolves an account by its case-folded email.
func (state *State) accountByEmailLocked(email string) *account {
	id, exists := state.emails[emailKey(email)]
	if !exists {
		return nil
	}
	return state.accounts[id]
}

// ownedChatLocked resolves a chat and enforces ownership. Foreign chats
// are reported as missing, never as forbidden.
func (state *State) ownedChatLocked(accountID, chatID int64) (*conversation, *apperr.AppError) {
	conv, exists := state.chats[chatID]
	if !exists || conv.data.UserID != accountID {
		return nil, apperr.NotFound("Chat")
	}
	return conv, nil
}

// renderChatLocked decorates a stored chat with its derived list fields.
func (state *State) renderChatLocked(conv *conversation) chat.Chat {
	rendered := conv.data
	rendered.MessageCount = len(conv.messages)

	if n := len(conv.messages); n > 0 {
		last := conv.messages[n-1]
		rendered.LastMessage = &last
	}

	return rendered
}

// storeSettingsLocked creates a settings record. Caller holds the mutex.
func (state *State) storeSettingsLocked(accountID int64, mode chat.Mode, values map[string]any) chat.Settings {
	now := state.clock()
	state.nextSettingsID++

	record := &chat.Settings{
		ID:        state.nextSettingsID,
		UserID:    accountID,
		Mode:      mode,
		Settings:  values,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if state.settings[accountID] == nil {
		state.settings[accountID] = map[chat.Mode]*chat.Settings{}
	}
	state.settings[accountID][mode] = record

	return *record
}

// credentialsError is the uniform bearer-validation failure.
func credentialsError() *apperr.AppError {
	return apperr.Unauthenticated("Could not validate credentials")
}

// emailKey normalizes an email for map lookups.
func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
