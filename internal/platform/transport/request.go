// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package transport

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/taibuivan/kaiwa/internal/platform/apperr"
)

// # Request Descriptor

// Request describes one outbound call in replayable form.
//
// A live [net/http.Request] can only be sent once because its body is a
// stream. The descriptor keeps the body as a value and materializes a fresh
// HTTP request per attempt, which is what makes the refresh-and-retry
// protocol possible.
type Request struct {
	// Method is the HTTP verb (http.MethodGet, http.MethodPost, ...).
	Method string

	// Path is the backend path including the /api prefix, e.g. "/api/auth/me".
	Path string

	// Query holds optional URL query parameters.
	Query url.Values

	// Body is JSON-marshaled into the request body when non-nil.
	Body any

	// Out receives the JSON-decoded success body when non-nil.
	Out any
}

// # Backend Failure Envelope

// errorEnvelope is the error body shape produced by the backend:
// {"detail": "..."} for plain failures and {"detail": [{loc, msg, type}]}
// for field-level validation errors.
type errorEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

// validationItem is a single entry of a structured validation failure.
type validationItem struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// fieldName extracts the offending field from the location path. The first
// element names the request section ("body"), the last the field itself.
func (item validationItem) fieldName() string {
	if len(item.Loc) == 0 {
		return ""
	}
	return fmt.Sprint(item.Loc[len(item.Loc)-1])
}

// decodeFailure maps a non-2xx response to an [apperr.AppError].
//
// # Decoding Rules
//
// A string detail passes through as the message. A list detail is flattened
// into field errors with the individual messages joined by ", ". Anything
// else falls back to a fixed phrase inside [apperr.FromStatus].
func decodeFailure(status int, body []byte) *apperr.AppError {
	message := ""
	var details []apperr.FieldError

	envelope := errorEnvelope{}
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil && len(envelope.Detail) > 0 {

		var plain string
		if json.Unmarshal(envelope.Detail, &plain) == nil {
			message = plain
		} else {
			var items []validationItem
			if json.Unmarshal(envelope.Detail, &items) == nil {
				messages := make([]string, 0, len(items))
				for _, item := range items {
					details = append(details, apperr.FieldError{
						Field:   item.fieldName(),
						Message: item.Msg,
					})
					messages = append(messages, item.Msg)
				}
				message = strings.Join(messages, ", ")
			}
		}
	}

	return apperr.FromStatus(status, message, details...)
}

// decodeInto unmarshals a success body into the descriptor's Out target.
func decodeInto(out any, body []byte) error {
	if out == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("transport_decode_failed: %w", err)
	}

	return nil
}
