// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sandbox

import (
	"encoding/json"
	"net/http"

	"github.com/taibuivan/kaiwa/internal/platform/apperr"
	"github.com/taibuivan/kaiwa/internal/platform/constants"
)

// # Wire Envelope
//
// The production backend wraps every failure in a detail envelope: a plain
// string for most errors, or a list of location-tagged items for request
// validation. Successful responses carry the resource directly with no
// wrapper. The client's transport layer is written against exactly this
// shape, so the sandbox reproduces it byte for byte.

// validationItem is one entry of the 422 detail list.
type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}

// writeDetail writes the string form of the detail envelope.
func writeDetail(writer http.ResponseWriter, status int, message string) {
	writeJSON(writer, status, map[string]string{constants.FieldDetail: message})
}

// writeMessage writes the success message envelope used by the verb-style
// endpoints (logout, delete, recovery).
func writeMessage(writer http.ResponseWriter, message string) {
	writeJSON(writer, http.StatusOK, map[string]string{constants.FieldMessage: message})
}

// writeValidation writes the list form of the detail envelope.
//
// location is the request section the failing fields live in ("body",
// "query", or "path").
func writeValidation(writer http.ResponseWriter, location string, fields []apperr.FieldError) {
	items := make([]validationItem, 0, len(fields))
	for _, field := range fields {
		items = append(items, validationItem{
			Loc:  []string{location, field.Field},
			Msg:  field.Message,
			Type: "value_error",
		})
	}

	writeJSON(writer, http.StatusUnprocessableEntity, map[string]any{constants.FieldDetail: items})
}

// writeError maps an [apperr.AppError] onto the wire envelope.
//
// Validation failures with field details take the list form; everything
// else is a plain detail string under the error's own status.
func writeError(writer http.ResponseWriter, err *apperr.AppError) {
	if err.Code == apperr.CodeValidation && len(err.Details) > 0 {
		writeValidation(writer, "body", err.Details)
		return
	}

	status := err.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	writeDetail(writer, status, err.Message)
}

// writeInvalidJSON reports an undecodable request body the way the
// backend's framework does.
func writeInvalidJSON(writer http.ResponseWriter) {
	writeJSON(writer, http.StatusUnprocessableEntity, map[string]any{
		constants.FieldDetail: []validationItem{{
			Loc:  []string{"body"},
			Msg:  "Invalid JSON payload",
			Type: "value_error.jsondecode",
		}},
	})
}

// decodeJSON reads the request body into target.
func decodeJSON(request *http.Request, target any) error {
	return json.NewDecoder(request.Body).Decode(target)
}
