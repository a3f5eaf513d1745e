// Package http exposes the ledger commands as a small JSON API.
//
// This file implements the builder used by every handler to write
// consistent JSON and binary responses.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"totalx/internal/core"
)

// ErrorBody is the payload of every failed request. Message is the same
// reply text a chat front-end would show.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON encodes v as the body. An encoding failure turns the response into a 500.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(ErrorBody{Error: "internal", Message: err.Error()})
		b.statusCode = http.StatusInternalServerError
	}
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.body = data
	return b
}

// Attachment sends data as a downloadable file.
func (b *ResponseBuilder) Attachment(fileName, contentType string, data []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = `attachment; filename="` + fileName + `"`
	b.body = data
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: code, Message: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

// StatusFor maps a command error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, core.ErrInvalidIdentity):
		return http.StatusBadRequest, "invalid_identity"
	case errors.Is(err, core.ErrProtectedIdentity):
		return http.StatusForbidden, "protected_identity"
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
