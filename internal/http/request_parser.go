// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"totalx/internal/core"
)

// HeaderActor names the identity issuing a command. Authentication is left to
// the fronting proxy or bot gateway.
const HeaderActor = "X-Actor"

// maxBodyBytes bounds command bodies; they carry at most an amount or a handle.
const maxBodyBytes = 4 << 10

var errMissingActor = fmt.Errorf("%w: missing %s header", core.ErrInvalidIdentity, HeaderActor)

// ActorFromRequest returns the canonical identity in the X-Actor header.
func ActorFromRequest(r *http.Request) (core.Identity, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderActor))
	if raw == "" {
		return "", errMissingActor
	}
	return core.ParseIdentity(sanitizeInput(raw))
}

// RequestBodyParser handles parsing of request bodies.
// It supports both JSON and form-encoded data, and falls back to the query
// string so that `POST /v1/add?amount=10` works too.
type RequestBodyParser struct {
	body     []byte
	query    url.Values
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{query: r.URL.Query()}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(p.err, &tooLarge) {
			p.err = fmt.Errorf("request body larger than %d bytes", tooLarge.Limit)
		}
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(body, "{") {
		dec := json.NewDecoder(strings.NewReader(body))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		if dec.More() {
			p.jsonData = nil
			p.err = errors.New("invalid JSON body: trailing data")
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a value from the body (JSON or form), then from the query string.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if v := p.formData.Get(key); v != "" {
		return strings.TrimSpace(sanitizeInput(v))
	}
	return strings.TrimSpace(sanitizeInput(p.query.Get(key)))
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string. Numbers are decoded
// as json.Number and keep their literal digits, so 12.5 and "12,5" both
// reach the amount parser without passing through float64.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
