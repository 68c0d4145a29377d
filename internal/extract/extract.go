// Package extract recovers a JSON object or array from free-text model output.
//
// Models wrap JSON in markdown fences, prepend "Here is the data:" and append
// closing remarks. Extract unwraps fences, tries the text as-is, and otherwise
// scans for the first balanced object or array, honouring string literals and
// escapes so brackets inside strings are not counted.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Extraction failures. Callers surface all three as a single
// "could not interpret response" condition.
var (
	ErrNoJSONFound           = errors.New("extract: no JSON object or array found")
	ErrUnterminatedStructure = errors.New("extract: unterminated JSON structure")
	ErrMalformedJSON         = errors.New("extract: malformed JSON")
)

// MalformedJSONError carries the snippet that failed to parse.
type MalformedJSONError struct {
	Snippet string
	Err     error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("extract: malformed JSON: %v (snippet %q)", e.Err, truncate(e.Snippet, 200))
}

// Unwrap returns the underlying decode error.
func (e *MalformedJSONError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMalformedJSON) match.
func (e *MalformedJSONError) Is(target error) bool { return target == ErrMalformedJSON }

const fence = "```"

// Extract returns the JSON value embedded in text. On the scanning path the
// result is always an object or an array, matching the first opening
// delimiter found.
func Extract(text string) (json.RawMessage, error) {
	search := Unwrap(text)

	if search != "" && json.Valid([]byte(search)) {
		return json.RawMessage(search), nil
	}

	start := strings.IndexAny(search, "{[")
	if start < 0 {
		return nil, ErrNoJSONFound
	}

	end, err := matchClose(search, start)
	if err != nil {
		return nil, err
	}

	snippet := search[start : end+1]
	var probe any
	if err := json.Unmarshal([]byte(snippet), &probe); err != nil {
		return nil, &MalformedJSONError{Snippet: snippet, Err: err}
	}
	return json.RawMessage(snippet), nil
}

// Into extracts the JSON value from text and decodes it into v.
func Into(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &MalformedJSONError{Snippet: string(raw), Err: err}
	}
	return nil
}

// Value extracts and decodes into the generic JSON representation
// (map[string]any, []any, float64, ...).
func Value(text string) (any, error) {
	var v any
	if err := Into(text, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Unwrap returns the trimmed interior of the first fenced code block in
// text, dropping an optional "json" tag. Without a fence it returns text
// trimmed. An unclosed fence runs to the end of the input.
func Unwrap(text string) string {
	open := strings.Index(text, fence)
	if open < 0 {
		return strings.TrimSpace(text)
	}
	body := text[open+len(fence):]
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// Bracket kinds tracked by the scanner.
const (
	braces = iota
	brackets
)

// scanState is the complete state of the bracket matcher.
type scanState struct {
	pos      int
	depth    [2]int
	inString bool
	escape   bool
}

// step consumes the byte at st.pos. Escapes are only meaningful inside
// string literals; outside them a backslash is just an invalid byte that the
// final parse will reject.
func (st *scanState) step(c byte) {
	switch {
	case st.escape:
		st.escape = false
	case st.inString:
		switch c {
		case '\\':
			st.escape = true
		case '"':
			st.inString = false
		}
	default:
		switch c {
		case '"':
			st.inString = true
		case '{':
			st.depth[braces]++
		case '}':
			st.depth[braces]--
		case '[':
			st.depth[brackets]++
		case ']':
			st.depth[brackets]--
		}
	}
}

// matchClose returns the offset of the delimiter closing the one at start.
// Delimiters are ASCII, so scanning bytes is safe for UTF-8 input.
func matchClose(s string, start int) (int, error) {
	outer := braces
	if s[start] == '[' {
		outer = brackets
	}

	st := scanState{pos: start}
	for ; st.pos < len(s); st.pos++ {
		st.step(s[st.pos])
		if !st.inString && st.depth[outer] == 0 {
			return st.pos, nil
		}
	}
	return 0, fmt.Errorf("%w: %q opened at offset %d never closes", ErrUnterminatedStructure, s[start], start)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
