// Package datasource turns AI backend answers into dashboard records. Every
// fetch builds a prompt, makes one web-grounded backend call, recovers the
// JSON value from the free-text answer and shapes it into pkg/models types.
package datasource

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// --- Sentinel errors ---

var (
	// ErrFetchFailed matches every *FetchError.
	ErrFetchFailed = errors.New("datasource: fetch failed")

	// ErrInterpretResponse means the backend answered but no usable JSON
	// could be recovered from it.
	ErrInterpretResponse = errors.New("could not interpret response")

	// ErrBackendRequest means the backend call itself failed.
	ErrBackendRequest = errors.New("backend request failed")

	// ErrInvalidInput is returned before any backend call for a bad query
	// or time range.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDashboardLoad is the single error surfaced when any homepage
	// request fails.
	ErrDashboardLoad = errors.New("datasource: failed to load dashboard")
)

// PlaceholderSummary replaces narrative text the backend left empty.
const PlaceholderSummary = "No summary available."

// FetchError records which fetch failed and with which parameters.
type FetchError struct {
	Op     string
	Params map[string]string
	Err    error
}

func (e *FetchError) Error() string {
	if len(e.Params) == 0 {
		return fmt.Sprintf("datasource: %s: %v", e.Op, e.Err)
	}
	keys := make([]string, 0, len(e.Params))
	for k := range e.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%q", k, e.Params[k])
	}
	return fmt.Sprintf("datasource: %s(%s): %v", e.Op, strings.Join(pairs, ", "), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFetchFailed) match any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

func fetchErr(op string, params map[string]string, kind, cause error) error {
	if kind == nil {
		return &FetchError{Op: op, Params: params, Err: cause}
	}
	return &FetchError{Op: op, Params: params, Err: fmt.Errorf("%w: %w", kind, cause)}
}

// Op names used in FetchError and logs.
const (
	OpMarketIndices   = "market_indices"
	OpStock           = "stock"
	OpResearchSummary = "research_summary"
	OpNews            = "news"
	OpScreen          = "screen"
	OpLatestUpdates   = "latest_updates"
	OpEarnings        = "earnings"
	OpSidebar         = "sidebar"
)
