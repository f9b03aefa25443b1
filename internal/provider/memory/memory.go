// Package memory provides a scripted in-memory provider.Source for tests
// and local development without upstream credentials.
package memory

import (
	"context"
	"sync"

	"conto/internal/provider"
)

// Request records one SyncPage call for assertions.
type Request struct {
	AccessToken string
	Cursor      string
}

// Response is one scripted reply: either a page or an error.
type Response struct {
	Page provider.SyncPage
	Err  error
}

// Source replays a fixed script of responses in order. Once the script is
// exhausted it answers "nothing new": an empty page echoing the request
// cursor with has_more false.
type Source struct {
	mu        sync.Mutex
	script    []Response
	remaining []Response
	requests  []Request
}

func NewSource(responses ...Response) *Source {
	return &Source{
		script:    responses,
		remaining: responses,
	}
}

// PageResponse wraps a page as a scripted response.
func PageResponse(page provider.SyncPage) Response {
	return Response{Page: page}
}

// ErrorResponse wraps an error as a scripted response.
func ErrorResponse(err error) Response {
	return Response{Err: err}
}

// NotReadyResponse is the provider's "delta not ready yet" reply: an empty
// next cursor tells the caller to repeat the same request after a pause.
func NotReadyResponse() Response {
	return Response{Page: provider.SyncPage{NextCursor: "", HasMore: true}}
}

func (s *Source) SyncPage(ctx context.Context, accessToken, cursor string) (provider.SyncPage, error) {
	if err := ctx.Err(); err != nil {
		return provider.SyncPage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{AccessToken: accessToken, Cursor: cursor})

	if len(s.remaining) == 0 {
		next := cursor
		if next == "" {
			next = "cursor-end"
		}
		return provider.SyncPage{NextCursor: next, HasMore: false}, nil
	}

	resp := s.remaining[0]
	s.remaining = s.remaining[1:]
	if resp.Err != nil {
		return provider.SyncPage{}, resp.Err
	}
	return resp.Page, nil
}

// Requests returns a copy of every recorded call.
func (s *Source) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Rewind restores the original script, e.g. to replay identical upstream
// state in idempotence tests.
func (s *Source) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = s.script
}
