package service

import (
	"context"
	"errors"
	"sync"

	"inkwell/internal/models"
	"inkwell/internal/pagination"
)

// SearchRequest is one keystroke-driven query from a live search client.
// Seq increases with every request the client sends.
type SearchRequest struct {
	Seq    int64  `json:"seq"`
	Search string `json:"search"`
	Page   int    `json:"page"`
}

// SearchResponse answers the request with the same Seq.
type SearchResponse struct {
	Seq   int64                         `json:"seq"`
	Posts *pagination.Page[models.Post] `json:"posts,omitempty"`
	Error string                        `json:"error,omitempty"`
}

// SearchFunc runs a single search.
type SearchFunc func(ctx context.Context, req SearchRequest) (*pagination.Page[models.Post], error)

// LiveSearch serializes the searches of one connection. A new request cancels
// the one in flight, and a response is delivered only while its Seq is still
// the latest, so an older result can never replace a newer one.
type LiveSearch struct {
	search SearchFunc

	mu     sync.Mutex
	latest int64
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

func NewLiveSearch(search SearchFunc) *LiveSearch {
	return &LiveSearch{search: search}
}

// Submit starts req in the background. Requests whose Seq is not newer than
// one already seen are dropped. deliver runs with the sequencer locked, so
// calls to it never overlap.
func (l *LiveSearch) Submit(ctx context.Context, req SearchRequest, deliver func(SearchResponse)) bool {
	l.mu.Lock()
	if l.closed || req.Seq <= l.latest {
		l.mu.Unlock()
		return false
	}
	l.latest = req.Seq
	if l.cancel != nil {
		l.cancel()
	}
	qctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer cancel()

		posts, err := l.search(qctx, req)

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed || req.Seq != l.latest || qctx.Err() != nil {
			return
		}
		resp := SearchResponse{Seq: req.Seq, Posts: posts}
		if err != nil {
			resp.Posts = nil
			resp.Error = publicMessage(err)
		}
		deliver(resp)
	}()
	return true
}

// Close cancels the in-flight search and waits for it to return.
func (l *LiveSearch) Close() {
	l.mu.Lock()
	l.closed = true
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()
	l.wg.Wait()
}

// publicMessage hides internal failures from clients.
func publicMessage(err error) string {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code == models.CodeInternal {
		return "Search failed"
	}
	return appErr.Message
}
