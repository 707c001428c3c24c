// Package backendtest provides scripted completion backends for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/agentgraph/internal/backend"
)

// HandlerFunc produces the reply for one request.
type HandlerFunc func(req backend.Request) (string, error)

// Fake is a Backend whose replies come from a HandlerFunc. It records every
// request and is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	handler HandlerFunc
	calls   []backend.Request
}

// New returns a Fake driven by fn.
func New(fn HandlerFunc) *Fake {
	return &Fake{handler: fn}
}

// Sequence returns a Fake that replies with each entry in order. Entries are
// either a string (reply) or an error. Calls beyond the script fail.
func Sequence(replies ...any) *Fake {
	var next int
	var mu sync.Mutex
	return New(func(req backend.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(replies) {
			return "", fmt.Errorf("unexpected call %d (only %d replies configured)", next+1, len(replies))
		}
		r := replies[next]
		next++
		switch v := r.(type) {
		case string:
			return v, nil
		case error:
			return "", v
		default:
			return "", fmt.Errorf("invalid reply type: %T", v)
		}
	})
}

// Send records req and returns the handler's reply.
func (f *Fake) Send(ctx context.Context, req backend.Request) (backend.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cloneRequest(req))
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return backend.Response{}, err
	}

	content, err := f.handler(req)
	if err != nil {
		return backend.Response{}, err
	}
	return backend.Response{Content: content, Model: req.Model}, nil
}

// Close is a no-op.
func (f *Fake) Close() error {
	return nil
}

// Calls returns a copy of every recorded request in arrival order.
func (f *Fake) Calls() []backend.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of requests received.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// LastUserMessage returns the content of the final user turn of req.
func LastUserMessage(req backend.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == backend.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

func cloneRequest(req backend.Request) backend.Request {
	cp := req
	cp.Messages = append([]backend.Message(nil), req.Messages...)
	return cp
}
