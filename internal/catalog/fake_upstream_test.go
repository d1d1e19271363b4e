package catalog

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/catalog-hub/catalog-hub/internal/upstream"
)

// recordedCall 捕获一次上游调用的路径与参数。
type recordedCall struct {
	Path  string
	Query url.Values
}

// fakeUpstream 按路径返回预置 JSON 或错误，并记录所有调用。
type fakeUpstream struct {
	mu        sync.Mutex
	responses map[string]string
	errors    map[string]error
	delay     time.Duration
	hold      chan struct{}
	calls     []recordedCall
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		responses: make(map[string]string),
		errors:    make(map[string]error),
	}
}

var _ upstream.Fetcher = (*fakeUpstream)(nil)

func (f *fakeUpstream) respond(path, body string) {
	f.mu.Lock()
	f.responses[path] = body
	f.mu.Unlock()
}

func (f *fakeUpstream) fail(path string, err error) {
	f.mu.Lock()
	f.errors[path] = err
	f.mu.Unlock()
}

func (f *fakeUpstream) Get(ctx context.Context, path string, query url.Values, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Path: path, Query: query})
	body, ok := f.responses[path]
	err := f.errors[path]
	delay := f.delay
	hold := f.hold
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	if !ok {
		return &upstream.StatusError{Status: 404, Path: path}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeUpstream) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]recordedCall, len(f.calls))
	copy(result, f.calls)
	return result
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
