package app

import (
	"context"
	"strings"
	"sync"

	"medword/internal/backend"
	"medword/internal/document"
	"medword/internal/model"
)

type fakeDoc struct {
	mu        sync.Mutex
	body      string
	selection string
	readErr   error
	replaced  []string
	inserted  []document.Format
	events    chan string
}

func (d *fakeDoc) ReadSelection(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection, d.readErr
}

func (d *fakeDoc) ReadBody(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.body, d.readErr
}

func (d *fakeDoc) ReplaceSelection(ctx context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replaced = append(d.replaced, text)
	return nil
}

func (d *fakeDoc) InsertAtEnd(ctx context.Context, data []byte, format document.Format) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inserted = append(d.inserted, format)
	return nil
}

func (d *fakeDoc) SubscribeSelection() (<-chan string, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.events == nil {
		d.events = make(chan string, 8)
	}
	return d.events, func() {}
}

func (d *fakeDoc) setBody(body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.body = body
}

type chatCall struct {
	req backend.ChatRequest
}

type fakeChatBackend struct {
	mu    sync.Mutex
	reply string
	err   error
	gate  chan struct{}
	calls []chatCall
}

func (f *fakeChatBackend) Chat(ctx context.Context, req backend.ChatRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, chatCall{req: req})
	gate := f.gate
	reply, err := f.reply, f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return reply, err
}

func (f *fakeChatBackend) lastRequest() backend.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1].req
}

func (f *fakeChatBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.JournalEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev model.JournalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type staticLoader []model.ChatSession

func (l staticLoader) LoadSessions(ctx context.Context) ([]model.ChatSession, error) {
	return l, nil
}

func docOfLength(n int) string {
	return strings.Repeat("a", n)
}
