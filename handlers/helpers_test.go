// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/danielhkuo/agile-poker/models"
	"github.com/danielhkuo/agile-poker/realtime"
	"github.com/danielhkuo/agile-poker/testutil"
)

// recordingPublisher keeps every published event for assertions
type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) all() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPublisher) find(table, typ string) (realtime.Event, bool) {
	for _, ev := range p.all() {
		if ev.Table == table && ev.Type == typ {
			return ev, true
		}
	}
	return realtime.Event{}, false
}

// newRequest builds a request as user with the given path value for {id}
func newRequest(method, path, id string, body interface{}, user models.Identity) *http.Request {
	req := testutil.MakeRequest(method, path, body, nil)
	if id != "" {
		req.SetPathValue("id", id)
	}
	return testutil.AsUser(req, user)
}
