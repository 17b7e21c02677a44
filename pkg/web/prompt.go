package web

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/grabber/pkg/hub"
)

// ErrUnknownPrompt is returned when resolving a prompt that is not pending.
var ErrUnknownPrompt = errors.New("no such permission prompt")

// PromptBroker asks the browser showing the screen page for consent before
// a screen share starts. It implements capture.Prompter.
type PromptBroker struct {
	hub *hub.Hub

	mu      sync.Mutex
	pending map[string]chan bool
}

// NewPromptBroker returns a broker announcing prompts on h.
func NewPromptBroker(h *hub.Hub) *PromptBroker {
	return &PromptBroker{hub: h, pending: make(map[string]chan bool)}
}

// Request announces a prompt and waits for its answer. There is no timeout:
// an unanswered prompt is pending until ctx ends.
func (p *PromptBroker) Request(ctx context.Context) (bool, error) {
	id := uuid.NewString()
	answer := make(chan bool, 1)

	p.mu.Lock()
	p.pending[id] = answer
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	log.Debugf("Waiting for screen share consent (prompt %s)", id)
	if p.hub != nil {
		p.hub.BroadcastJSON(message{Type: messagePermission, Prompt: id})
	}

	select {
	case granted := <-answer:
		return granted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Resolve answers a pending prompt.
func (p *PromptBroker) Resolve(id string, granted bool) error {
	p.mu.Lock()
	answer, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()

	if !ok {
		return ErrUnknownPrompt
	}
	answer <- granted
	return nil
}

// Pending returns the ids of unanswered prompts.
func (p *PromptBroker) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	return ids
}
