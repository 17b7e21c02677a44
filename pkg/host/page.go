// Package host implements the page that embeds a capture surface, receives
// its single value and offers the decoded PNG for download.
package host

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/root4loot/goutils/log"
)

// State is the lifecycle position of a host page.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingTrigger State = "awaiting_trigger"
	StateCapturing       State = "capturing"
	StateDelivered       State = "delivered"
)

// ErrTransition is returned for an event the current state does not accept.
var ErrTransition = errors.New("host: invalid state transition")

// Variant describes one demo page.
type Variant struct {
	Name     string
	Title    string
	Filename string
}

var (
	PageVariant = Variant{
		Name:     "page",
		Title:    "Capture this page",
		Filename: "page_capture.png",
	}
	ScreenVariant = Variant{
		Name:     "screen",
		Title:    "Capture your screen",
		Filename: "screen_capture.png",
	}
)

// Snapshot is the renderable view of a page.
type Snapshot struct {
	Variant     string    `json:"variant"`
	State       State     `json:"state"`
	Outcome     Kind      `json:"outcome,omitempty"`
	Message     string    `json:"message,omitempty"`
	Preview     string    `json:"preview,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	FrameHeight int       `json:"frame_height"`
	Sequence    int       `json:"sequence"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Page owns the host state. All transitions go through its methods.
type Page struct {
	variant Variant

	mu          sync.RWMutex
	state       State
	outcome     Outcome
	frameHeight int
	seq         int
	updated     time.Time

	onChange func(Snapshot)
}

// NewPage returns an idle page for variant.
func NewPage(variant Variant, frameHeight int) *Page {
	return &Page{
		variant:     variant,
		state:       StateIdle,
		frameHeight: frameHeight,
		updated:     time.Now(),
	}
}

// OnChange registers fn to be called after every transition.
func (p *Page) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Variant returns the page variant.
func (p *Page) Variant() Variant {
	return p.variant
}

// ComponentReady moves an idle page to awaiting_trigger.
func (p *Page) ComponentReady() error {
	return p.transition(func() error {
		switch p.state {
		case StateIdle:
			p.state = StateAwaitingTrigger
		case StateAwaitingTrigger, StateDelivered:
			// surface reloaded inside an already ready page
		default:
			return fmt.Errorf("%w: ready while %s", ErrTransition, p.state)
		}
		return nil
	})
}

// SetFrameHeight records the height of the embedded capture surface.
func (p *Page) SetFrameHeight(px int) {
	_ = p.transition(func() error {
		p.frameHeight = px
		return nil
	})
}

// BeginCapture enters capturing. A delivered page goes back through
// awaiting_trigger first.
func (p *Page) BeginCapture() error {
	return p.transition(func() error {
		switch p.state {
		case StateDelivered:
			p.state = StateAwaitingTrigger
			fallthrough
		case StateAwaitingTrigger:
			p.state = StateCapturing
			p.outcome = Outcome{}
		default:
			return fmt.Errorf("%w: capture while %s", ErrTransition, p.state)
		}
		return nil
	})
}

// SetComponentValue validates and stores the delivered value.
func (p *Page) SetComponentValue(v any) error {
	return p.transition(func() error {
		if p.state != StateCapturing {
			return fmt.Errorf("%w: value while %s", ErrTransition, p.state)
		}

		out := Validate(v)
		switch out.Kind {
		case KindSuccess:
			log.Debugf("[%s] received %dx%d PNG (%d bytes)", p.variant.Name, out.Width, out.Height, len(out.PNG))
		case KindCancelled:
			log.Debugf("[%s] capture cancelled", p.variant.Name)
		default:
			log.Warnf("[%s] %s", p.variant.Name, out.Message)
		}

		p.outcome = out
		p.state = StateDelivered
		p.seq++
		return nil
	})
}

// Image returns the decoded PNG of the last successful delivery.
func (p *Page) Image() ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state != StateDelivered || p.outcome.Kind != KindSuccess {
		return nil, false
	}
	return p.outcome.PNG, true
}

// Snapshot returns the current view.
func (p *Page) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Page) snapshotLocked() Snapshot {
	return Snapshot{
		Variant:     p.variant.Name,
		State:       p.state,
		Outcome:     p.outcome.Kind,
		Message:     p.outcome.Message,
		Preview:     p.outcome.Preview,
		Width:       p.outcome.Width,
		Height:      p.outcome.Height,
		FrameHeight: p.frameHeight,
		Sequence:    p.seq,
		UpdatedAt:   p.updated,
	}
}

func (p *Page) transition(fn func() error) error {
	p.mu.Lock()
	if err := fn(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.updated = time.Now()
	snap := p.snapshotLocked()
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
	return nil
}
