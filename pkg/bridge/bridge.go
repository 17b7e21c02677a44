// Package bridge hands a single capture value from the capture surface to
// the page that embeds it.
package bridge

import (
	"errors"
	"sync"

	"github.com/root4loot/goutils/log"
)

var (
	// ErrNoHost means the capture surface is not embedded in a host.
	ErrNoHost = errors.New("bridge: no host attached")
	// ErrAlreadyDelivered is returned when a delivery is sent twice.
	ErrAlreadyDelivered = errors.New("bridge: value already delivered")
)

// Host is the embedding side of the bridge.
type Host interface {
	// ComponentReady is called once when the capture surface is initialised.
	ComponentReady() error
	// SetFrameHeight sizes the frame the capture surface is rendered in.
	SetFrameHeight(px int)
	// BeginCapture is called when a trigger starts a capture.
	BeginCapture() error
	// SetComponentValue receives the delivered value: nil or a data URL.
	SetComponentValue(v any) error
}

// Bridge connects one capture surface to its host.
type Bridge struct {
	mu     sync.Mutex
	host   Host
	ready  bool
	height int
}

// New returns a bridge attached to host. host may be nil and attached later.
func New(host Host) *Bridge {
	return &Bridge{host: host}
}

// Attach replaces the host.
func (b *Bridge) Attach(host Host) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.host = host
	b.ready = false
	b.height = 0
}

// Ready signals readiness once and reports the initial frame height.
// Subsequent calls only report height changes.
func (b *Bridge) Ready(height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.host == nil {
		log.Errorf("Capture surface is not embedded: %v", ErrNoHost)
		return ErrNoHost
	}

	if !b.ready {
		if err := b.host.ComponentReady(); err != nil {
			return err
		}
		b.ready = true
		log.Debug("Capture surface ready")
	}

	b.resizeLocked(height)
	return nil
}

// Resize forwards a new frame height when it differs from the last one.
func (b *Bridge) Resize(height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.host == nil {
		log.Errorf("Cannot resize capture frame: %v", ErrNoHost)
		return ErrNoHost
	}
	b.resizeLocked(height)
	return nil
}

func (b *Bridge) resizeLocked(height int) {
	if height <= 0 || height == b.height {
		return
	}
	b.height = height
	b.host.SetFrameHeight(height)
}

// Begin notifies the host that a capture started and returns the delivery
// handle for its single result.
func (b *Bridge) Begin() (*Delivery, error) {
	b.mu.Lock()
	host := b.host
	b.mu.Unlock()

	if host == nil {
		log.Errorf("Cannot start capture: %v", ErrNoHost)
		return nil, ErrNoHost
	}
	if err := host.BeginCapture(); err != nil {
		return nil, err
	}
	return &Delivery{host: host}, nil
}

// Delivery carries exactly one value to the host.
type Delivery struct {
	once sync.Once
	host Host
}

// Send delivers value. Only the first call reaches the host.
func (d *Delivery) Send(value any) error {
	if d == nil || d.host == nil {
		log.Errorf("Cannot deliver capture value: %v", ErrNoHost)
		return ErrNoHost
	}

	err := ErrAlreadyDelivered
	d.once.Do(func() {
		err = d.host.SetComponentValue(value)
		if err != nil {
			log.Warnf("Host rejected capture value: %v", err)
		}
	})
	return err
}
