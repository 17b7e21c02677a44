package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/grabber/pkg/bridge"
	"github.com/root4loot/grabber/pkg/encode"
)

// Trigger runs Adapter → Encoder → Bridge once per activation. A trigger
// with a capture in flight rejects further activations.
type Trigger struct {
	name    string
	adapter Adapter
	bridge  *bridge.Bridge

	// Imprint, when set, is written under every capture before encoding.
	Imprint string

	mu       sync.Mutex
	inFlight *Task
	status   Status
	onStatus func(Status)
}

// NewTrigger returns a ready trigger.
func NewTrigger(name string, adapter Adapter, b *bridge.Bridge) *Trigger {
	return &Trigger{
		name:    name,
		adapter: adapter,
		bridge:  b,
		status:  Status{Kind: StatusReady, Message: "Ready. Press the button to capture."},
	}
}

// OnStatus registers fn to receive every status change.
func (t *Trigger) OnStatus(fn func(Status)) {
	t.mu.Lock()
	t.onStatus = fn
	t.mu.Unlock()
}

// Status returns the current status line.
func (t *Trigger) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// InFlight reports whether a capture is running.
func (t *Trigger) InFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight != nil
}

// Fire starts a capture and returns its task. It returns ErrBusy while a
// previous capture has not settled.
func (t *Trigger) Fire(ctx context.Context) (*Task, error) {
	t.mu.Lock()
	if t.inFlight != nil {
		t.mu.Unlock()
		return nil, ErrBusy
	}

	delivery, err := t.bridge.Begin()
	if err != nil {
		t.mu.Unlock()
		if errors.Is(err, bridge.ErrNoHost) {
			log.Errorf("[%s] capture surface is not embedded in a host page", t.name)
		}
		t.setStatus(Status{Kind: StatusError, Message: fmt.Sprintf("Error: %v", err)})
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	task := newTask(uuid.NewString(), cancel)
	t.inFlight = task
	t.mu.Unlock()

	log.Debugf("[%s] capture %s started", t.name, task.ID)
	t.setStatus(Status{Kind: StatusInProgress, Message: "Capturing... please wait."})

	go t.run(ctx, task, delivery)
	return task, nil
}

func (t *Trigger) run(ctx context.Context, task *Task, delivery *bridge.Delivery) {
	defer task.Cancel()

	res := Result{ID: task.ID}

	img, err := safeCapture(ctx, t.adapter)
	var url string
	if err == nil {
		if t.Imprint != "" {
			img = encode.Imprint(img, t.Imprint)
		}
		url, err = encode.DataURL(img)
	}

	switch {
	case err == nil:
		res.DataURL = &url
		b := img.Bounds()
		res.Status = Status{Kind: StatusSuccess, Message: fmt.Sprintf("Captured a %dx%d image.", b.Dx(), b.Dy())}
	case IsCancellation(err):
		log.Debugf("[%s] capture %s cancelled: %v", t.name, task.ID, err)
		res.Status = Status{Kind: StatusCancelled, Message: "Capture cancelled."}
	case errors.Is(err, ErrDependencyMissing):
		log.Errorf("[%s] %v", t.name, err)
		res.Err = err
		res.Status = Status{Kind: StatusError, Message: fmt.Sprintf("Error: %v", err)}
	default:
		log.Errorf("[%s] capture %s failed: %v", t.name, task.ID, err)
		res.Err = err
		res.Status = Status{Kind: StatusError, Message: fmt.Sprintf("Error while capturing: %v", err)}
	}

	var value any
	if res.DataURL != nil {
		value = *res.DataURL
	}
	if err := delivery.Send(value); err != nil {
		if errors.Is(err, bridge.ErrNoHost) {
			log.Errorf("[%s] capture %s could not be delivered: %v", t.name, task.ID, err)
		}
		res.Err = err
		res.Status = Status{Kind: StatusError, Message: fmt.Sprintf("Error: could not deliver capture: %v", err)}
	}

	// Publish the final status while still in flight, so a Fire racing the
	// release cannot have its in-progress status overwritten by this one.
	t.setStatus(res.Status)

	t.mu.Lock()
	if t.inFlight == task {
		t.inFlight = nil
	}
	t.mu.Unlock()

	task.settle(res)
}

func (t *Trigger) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	fn := t.onStatus
	t.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

func safeCapture(ctx context.Context, a Adapter) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capture panicked: %v", r)
		}
	}()
	return a.Capture(ctx)
}
