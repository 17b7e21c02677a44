package capture

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/root4loot/goutils/log"
)

// Screen grabs a single frame from a user-granted screen stream.
type Screen struct {
	source   Source
	prompter Prompter

	mu      sync.Mutex
	current Stream
}

// NewScreen returns a screen grabber over source, gated by prompter.
func NewScreen(source Source, prompter Prompter) *Screen {
	if prompter == nil {
		prompter = AutoGrant
	}
	return &Screen{source: source, prompter: prompter}
}

// Capture implements Adapter. The stream it opens is stopped on every
// return path.
func (s *Screen) Capture(ctx context.Context) (image.Image, error) {
	s.stopCurrent()

	granted, err := s.prompter.Request(ctx)
	if err != nil {
		return nil, fmt.Errorf("screen share request: %w", err)
	}
	if !granted {
		return nil, ErrPermissionDenied
	}

	stream, err := s.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open screen stream: %w", err)
	}
	s.hold(stream)
	defer s.release(stream)

	frame, err := firstFrame(ctx, stream)
	if err != nil {
		return nil, err
	}

	b := frame.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), frame, b.Min, draw.Src)
	return canvas, nil
}

// Current returns the stream held by an in-flight capture, if any.
func (s *Screen) Current() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Screen) hold(stream Stream) {
	s.mu.Lock()
	s.current = stream
	s.mu.Unlock()
}

func (s *Screen) release(stream Stream) {
	StopAll(stream)

	s.mu.Lock()
	if s.current == stream {
		s.current = nil
	}
	s.mu.Unlock()
}

func (s *Screen) stopCurrent() {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()

	if prev != nil {
		log.Warn("Stopping a screen stream left over from a previous capture")
		StopAll(prev)
	}
}

// firstFrame waits for the first frame whose dimensions are known.
func firstFrame(ctx context.Context, stream Stream) (image.Image, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case frame, ok := <-stream.Frames():
			if !ok {
				if err := stream.Err(); err != nil {
					return nil, err
				}
				return nil, ErrStreamEnded
			}
			if frame == nil || frame.Bounds().Empty() {
				continue
			}
			return frame, nil
		}
	}
}
