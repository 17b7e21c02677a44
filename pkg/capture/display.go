package capture

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/root4loot/goutils/log"
)

// DisplaySource streams frames of an active display.
type DisplaySource struct {
	Options ScreenOptions
}

// NewDisplaySource returns a source for options.
func NewDisplaySource(options ScreenOptions) *DisplaySource {
	return &DisplaySource{Options: options}
}

// Bounds returns the area of the configured display, or the union of all
// active displays when Display is negative.
func (s *DisplaySource) Bounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}

	if s.Options.Display < 0 {
		bounds := screenshot.GetDisplayBounds(0)
		for i := 1; i < n; i++ {
			bounds = bounds.Union(screenshot.GetDisplayBounds(i))
		}
		return bounds, nil
	}

	if s.Options.Display >= n {
		return image.Rectangle{}, fmt.Errorf("display %d not found (%d active)", s.Options.Display, n)
	}
	return screenshot.GetDisplayBounds(s.Options.Display), nil
}

// Open implements Source.
func (s *DisplaySource) Open(ctx context.Context) (Stream, error) {
	bounds, err := s.Bounds()
	if err != nil {
		return nil, err
	}

	fps := s.Options.FrameRate
	if fps <= 0 {
		fps = 1
	}

	st := &displayStream{
		bounds: bounds,
		frames: make(chan image.Image, 1),
		done:   make(chan struct{}),
	}
	st.track = NewTrack("video", st.stop)

	log.Debugf("Screen stream opened on %v at %d fps", bounds, fps)
	go st.run(ctx, time.Second/time.Duration(fps))
	return st, nil
}

type displayStream struct {
	bounds image.Rectangle
	track  *Track
	frames chan image.Image
	done   chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *displayStream) Frames() <-chan image.Image { return s.frames }

func (s *displayStream) Tracks() []*Track { return []*Track{s.track} }

func (s *displayStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *displayStream) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *displayStream) run(ctx context.Context, interval time.Duration) {
	defer close(s.frames)
	defer s.track.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		img, err := screenshot.CaptureRect(s.bounds)
		if err != nil {
			s.mu.Lock()
			s.err = fmt.Errorf("failed to capture screen: %w", err)
			s.mu.Unlock()
			return
		}

		select {
		case s.frames <- img:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
			// receiver is behind; drop the frame
		}

		select {
		case <-ticker.C:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
