package capture

import (
	"context"
	"image"
	"sync"
)

// TrackState mirrors the life of a media track.
type TrackState string

const (
	TrackLive  TrackState = "live"
	TrackEnded TrackState = "ended"
)

// Track is one media track of a stream.
type Track struct {
	Kind string

	mu     sync.Mutex
	state  TrackState
	onStop func()
}

// NewTrack returns a live track. onStop runs once when the track stops.
func NewTrack(kind string, onStop func()) *Track {
	return &Track{Kind: kind, state: TrackLive, onStop: onStop}
}

// State returns the track state.
func (t *Track) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stop ends the track. Stopping an ended track does nothing.
func (t *Track) Stop() {
	t.mu.Lock()
	if t.state == TrackEnded {
		t.mu.Unlock()
		return
	}
	t.state = TrackEnded
	onStop := t.onStop
	t.mu.Unlock()

	if onStop != nil {
		onStop()
	}
}

// Stream is a live screen share.
type Stream interface {
	// Frames yields frames until the stream stops; it is closed afterwards.
	Frames() <-chan image.Image
	// Tracks returns the stream's tracks.
	Tracks() []*Track
	// Err reports why Frames was closed, nil after a regular stop.
	Err() error
}

// StopAll ends every track of s.
func StopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// Live reports whether any track of s is still live.
func Live(s Stream) bool {
	if s == nil {
		return false
	}
	for _, t := range s.Tracks() {
		if t.State() == TrackLive {
			return true
		}
	}
	return false
}

// Source opens screen streams.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Prompter asks the user to grant a screen share. It has no timeout of its
// own and stays pending until answered or ctx ends.
type Prompter interface {
	Request(ctx context.Context) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) (bool, error)

// Request calls f.
func (f PrompterFunc) Request(ctx context.Context) (bool, error) {
	return f(ctx)
}

// AutoGrant grants every request. Used where the operator starting the
// process has already consented, such as the snap command.
var AutoGrant = PrompterFunc(func(ctx context.Context) (bool, error) {
	return true, ctx.Err()
})
