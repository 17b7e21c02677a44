package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	frames chan image.Image
	tracks []*Track
	err    error
}

func newFakeStream(frames ...image.Image) *fakeStream {
	ch := make(chan image.Image, len(frames)+1)
	for _, f := range frames {
		ch <- f
	}
	return &fakeStream{
		frames: ch,
		tracks: []*Track{NewTrack("video", nil), NewTrack("audio", nil)},
	}
}

func (s *fakeStream) Frames() <-chan image.Image { return s.frames }
func (s *fakeStream) Tracks() []*Track { return s.tracks }
func (s *fakeStream) Err() error { return s.err }

type fakeSource struct {
	stream *fakeStream
	err    error
	opened atomic.Int32
}

func (s *fakeSource) Open(ctx context.Context) (Stream, error) {
	s.opened.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func deny(ctx context.Context) (bool, error) { return false, nil }

func TestScreenCaptureGranted(t *testing.T) {
	frame := solid(64, 48, color.RGBA{B: 255, A: 255})
	src := &fakeSource{stream: newFakeStream(frame)}
	s := NewScreen(src, AutoGrant)

	img, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.At(10, 10))

	assert.False(t, Live(src.stream))
	assert.Nil(t, s.Current())
}

func TestScreenCaptureOffsetFrame(t *testing.T) {
	frame := image.NewRGBA(image.Rect(100, 50, 140, 80))
	frame.Set(100, 50, color.RGBA{R: 255, A: 255})
	src := &fakeSource{stream: newFakeStream(frame)}

	img, err := NewScreen(src, AutoGrant).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.At(0, 0))
}

func TestScreenCaptureDenied(t *testing.T) {
	src := &fakeSource{stream: newFakeStream()}
	s := NewScreen(src, PrompterFunc(deny))

	_, err := s.Capture(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.True(t, IsCancellation(err))
	assert.EqualValues(t, 0, src.opened.Load())
}

func TestScreenCapturePromptCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pending := PrompterFunc(func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	s := NewScreen(&fakeSource{stream: newFakeStream()}, pending)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Capture(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsCancellation(err))
}

func TestScreenCaptureStreamError(t *testing.T) {
	stream := newFakeStream()
	stream.err = errors.New("display went away")
	close(stream.frames)
	src := &fakeSource{stream: stream}

	_, err := NewScreen(src, AutoGrant).Capture(context.Background())
	assert.EqualError(t, err, "display went away")
	assert.False(t, Live(stream))
}

func TestScreenCaptureStreamEnded(t *testing.T) {
	stream := newFakeStream()
	close(stream.frames)

	_, err := NewScreen(&fakeSource{stream: stream}, AutoGrant).Capture(context.Background())
	assert.ErrorIs(t, err, ErrStreamEnded)
	assert.False(t, Live(stream))
}

func TestScreenCaptureOpenError(t *testing.T) {
	src := &fakeSource{err: errors.New("no active displays found")}

	_, err := NewScreen(src, AutoGrant).Capture(context.Background())
	assert.ErrorContains(t, err, "no active displays found")
}

func TestScreenCaptureSkipsEmptyFrames(t *testing.T) {
	stream := newFakeStream(image.NewRGBA(image.Rectangle{}), solid(8, 8, color.White))

	img, err := NewScreen(&fakeSource{stream: stream}, AutoGrant).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestScreenCaptureContextDeadline(t *testing.T) {
	stream := newFakeStream()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewScreen(&fakeSource{stream: stream}, AutoGrant).Capture(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, Live(stream))
}

func TestScreenStopsPreviousStream(t *testing.T) {
	leftover := newFakeStream()
	s := NewScreen(&fakeSource{stream: newFakeStream(solid(2, 2, color.Black))}, AutoGrant)
	s.hold(leftover)
	require.True(t, Live(leftover))

	_, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.False(t, Live(leftover))
}

func TestTrackStopOnce(t *testing.T) {
	var stops int
	tr := NewTrack("video", func() { stops++ })
	assert.Equal(t, TrackLive, tr.State())

	tr.Stop()
	tr.Stop()
	assert.Equal(t, TrackEnded, tr.State())
	assert.Equal(t, 1, stops)
}
