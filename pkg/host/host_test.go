package host

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/root4loot/grabber/pkg/encode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return encode.FromPNG(buf.Bytes())
}

func TestValidate(t *testing.T) {
	long := "data:image/jpeg;base64," + strings.Repeat("A", 300)

	tests := []struct {
		name  string
		value any
		kind  Kind
	}{
		{"null", nil, KindCancelled},
		{"png", pngDataURL(t, 3, 2), KindSuccess},
		{"wrong prefix", long, KindMalformed},
		{"wrong type", 42, KindMalformed},
		{"map", map[string]any{"a": 1}, KindMalformed},
		{"corrupt base64", encode.Prefix + "!!!not-base64!!!", KindDecodeFailed},
		{"not a png", encode.Prefix + "aGVsbG8gd29ybGQ=", KindDecodeFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := Validate(tc.value)
			assert.Equal(t, tc.kind, out.Kind)
			assert.NotEmpty(t, out.Message)
			if tc.kind != KindSuccess {
				assert.Nil(t, out.PNG)
			}
		})
	}
}

func TestValidateSuccessDecodes(t *testing.T) {
	out := Validate(pngDataURL(t, 3, 2))
	require.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, 3, out.Width)
	assert.Equal(t, 2, out.Height)

	img, err := png.Decode(bytes.NewReader(out.PNG))
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
}

func TestValidateMalformedPreview(t *testing.T) {
	value := "data:image/jpeg;base64," + strings.Repeat("B", 300)
	out := Validate(value)

	require.Equal(t, KindMalformed, out.Kind)
	assert.True(t, strings.HasPrefix(out.Preview, "data:image/jpeg;base64,"))
	assert.Equal(t, PreviewLength+len("..."), len(out.Preview))

	short := Validate("hello")
	assert.Equal(t, "hello", short.Preview)
}

func TestPageLifecycle(t *testing.T) {
	p := NewPage(PageVariant, 550)
	assert.Equal(t, StateIdle, p.Snapshot().State)

	assert.ErrorIs(t, p.BeginCapture(), ErrTransition)

	require.NoError(t, p.ComponentReady())
	assert.Equal(t, StateAwaitingTrigger, p.Snapshot().State)

	assert.ErrorIs(t, p.SetComponentValue(nil), ErrTransition)

	require.NoError(t, p.BeginCapture())
	assert.Equal(t, StateCapturing, p.Snapshot().State)
	assert.ErrorIs(t, p.BeginCapture(), ErrTransition)

	require.NoError(t, p.SetComponentValue(pngDataURL(t, 4, 4)))
	snap := p.Snapshot()
	assert.Equal(t, StateDelivered, snap.State)
	assert.Equal(t, KindSuccess, snap.Outcome)
	assert.Equal(t, 1, snap.Sequence)

	b, ok := p.Image()
	require.True(t, ok)
	assert.NotEmpty(t, b)

	// a fresh trigger clears the previous result
	require.NoError(t, p.BeginCapture())
	_, ok = p.Image()
	assert.False(t, ok)

	require.NoError(t, p.SetComponentValue(nil))
	snap = p.Snapshot()
	assert.Equal(t, KindCancelled, snap.Outcome)
	assert.Equal(t, 2, snap.Sequence)
	_, ok = p.Image()
	assert.False(t, ok)
}

func TestPageMalformedNoImage(t *testing.T) {
	p := NewPage(ScreenVariant, 400)
	require.NoError(t, p.ComponentReady())
	require.NoError(t, p.BeginCapture())
	require.NoError(t, p.SetComponentValue("not a data url"))

	snap := p.Snapshot()
	assert.Equal(t, KindMalformed, snap.Outcome)
	assert.Equal(t, "not a data url", snap.Preview)
	_, ok := p.Image()
	assert.False(t, ok)
}

func TestPageOnChange(t *testing.T) {
	p := NewPage(PageVariant, 100)

	var seen []State
	p.OnChange(func(s Snapshot) { seen = append(seen, s.State) })

	require.NoError(t, p.ComponentReady())
	p.SetFrameHeight(320)
	require.NoError(t, p.BeginCapture())
	require.NoError(t, p.SetComponentValue(nil))

	assert.Equal(t, []State{StateAwaitingTrigger, StateAwaitingTrigger, StateCapturing, StateDelivered}, seen)
	assert.Equal(t, 320, p.Snapshot().FrameHeight)
}
