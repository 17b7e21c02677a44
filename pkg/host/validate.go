package host

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	"github.com/root4loot/grabber/pkg/encode"
)

// PreviewLength is how much of a malformed value is echoed back.
const PreviewLength = 100

// Kind classifies a delivered value.
type Kind string

const (
	KindSuccess      Kind = "success"
	KindCancelled    Kind = "cancelled"
	KindMalformed    Kind = "malformed"
	KindDecodeFailed Kind = "decode_failed"
)

// Outcome is the result of validating one delivered value.
type Outcome struct {
	Kind    Kind
	Message string
	// Preview holds the truncated raw value for malformed input.
	Preview string
	PNG     []byte
	Width   int
	Height  int
}

// Validate checks the shape of v and decodes it when it is a PNG data URL.
// Values of the wrong shape are never decoded.
func Validate(v any) Outcome {
	if v == nil {
		return Outcome{Kind: KindCancelled, Message: "Capture was cancelled or nothing was captured."}
	}

	s, ok := v.(string)
	if !ok {
		return Outcome{
			Kind:    KindMalformed,
			Message: fmt.Sprintf("Unexpected value type %T received from the capture surface.", v),
			Preview: truncate(fmt.Sprint(v)),
		}
	}

	if !strings.HasPrefix(s, encode.Prefix) {
		return Outcome{
			Kind:    KindMalformed,
			Message: "Invalid image data URL: the value is not a base64 PNG.",
			Preview: truncate(s),
		}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, encode.Prefix))
	if err != nil {
		return Outcome{Kind: KindDecodeFailed, Message: fmt.Sprintf("Could not decode image payload: %v", err)}
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Outcome{Kind: KindDecodeFailed, Message: fmt.Sprintf("Payload is not a valid PNG: %v", err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Outcome{Kind: KindDecodeFailed, Message: "Payload PNG has no pixels."}
	}

	return Outcome{
		Kind:    KindSuccess,
		Message: "Capture received.",
		PNG:     raw,
		Width:   cfg.Width,
		Height:  cfg.Height,
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= PreviewLength {
		return s
	}
	return string(r[:PreviewLength]) + "..."
}
