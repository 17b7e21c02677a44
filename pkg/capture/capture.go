// Package capture produces a single raster of a target area, either a fully
// rendered document or one frame of a shared screen, and drives it through
// encoding and delivery to a host.
package capture

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrDependencyMissing means the rasterizer (a browser binary) is unavailable.
	ErrDependencyMissing = errors.New("rasterizer dependency missing")
	// ErrPermissionDenied means the user declined to share their screen.
	ErrPermissionDenied = errors.New("screen share permission denied")
	// ErrBusy is returned when a trigger fires while a capture is in flight.
	ErrBusy = errors.New("capture already in progress")
	// ErrStreamEnded means a stream stopped before producing a usable frame.
	ErrStreamEnded = errors.New("stream ended before a frame was captured")
)

// Adapter produces a raster of pixels representing its target area.
type Adapter interface {
	Capture(ctx context.Context) (image.Image, error)
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc func(ctx context.Context) (image.Image, error)

// Capture calls f.
func (f AdapterFunc) Capture(ctx context.Context) (image.Image, error) {
	return f(ctx)
}

// StatusKind is the status line shown on a capture surface.
type StatusKind string

const (
	StatusReady      StatusKind = "ready"
	StatusInProgress StatusKind = "in_progress"
	StatusSuccess    StatusKind = "success"
	StatusCancelled  StatusKind = "cancelled"
	StatusError      StatusKind = "error"
)

// Status is a status line.
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
}

// Result is the single settle value of a capture.
type Result struct {
	ID string
	// DataURL is nil when the capture was cancelled or failed.
	DataURL *string
	Status  Status
	// Err is the failure cause, nil on success and on user cancellation.
	Err error
}

// IsCancellation reports whether err is an expected, user-driven stop.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, context.Canceled)
}
