package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os/exec"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/root4loot/goutils/log"
)

// Document rasterizes a whole document, beyond the visible viewport.
type Document struct {
	Options DocumentOptions
}

// NewDocument returns a document rasterizer for options.
func NewDocument(options DocumentOptions) *Document {
	return &Document{Options: options}
}

// Capture implements Adapter.
func (d *Document) Capture(ctx context.Context) (image.Image, error) {
	if d.Options.URL == "" {
		return nil, fmt.Errorf("no document URL configured")
	}

	if d.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Options.Timeout)
		defer cancel()
	}

	var (
		raw []byte
		err error
	)
	switch d.Options.Engine {
	case EngineChromedp:
		raw, err = d.captureChromedp(ctx)
	case EngineRod, "":
		raw, err = d.captureRod(ctx)
	default:
		return nil, fmt.Errorf("unknown rasterizer engine %q", d.Options.Engine)
	}
	if err != nil {
		return nil, err
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode raster of %s: %w", d.Options.URL, err)
	}
	return img, nil
}

func (d *Document) captureRod(ctx context.Context) ([]byte, error) {
	path := d.Options.BrowserBin
	if path == "" {
		found, has := launcher.LookPath()
		if !has {
			return nil, fmt.Errorf("%w: no chromium-based browser found", ErrDependencyMissing)
		}
		path = found
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyMissing, err)
	}

	l := launcher.New().
		Context(ctx).
		Headless(true).
		Bin(path).
		NoSandbox(true)
	defer l.Cleanup()

	if d.Options.UserAgent != "" {
		l.Set("user-agent", d.Options.UserAgent)
	}
	if !d.Options.RespectCertificateErrors {
		l.Set("ignore-certificate-errors", "true")
	}
	if !d.Options.UseHTTP2 {
		l.Set("disable-http2", "true")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, launchError(ctx, err)
	}
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("error connecting to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("error opening page: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             d.Options.CaptureWidth,
		Height:            d.Options.CaptureHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("error setting viewport: %w", err)
	}

	if err := page.Navigate(d.Options.URL); err != nil {
		return nil, fmt.Errorf("error navigating to %s: %w", d.Options.URL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%s did not finish loading: %w", d.Options.URL, err)
	}
	if err := sleep(ctx, d.Options.DelayBeforeCapture); err != nil {
		return nil, err
	}

	obj, err := page.Eval(prepareScript, d.Options.ExcludeSelector)
	if err != nil {
		return nil, fmt.Errorf("error measuring %s: %w", d.Options.URL, err)
	}
	m, err := decodeMetrics(obj.Value)
	if err != nil {
		return nil, fmt.Errorf("error reading document metrics: %w", err)
	}

	width, height := m.extent()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("document %s has no visible area", d.Options.URL)
	}
	log.Debugf("Rasterizing %s at %dx%d (scale %.1f, %d element(s) excluded)", d.Options.URL, width, height, d.Options.scale(), m.Hidden)

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("error resizing viewport: %w", err)
	}

	raw, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:                proto.PageCaptureScreenshotFormatPng,
		CaptureBeyondViewport: true,
		Clip: &proto.PageViewport{
			X:      0,
			Y:      0,
			Width:  float64(width),
			Height: float64(height),
			Scale:  d.Options.scale(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error rasterizing %s: %w", d.Options.URL, err)
	}
	return raw, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// launchError reserves ErrDependencyMissing for a browser that cannot be
// executed. Everything else stays wrapped so cancellation is still visible.
func launchError(ctx context.Context, err error) error {
	var execErr *exec.Error
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("browser launch interrupted: %w", ctx.Err())
	case errors.As(err, &execErr), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrDependencyMissing, err)
	}
	return fmt.Errorf("error launching browser: %w", err)
}
