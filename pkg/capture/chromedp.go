package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/root4loot/goutils/log"
)

var chromeNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

func lookChrome(bin string) (string, error) {
	if bin != "" {
		return exec.LookPath(bin)
	}
	for _, name := range chromeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", exec.ErrNotFound
}

// customFlags returns the allocator flags for the configured options.
func (d *Document) customFlags() []chromedp.ExecAllocatorOption {
	var customFlags []chromedp.ExecAllocatorOption

	customFlags = append(customFlags, chromedp.Flag("headless", true))

	if !d.Options.RespectCertificateErrors {
		customFlags = append(customFlags, chromedp.Flag("ignore-certificate-errors", true))
	}
	if !d.Options.UseHTTP2 {
		customFlags = append(customFlags, chromedp.Flag("disable-http2", true))
	}
	if d.Options.UserAgent != "" {
		customFlags = append(customFlags, chromedp.UserAgent(d.Options.UserAgent))
	}

	return customFlags
}

func (d *Document) captureChromedp(ctx context.Context) ([]byte, error) {
	path, err := lookChrome(d.Options.BrowserBin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyMissing, err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], d.customFlags()...)
	opts = append(opts, chromedp.ExecPath(path))

	allocator, cancelAllocator := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAllocator()

	cctx, cancelContext := chromedp.NewContext(allocator)
	defer cancelContext()

	var (
		m   metrics
		raw []byte
	)
	scale := d.Options.scale()

	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(d.Options.CaptureWidth), int64(d.Options.CaptureHeight)),
		chromedp.Navigate(d.Options.URL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return sleep(ctx, d.Options.DelayBeforeCapture)
		}),
		chromedp.Evaluate(prepareExpression(d.Options.ExcludeSelector), &m),
		chromedp.ActionFunc(func(ctx context.Context) error {
			width, height := m.extent()
			if width <= 0 || height <= 0 {
				return fmt.Errorf("document %s has no visible area", d.Options.URL)
			}
			log.Debugf("Rasterizing %s at %dx%d (scale %.1f, %d element(s) excluded)", d.Options.URL, width, height, scale, m.Hidden)

			err := emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false).Do(ctx)
			if err != nil {
				return err
			}

			raw, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithClip(&page.Viewport{
					X:      0,
					Y:      0,
					Width:  float64(width),
					Height: float64(height),
					Scale:  scale,
				}).
				Do(ctx)
			return err
		}),
	}

	if err := chromedp.Run(cctx, tasks); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrDependencyMissing, err)
		}
		return nil, fmt.Errorf("error rasterizing %s: %w", d.Options.URL, err)
	}
	return raw, nil
}
