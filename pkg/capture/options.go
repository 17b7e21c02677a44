package capture

import "time"

// Rasterizer engines.
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

// MinScale is the lowest upscale factor a document is rasterized at.
const MinScale = 2.0

// DocumentOptions configures the document rasterizer.
type DocumentOptions struct {
	URL                      string        // Document to rasterize
	Engine                   string        // rod or chromedp
	BrowserBin               string        // Browser binary, looked up when empty
	Scale                    float64       // Upscale factor, at least MinScale
	ExcludeSelector          string        // Elements hidden from the raster
	CaptureWidth             int           // Initial viewport width
	CaptureHeight            int           // Initial viewport height
	Timeout                  time.Duration // Timeout for one capture
	DelayBeforeCapture       time.Duration // Settle time after load
	UserAgent                string        // User agent
	RespectCertificateErrors bool          // Respect certificate errors
	UseHTTP2                 bool          // Use HTTP2
}

// NewDocumentOptions returns DocumentOptions initialized with default values.
func NewDocumentOptions() DocumentOptions {
	return DocumentOptions{
		Engine:             EngineRod,
		Scale:              MinScale,
		ExcludeSelector:    "[data-capture-widget]",
		CaptureWidth:       1366,
		CaptureHeight:      768,
		Timeout:            30 * time.Second,
		DelayBeforeCapture: 500 * time.Millisecond,
		UserAgent:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	}
}

func (o DocumentOptions) scale() float64 {
	if o.Scale < MinScale {
		return MinScale
	}
	return o.Scale
}

// ScreenOptions configures the display source.
type ScreenOptions struct {
	Display   int // Display index, -1 for all active displays
	FrameRate int // Frames per second produced while the stream is live
}

// NewScreenOptions returns ScreenOptions initialized with default values.
func NewScreenOptions() ScreenOptions {
	return ScreenOptions{
		Display:   0,
		FrameRate: 5,
	}
}
