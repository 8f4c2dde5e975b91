// Package capture renders the countdown display page to a PNG through
// headless Chromium.
package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// Default capture parameters. The viewport matches the 4.2" panel so the
// /display page lays out 1:1 with the hardware.
const (
	DefaultWidth      = 400
	DefaultHeight     = 300
	DefaultTimeoutSec = 30
)

// Options defines parameters for a Chromium-based screenshot capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/display".
	URL string

	// OutputPath is where the PNG screenshot is written, e.g.
	// "/var/lib/epdday/preview.png". Empty skips the file write.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. Zero selects
	// the panel defaults.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

// DisplayPNG navigates a headless Chromium to opts.URL, waits for the page
// root to signal readiness via data-ready="true", and returns the PNG bytes
// (also written to opts.OutputPath when set). Plane packing is the caller's
// job.
func DisplayPNG(parentCtx context.Context, opts Options) ([]byte, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("capture: URL is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeoutSec * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		// The /display template sets data-ready once it has rendered.
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
			return nil, fmt.Errorf("capture: failed to write PNG: %w", err)
		}
	}

	return png, nil
}
