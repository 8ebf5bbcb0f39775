package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/latvis980/adu/internal/ports"
)

// settleDelay gives client-rendered listing pages time to paint before the
// screenshot is taken.
const settleDelay = 2 * time.Second

// Screenshotter renders a listing page in headless Chrome and captures the
// viewport for vision analysis. Each capture uses a fresh browser context so
// one wedged page cannot poison the next source.
type Screenshotter struct {
	opts []chromedp.ExecAllocatorOption
}

var _ ports.Screenshotter = (*Screenshotter)(nil)

// NewScreenshotter configures a headless allocator.
func NewScreenshotter(userAgent string) *Screenshotter {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.WindowSize(1280, 1024),
		chromedp.UserAgent(userAgent),
	)
	return &Screenshotter{opts: opts}
}

// Capture navigates to the page and returns a PNG of the viewport.
func (s *Screenshotter) Capture(ctx context.Context, pageURL string) ([]byte, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, s.opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settleDelay),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", pageURL, err)
	}

	return buf, nil
}
