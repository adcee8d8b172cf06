package render

import (
	"context"
	"encoding/base64"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/tracing"
)

const (
	viewportWidth  = 1200
	viewportHeight = 1000
)

// Rasterizer turns an HTML document into a PNG image cropped to its
// visible content.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string) ([]byte, error)
}

type chromeRasterizer struct {
	log logger.Logger
}

func NewChromeRasterizer(log logger.Logger) Rasterizer {
	return &chromeRasterizer{log: log}
}

func (r *chromeRasterizer) Rasterize(ctx context.Context, html string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "chromeRasterizer.Rasterize")
	defer span.Finish()
	tracing.TagComponentService(span)

	shot, err := r.screenshot(ctx, html)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	cropped, err := CropToContent(shot)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	r.log.Debugf("rasterized html document, %d bytes png", len(cropped))
	return cropped, nil
}

func (r *chromeRasterizer) screenshot(ctx context.Context, html string) ([]byte, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(viewportWidth, viewportHeight),
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "capture screenshot")
	}
	return buf, nil
}
