package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 in inches.
const (
	paperWidth  = 8.27
	paperHeight = 11.69
)

// PDFRenderer prints HTML pages through a headless Chrome instance.
// The browser is started lazily on the first render and shared by all
// renders; each render gets its own tab.
type PDFRenderer struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	timeout     time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// NewPDFRenderer prepares a renderer. chromePath may be empty to let chromedp
// find a browser on PATH.
func NewPDFRenderer(chromePath string, timeout time.Duration) *PDFRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("font-render-hinting", "none"),
	)
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &PDFRenderer{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		timeout:     timeout,
	}
}

// Render builds the page for heading and md and prints it to PDF bytes.
func (r *PDFRenderer) Render(ctx context.Context, heading, md string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	html, err := BuildHTML(heading, md)
	if err != nil {
		return nil, err
	}

	browserCtx, err := r.browser()
	if err != nil {
		return nil, err
	}
	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, r.timeout)
		defer cancel()
	}

	// Stop the tab when the caller gives up.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	start := time.Now()
	var pdf []byte
	err = chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("print pdf: %w", errors.Join(ctxErr, err))
		}
		return nil, fmt.Errorf("print pdf: %w", err)
	}

	slog.Debug("Rendered PDF", "bytes", len(pdf), "duration", time.Since(start))
	return pdf, nil
}

// browser returns the shared browser context, starting Chrome when it is not
// running.
func (r *PDFRenderer) browser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserCtx != nil && r.browserCtx.Err() == nil {
		return r.browserCtx, nil
	}
	if err := r.allocCtx.Err(); err != nil {
		return nil, fmt.Errorf("renderer closed: %w", err)
	}
	ctx, cancel := chromedp.NewContext(r.allocCtx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	slog.Info("Headless browser started")
	r.browserCtx, r.cancelBrowser = ctx, cancel
	return ctx, nil
}

// Close shuts the browser down.
func (r *PDFRenderer) Close() {
	r.mu.Lock()
	if r.cancelBrowser != nil {
		r.cancelBrowser()
	}
	r.mu.Unlock()
	r.cancelAlloc()
}
