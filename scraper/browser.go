package scraper

import (
	"context"

	"github.com/aluiziolira/go-car-prices/config"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders candidate pages in headless Chrome, for listings
// that are assembled client-side.
type BrowserFetcher struct {
	cfg  *config.Config
	opts []chromedp.ExecAllocatorOption
}

// NewBrowserFetcher configures the headless browser allocator.
func NewBrowserFetcher(cfg *config.Config) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	return &BrowserFetcher{cfg: cfg, opts: opts}
}

// Fetch navigates to rawURL, waits for scripts to settle and returns the
// rendered document.
func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, f.opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	headers := network.Headers{}
	if f.cfg.AcceptLanguage != "" {
		headers["Accept-Language"] = f.cfg.AcceptLanguage
	}

	var html string
	err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.Navigate(rawURL),
		chromedp.Sleep(f.cfg.BrowserWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, classifyError(err, 0)
	}
	return []byte(html), nil
}
