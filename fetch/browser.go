package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"bid-analytics/models"
	"bid-analytics/utils"
)

// BrowserPrefix marks sources that must be rendered by a headless browser
// before their JSON is readable, e.g. browser+https://host/bids.
const BrowserPrefix = "browser+"

// BrowserFetcher loads a page in headless Chrome and returns the text of
// its body. It serves dashboards that assemble the bid payload with
// client-side scripts.
type BrowserFetcher struct {
	chromeBin string
	settle    time.Duration
	timeout   time.Duration
	retry     *utils.RetryConfig
	logger    *utils.Logger
}

// NewBrowserFetcher creates a BrowserFetcher. An empty chromeBin is looked
// up on the system.
func NewBrowserFetcher(chromeBin string, timeout time.Duration, maxAttempts int, logger *utils.Logger) *BrowserFetcher {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	return &BrowserFetcher{
		chromeBin: chromeBin,
		settle:    2 * time.Second,
		timeout:   timeout,
		retry: &utils.RetryConfig{
			MaxAttempts: maxAttempts,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Fetch implements Fetcher.
func (b *BrowserFetcher) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	target := strings.TrimPrefix(sourceID, BrowserPrefix)
	b.logger.Info("[browser] Rendering %s with %s", target, b.binaryName())

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(b.chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	var text string
	err := b.retry.Do(ctx, "render "+target, func() error {
		tabCtx, cancelTab := chromedp.NewContext(browserCtx)
		defer cancelTab()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
		defer cancelTimeout()

		err := chromedp.Run(tabCtx,
			chromedp.Navigate(target),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(b.settle),
			chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text),
		)
		if err != nil {
			return fmt.Errorf("chromedp render: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return errors.New("page body is empty")
		}
		return nil
	})
	if err != nil {
		return nil, &models.RetrievalError{SourceID: sourceID, Err: err}
	}
	return []byte(text), nil
}

func (b *BrowserFetcher) binaryName() string {
	if b.chromeBin == "" {
		return "default browser"
	}
	return b.chromeBin
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
