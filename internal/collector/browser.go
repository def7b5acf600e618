package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// 无头浏览器启动本身较慢，超时不低于该值
const browserMinTimeout = 30 * time.Second

// BrowserFetcher 用 headless Chrome 渲染需要执行 JS 的列表页，再按选择器解析
type BrowserFetcher struct {
	Source  Source
	Timeout time.Duration
}

func (b *BrowserFetcher) Name() string {
	return b.Source.Name
}

func (b *BrowserFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	base, err := url.Parse(b.Source.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	timeout := b.Timeout
	if timeout < browserMinTimeout {
		timeout = browserMinTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(userAgent))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(b.Source.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", b.Source.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}
	return extractFromDocument(doc.Selection, b.Source, base), nil
}
