package collector

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

// HTMLFetcher 用 colly 抓取静态列表页，并按数据源的选择器解析
type HTMLFetcher struct {
	Source  Source
	Timeout time.Duration
}

func (h *HTMLFetcher) Name() string {
	return h.Source.Name
}

func (h *HTMLFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	if _, err := url.Parse(h.Source.URL); err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	// 只访问这一个列表页，不跟随页面内链接；重定向到其他主机（www.、CDN）照常跟随
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
	)
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.SetRequestTimeout(timeout)

	// colly 不接收 context，这里在发请求前检查一次，避免关停时继续发起抓取。
	// 已发出的请求不会被取消，最长等到 timeout 结束
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	results := make([]NewsItem, 0, MaxArticlesPerSource)
	seen := 0

	// 与原页面顺序一致，只看前 MaxArticlesPerSource 个文章节点（无标题的节点也计入）
	c.OnHTML(h.Source.Selectors.Article, func(e *colly.HTMLElement) {
		if seen >= MaxArticlesPerSource {
			return
		}
		seen++
		if item, ok := extractItem(e.DOM, h.Source, e.Request.URL); ok {
			results = append(results, item)
		}
	})

	if err := c.Visit(h.Source.URL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", h.Source.URL, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
