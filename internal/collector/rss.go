package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFetcher 读取 RSS/Atom 订阅源，选择器配置在该类型下不生效
type RSSFetcher struct {
	Source  Source
	Timeout time.Duration
}

func (r *RSSFetcher) Name() string {
	return r.Source.Name
}

func (r *RSSFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: timeout}

	feed, err := fp.ParseURLWithContext(r.Source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", r.Source.URL, err)
	}

	base, _ := url.Parse(r.Source.URL)
	results := make([]NewsItem, 0, MaxArticlesPerSource)
	for i, it := range feed.Items {
		if i >= MaxArticlesPerSource {
			break
		}
		if it == nil {
			continue
		}
		title := cleanText(it.Title)
		if title == "" {
			continue
		}
		results = append(results, NewsItem{
			Title:   title,
			Summary: htmlToText(it.Description),
			Link:    resolveLink(base, it.Link),
			Source:  r.Source.Name,
		})
	}
	return results, nil
}
