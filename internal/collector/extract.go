package collector

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractItem 从单个文章节点中取出标题、链接与摘要；没有标题时返回 false
func extractItem(article *goquery.Selection, src Source, base *url.URL) (NewsItem, bool) {
	titleSel := article.Find(src.Selectors.Title).First()
	if titleSel.Length() == 0 {
		return NewsItem{}, false
	}
	title := cleanText(titleSel.Text())
	if title == "" {
		return NewsItem{}, false
	}

	// 标题节点本身通常就是 <a>，否则取其内部第一个链接
	href, ok := titleSel.Attr("href")
	if !ok {
		href, _ = titleSel.Find("a[href]").First().Attr("href")
	}

	summary := ""
	if s := strings.TrimSpace(src.Selectors.Summary); s != "" {
		summary = cleanText(article.Find(s).First().Text())
	}

	return NewsItem{
		Title:   title,
		Summary: summary,
		Link:    resolveLink(base, href),
		Source:  src.Name,
	}, true
}

// extractFromDocument 在整页文档中按选择器抽取，至多检查 MaxArticlesPerSource 个文章节点
func extractFromDocument(doc *goquery.Selection, src Source, base *url.URL) []NewsItem {
	results := make([]NewsItem, 0, MaxArticlesPerSource)
	seen := 0
	doc.Find(src.Selectors.Article).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		seen++
		if item, ok := extractItem(s, src, base); ok {
			results = append(results, item)
		}
		return seen < MaxArticlesPerSource
	})
	return results
}

// htmlToText 将 RSS 描述中可能携带的 HTML 转为纯文本
func htmlToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return cleanText(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return cleanText(s)
	}
	return cleanText(doc.Text())
}
