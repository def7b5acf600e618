package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// listingPage 生成一个与 G1 结构类似的列表页
func listingPage(n int) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"feed\">")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<div class="feed-post">
  <a class="feed-post-link" href="/economia/noticia-%d.ghtml">  Notícia %d   sobre lucro </a>
  <div class="feed-post-body-resumo">Resumo %d</div>
</div>`, i, i, i)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func htmlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func g1Source(name, rawURL string) Source {
	return Source{
		Name: name,
		URL:  rawURL,
		Selectors: Selectors{
			Article: ".feed-post",
			Title:   ".feed-post-link",
			Summary: ".feed-post-body-resumo",
		},
	}
}

func TestHTMLFetcherTakesFirstFiveArticles(t *testing.T) {
	srv := htmlServer(t, listingPage(7))

	f, err := NewFetcher(g1Source("G1 Economia", srv.URL+"/economia/"), time.Second)
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	items, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != MaxArticlesPerSource {
		t.Fatalf("got %d items, want %d", len(items), MaxArticlesPerSource)
	}

	first := items[0]
	if first.Title != "Notícia 1 sobre lucro" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.Summary != "Resumo 1" {
		t.Fatalf("summary = %q", first.Summary)
	}
	if first.Link != srv.URL+"/economia/noticia-1.ghtml" {
		t.Fatalf("link = %q", first.Link)
	}
	if first.Source != "G1 Economia" {
		t.Fatalf("source = %q", first.Source)
	}
	if items[4].Title != "Notícia 5 sobre lucro" {
		t.Fatalf("last title = %q, want article 5", items[4].Title)
	}
}

func TestHTMLFetcherSkipsArticlesWithoutTitle(t *testing.T) {
	page := `<html><body>
<div class="feed-post"><div class="feed-post-body-resumo">sem título</div></div>
<div class="feed-post"><a class="feed-post-link">Sem link</a></div>
<div class="feed-post"><a class="feed-post-link" href="https://example.com/a">Com link</a></div>
<div class="feed-post"><a class="feed-post-link" href="/b">B</a></div>
<div class="feed-post"><a class="feed-post-link" href="/c">C</a></div>
<div class="feed-post"><a class="feed-post-link" href="/d">D</a></div>
</body></html>`
	srv := htmlServer(t, page)

	f, _ := NewFetcher(g1Source("G1", srv.URL), time.Second)
	items, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	// 前 5 个节点中第一个没有标题，第 6 个不再检查
	if len(items) != 4 {
		t.Fatalf("got %d items, want 4: %+v", len(items), items)
	}
	if items[0].Title != "Sem link" || items[0].Link != "" || items[0].Summary != "" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Link != "https://example.com/a" {
		t.Fatalf("absolute link changed: %q", items[1].Link)
	}
	if items[3].Title != "C" {
		t.Fatalf("last item = %q, want C", items[3].Title)
	}
}

func TestHTMLFetcherFollowsRedirectToOtherHost(t *testing.T) {
	target := htmlServer(t, listingPage(3))
	// 列表页跳转到另一个主机名（127.0.0.1 -> localhost）
	targetURL := strings.Replace(target.URL, "127.0.0.1", "localhost", 1) + "/economia/"
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, targetURL, http.StatusMovedPermanently)
	}))
	defer origin.Close()

	f, _ := NewFetcher(g1Source("G1", origin.URL), time.Second)
	items, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 3 || items[0].Title != "Notícia 1 sobre lucro" {
		t.Fatalf("unexpected items after redirect: %+v", items)
	}
}

func TestExtractFromDocumentTakesFirstFive(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingPage(7)))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	base, _ := url.Parse("https://g1.globo.com/economia/")

	items := extractFromDocument(doc.Selection, g1Source("G1 Economia", base.String()), base)
	if len(items) != MaxArticlesPerSource {
		t.Fatalf("got %d items, want %d", len(items), MaxArticlesPerSource)
	}
	if items[4].Title != "Notícia 5 sobre lucro" {
		t.Fatalf("last title = %q, want article 5", items[4].Title)
	}
	if items[0].Link != "https://g1.globo.com/economia/noticia-1.ghtml" || items[0].Summary != "Resumo 1" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
}

func TestHTMLFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, _ := NewFetcher(g1Source("G1", srv.URL), time.Second)
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestCollectContinuesWhenOneSourceTimesOut(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer slow.Close()
	fast := htmlServer(t, listingPage(2))

	c, err := FromSources([]Source{
		g1Source("Lenta", slow.URL),
		g1Source("Rápida", fast.URL),
	}, 200*time.Millisecond, quietLogger())
	if err != nil {
		t.Fatalf("FromSources error: %v", err)
	}

	items, failures := c.Collect(context.Background())
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	for _, it := range items {
		if it.Source != "Rápida" {
			t.Fatalf("unexpected source %q", it.Source)
		}
	}
	if len(failures) != 1 || failures[0].Source != "Lenta" {
		t.Fatalf("failures = %+v, want one failure for Lenta", failures)
	}
	if !strings.Contains(failures[0].Error(), "Lenta") {
		t.Fatalf("error should mention source name: %v", failures[0])
	}
}

type stubFetcher struct {
	name  string
	items []NewsItem
	err   error
	panic bool
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	if s.panic {
		panic("bad selector")
	}
	return s.items, s.err
}

func TestCollectKeepsConfigurationOrder(t *testing.T) {
	errDown := errors.New("down")
	c := New([]Fetcher{
		&stubFetcher{name: "a", items: []NewsItem{{Title: "a1"}, {Title: "a2"}}},
		&stubFetcher{name: "b", err: errDown},
		&stubFetcher{name: "c", panic: true},
		&stubFetcher{name: "d", items: []NewsItem{{Title: "d1"}}},
		&stubFetcher{name: "e"},
	}, quietLogger())

	items, failures := c.Collect(context.Background())
	var titles []string
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	if strings.Join(titles, ",") != "a1,a2,d1" {
		t.Fatalf("titles = %v", titles)
	}
	if len(failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(failures))
	}
	if !errors.Is(failures[0], errDown) {
		t.Fatalf("first failure should wrap errDown: %v", failures[0])
	}
	if failures[1].Source != "c" {
		t.Fatalf("second failure source = %q, want c", failures[1].Source)
	}
	if got := strings.Join(c.Sources(), ","); got != "a,b,c,d,e" {
		t.Fatalf("Sources() = %s", got)
	}
}

func TestRSSFetcherTakesFirstFiveItems(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>G1</title>`)
	for i := 1; i <= 7; i++ {
		fmt.Fprintf(&b, `<item><title>Item %d</title><link>https://g1.globo.com/n/%d</link><description><![CDATA[<p>Texto <b>%d</b></p>]]></description></item>`, i, i, i)
	}
	b.WriteString(`</channel></rss>`)
	feed := b.String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, feed)
	}))
	defer srv.Close()

	f, err := NewFetcher(Source{Name: "G1 RSS", Kind: "rss", URL: srv.URL}, time.Second)
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	items, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("got %d items, want 5", len(items))
	}
	if items[0].Title != "Item 1" || items[0].Summary != "Texto 1" || items[0].Link != "https://g1.globo.com/n/1" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
}

func TestSourceValidate(t *testing.T) {
	cases := []struct {
		name string
		src  Source
		want error
	}{
		{"missing name", Source{URL: "https://a.com"}, ErrSourceMissingName},
		{"bad url", Source{Name: "x", URL: "ftp://a.com"}, ErrSourceMissingURL},
		{"relative url", Source{Name: "x", URL: "/economia"}, ErrSourceMissingURL},
		{"missing selectors", Source{Name: "x", URL: "https://a.com"}, ErrSourceMissingSelector},
		{"unknown kind", Source{Name: "x", Kind: "ftp", URL: "https://a.com"}, ErrUnknownSourceKind},
		{"rss without selectors", Source{Name: "x", Kind: "RSS", URL: "https://a.com/feed"}, nil},
		{"html ok", g1Source("x", "https://a.com"), nil},
	}
	for _, c := range cases {
		err := c.src.Validate()
		if c.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", c.name, err)
			}
			continue
		}
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: err = %v, want %v", c.name, err, c.want)
		}
	}
}

func TestNewFetcherKinds(t *testing.T) {
	html, _ := NewFetcher(g1Source("a", "https://a.com"), 0)
	if _, ok := html.(*HTMLFetcher); !ok {
		t.Fatalf("default kind should build HTMLFetcher, got %T", html)
	}
	if html.(*HTMLFetcher).Timeout != DefaultTimeout {
		t.Fatalf("zero timeout should fall back to DefaultTimeout")
	}

	src := g1Source("b", "https://b.com")
	src.Kind = "browser"
	browser, _ := NewFetcher(src, time.Second)
	if _, ok := browser.(*BrowserFetcher); !ok {
		t.Fatalf("browser kind should build BrowserFetcher, got %T", browser)
	}
}

func TestHTMLToText(t *testing.T) {
	if got := htmlToText("<p>Alta   do <b>PIB</b></p>"); got != "Alta do PIB" {
		t.Fatalf("htmlToText = %q", got)
	}
	if got := htmlToText("  texto simples "); got != "texto simples" {
		t.Fatalf("htmlToText plain = %q", got)
	}
}
