package collector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// MaxArticlesPerSource 每个数据源每轮最多处理的文章条目数
	MaxArticlesPerSource = 5
	// DefaultTimeout 单个数据源的请求超时
	DefaultTimeout = 10 * time.Second

	userAgent = "SentimentHubBot/1.0"
)

// 数据源类型
const (
	KindHTML    = "html"
	KindRSS     = "rss"
	KindBrowser = "browser"
)

var (
	ErrSourceMissingName     = errors.New("source name is required")
	ErrSourceMissingURL      = errors.New("source url must be an absolute http(s) url")
	ErrSourceMissingSelector = errors.New("source selectors.article and selectors.title are required")
	ErrUnknownSourceKind     = errors.New("source kind must be one of: html, rss, browser")
)

// NewsItem 采集后、分类前的原始条目
type NewsItem struct {
	Title   string
	Summary string
	Link    string
	Source  string
}

// Selectors 从列表页中定位文章、标题与摘要的 CSS 选择器
type Selectors struct {
	Article string `yaml:"article"`
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
}

// Source 一个配置好的数据源
type Source struct {
	Name      string    `yaml:"name"`
	Kind      string    `yaml:"kind"`
	URL       string    `yaml:"url"`
	Selectors Selectors `yaml:"selectors"`
}

// EffectiveKind 未配置 kind 时按 html 处理
func (s Source) EffectiveKind() string {
	k := strings.ToLower(strings.TrimSpace(s.Kind))
	if k == "" {
		return KindHTML
	}
	return k
}

// Validate 校验数据源配置，rss 类型不需要选择器
func (s Source) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrSourceMissingName
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: %w", s.Name, ErrSourceMissingURL)
	}
	switch s.EffectiveKind() {
	case KindHTML, KindBrowser:
		if strings.TrimSpace(s.Selectors.Article) == "" || strings.TrimSpace(s.Selectors.Title) == "" {
			return fmt.Errorf("%s: %w", s.Name, ErrSourceMissingSelector)
		}
	case KindRSS:
	default:
		return fmt.Errorf("%s: %w", s.Name, ErrUnknownSourceKind)
	}
	return nil
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]NewsItem, error)
}

// NewFetcher 根据数据源类型构建对应的 Fetcher
func NewFetcher(src Source, timeout time.Duration) (Fetcher, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	switch src.EffectiveKind() {
	case KindRSS:
		return &RSSFetcher{Source: src, Timeout: timeout}, nil
	case KindBrowser:
		return &BrowserFetcher{Source: src, Timeout: timeout}, nil
	default:
		return &HTMLFetcher{Source: src, Timeout: timeout}, nil
	}
}

// cleanText 去掉首尾空白并把连续空白压缩为一个空格
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveLink 将相对链接补全为绝对链接，无法解析时原样返回
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	u, err := base.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}
