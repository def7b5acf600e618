package processor

import (
	"strings"
	"time"

	"github.com/LJTian/SentimentHub/internal/collector"
	"github.com/LJTian/SentimentHub/internal/sentiment"
)

// ProcessedArticle 是写入存储层前的统一结构
type ProcessedArticle struct {
	Title       string
	Summary     string
	Link        string
	Source      string
	Sentiment   sentiment.Sentiment
	Matches     sentiment.Result
	CollectedAt time.Time
}

// Processor 做基础清洗并调用分类器打标签
type Processor struct {
	classifier *sentiment.Classifier
	now        func() time.Time
}

// New 使用给定分类器；传 nil 时使用默认词表
func New(c *sentiment.Classifier) *Processor {
	if c == nil {
		c = sentiment.NewClassifier(sentiment.DefaultLexicon())
	}
	return &Processor{classifier: c, now: time.Now}
}

// Process 丢弃无标题条目，其余按 标题+摘要 分类，collected_at 取处理时刻（UTC，精确到微秒）
func (p *Processor) Process(items []collector.NewsItem) []ProcessedArticle {
	out := make([]ProcessedArticle, 0, len(items))
	now := p.now().UTC().Truncate(time.Microsecond)

	for _, it := range items {
		title := toValidUTF8(strings.TrimSpace(it.Title))
		if title == "" {
			continue
		}
		summary := toValidUTF8(strings.TrimSpace(it.Summary))

		res := p.classifier.Analyze(title + " " + summary)
		out = append(out, ProcessedArticle{
			Title:       title,
			Summary:     summary,
			Link:        strings.TrimSpace(it.Link),
			Source:      it.Source,
			Sentiment:   res.Label,
			Matches:     res,
			CollectedAt: now,
		})
	}

	return out
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}
