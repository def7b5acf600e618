// Package sentiment 基于关键词计数给新闻打粗粒度的情感标签
package sentiment

import (
	"strings"
	"unicode"
)

// Sentiment 情感标签，只有 positive / neutral / negative 三种取值
type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// Labels 固定顺序的全部标签，统计与图表按此顺序输出
var Labels = []Sentiment{Positive, Neutral, Negative}

// Valid 判断是否为合法标签
func (s Sentiment) Valid() bool {
	switch s {
	case Positive, Neutral, Negative:
		return true
	}
	return false
}

func (s Sentiment) String() string {
	return string(s)
}

// Result 一次分类的完整结果，Matched* 记录命中的词，便于排查误判
type Result struct {
	Label           Sentiment `json:"label"`
	MatchedPositive []string  `json:"positive"`
	MatchedNegative []string  `json:"negative"`
	MatchedNeutral  []string  `json:"neutral"`
}

// PositiveCount 命中的正面词数量
func (r Result) PositiveCount() int { return len(r.MatchedPositive) }

// NegativeCount 命中的负面词数量
func (r Result) NegativeCount() int { return len(r.MatchedNegative) }

// Classifier 无状态，可并发使用
type Classifier struct {
	lex Lexicon
}

// NewClassifier 使用给定词表构建分类器，未设置的字段回落到默认值
func NewClassifier(lex Lexicon) *Classifier {
	lex = lex.withDefaults()
	lex.Positive = lowerAll(lex.Positive)
	lex.Negative = lowerAll(lex.Negative)
	lex.Neutral = lowerAll(lex.Neutral)
	return &Classifier{lex: lex}
}

var defaultClassifier = NewClassifier(DefaultLexicon())

// Classify 使用默认词表分类
func Classify(text string) Sentiment {
	return defaultClassifier.Classify(text)
}

// Lexicon 返回分类器实际使用的词表
func (c *Classifier) Lexicon() Lexicon {
	return c.lex
}

// Classify 只返回标签
func (c *Classifier) Classify(text string) Sentiment {
	return c.Analyze(text).Label
}

// Analyze 返回标签及命中的词。
// 命中按子串判断，每个词最多计一次；中性提示词只记录不参与判定。
func (c *Classifier) Analyze(text string) Result {
	normalized := normalize(text)

	res := Result{
		MatchedPositive: matchTerms(normalized, c.lex.Positive),
		MatchedNegative: matchTerms(normalized, c.lex.Negative),
		MatchedNeutral:  matchTerms(normalized, c.lex.Neutral),
	}
	res.Label = c.decide(res.PositiveCount(), res.NegativeCount())
	return res
}

func (c *Classifier) decide(pos, neg int) Sentiment {
	total := pos + neg
	if total == 0 {
		return Neutral
	}

	posRatio := float64(pos) / float64(total)
	negRatio := float64(neg) / float64(total)

	if posRatio > c.lex.RatioThreshold || (pos > neg && pos >= c.lex.MinTermCount) {
		return Positive
	}
	if negRatio > c.lex.RatioThreshold || (neg > pos && neg >= c.lex.MinTermCount) {
		return Negative
	}
	return Neutral
}

// normalize 去掉标点后转小写；字母、数字、组合符号、下划线与空白保留
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || unicode.IsSpace(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

func matchTerms(text string, terms []string) []string {
	var matched []string
	for _, t := range terms {
		if t != "" && strings.Contains(text, t) {
			matched = append(matched, t)
		}
	}
	return matched
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
