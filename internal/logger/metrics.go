package logger

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Metrics 进程内的采集统计，只保存在内存中，重启后清零
type Metrics struct {
	mu sync.RWMutex

	ticksStarted   int64
	ticksSucceeded int64
	ticksFailed    int64
	articlesSaved  int64
	sourceFailures map[string]int64
	bySentiment    map[string]int64
	tickTimeTotal  time.Duration
	lastTickAt     time.Time
	lastError      string
	startTime      time.Time
}

// MetricsSnapshot Metrics 的只读快照，用于接口输出
type MetricsSnapshot struct {
	Uptime           string           `json:"uptime"`
	TicksStarted     int64            `json:"ticks_started"`
	TicksSucceeded   int64            `json:"ticks_succeeded"`
	TicksFailed      int64            `json:"ticks_failed"`
	ArticlesSaved    int64            `json:"articles_saved"`
	SavedBySentiment map[string]int64 `json:"saved_by_sentiment"`
	SourceFailures   map[string]int64 `json:"source_failures"`
	AvgTickTime      string           `json:"avg_tick_time"`
	LastTickAt       *time.Time       `json:"last_tick_at,omitempty"`
	LastError        string           `json:"last_error,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		sourceFailures: make(map[string]int64),
		bySentiment:    make(map[string]int64),
		startTime:      time.Now(),
	}
}

// RecordTickStart 一轮采集开始
func (m *Metrics) RecordTickStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticksStarted++
}

// RecordTickSuccess 一轮采集成功结束，saved 为按情感分类的入库条数
func (m *Metrics) RecordTickSuccess(d time.Duration, saved map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticksSucceeded++
	m.tickTimeTotal += d
	m.lastTickAt = time.Now()
	m.lastError = ""
	for label, n := range saved {
		m.bySentiment[label] += int64(n)
		m.articlesSaved += int64(n)
	}
}

// RecordTickFailure 一轮采集因存储等错误中断
func (m *Metrics) RecordTickFailure(d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticksFailed++
	m.tickTimeTotal += d
	m.lastTickAt = time.Now()
	if err != nil {
		m.lastError = err.Error()
	}
}

// RecordSourceFailure 某个数据源抓取失败
func (m *Metrics) RecordSourceFailure(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sourceFailures[source]++
}

// Snapshot 返回当前指标的拷贝
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avg time.Duration
	if done := m.ticksSucceeded + m.ticksFailed; done > 0 {
		avg = m.tickTimeTotal / time.Duration(done)
	}

	failures := make(map[string]int64, len(m.sourceFailures))
	for k, v := range m.sourceFailures {
		failures[k] = v
	}
	bySentiment := make(map[string]int64, len(m.bySentiment))
	for k, v := range m.bySentiment {
		bySentiment[k] = v
	}

	snap := MetricsSnapshot{
		Uptime:           time.Since(m.startTime).Truncate(time.Second).String(),
		TicksStarted:     m.ticksStarted,
		TicksSucceeded:   m.ticksSucceeded,
		TicksFailed:      m.ticksFailed,
		ArticlesSaved:    m.articlesSaved,
		SavedBySentiment: bySentiment,
		SourceFailures:   failures,
		AvgTickTime:      avg.String(),
		LastError:        m.lastError,
	}
	if !m.lastTickAt.IsZero() {
		t := m.lastTickAt
		snap.LastTickAt = &t
	}
	return snap
}

// Log 以一条结构化日志输出当前指标
func (m *Metrics) Log(l logrus.FieldLogger) {
	s := m.Snapshot()
	l.WithFields(logrus.Fields{
		"uptime":          s.Uptime,
		"ticks_started":   s.TicksStarted,
		"ticks_succeeded": s.TicksSucceeded,
		"ticks_failed":    s.TicksFailed,
		"articles_saved":  s.ArticlesSaved,
		"avg_tick_time":   s.AvgTickTime,
		"source_failures": s.SourceFailures,
	}).Info("metrics snapshot")
}
