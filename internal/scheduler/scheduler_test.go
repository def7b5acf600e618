package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/SentimentHub/internal/collector"
	"github.com/LJTian/SentimentHub/internal/processor"
	"github.com/LJTian/SentimentHub/internal/storage"
	"github.com/sirupsen/logrus"
)

type fakeCollector struct {
	items    []collector.NewsItem
	failures []*collector.SourceError
	started  chan struct{}
	block    bool
	sawDone  chan struct{}
}

func (f *fakeCollector) Collect(ctx context.Context) ([]collector.NewsItem, []*collector.SourceError) {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block {
		<-ctx.Done()
		close(f.sawDone)
		return nil, nil
	}
	return f.items, f.failures
}

type fakeStore struct {
	mu    sync.Mutex
	saved []processor.ProcessedArticle
	err   error
}

func (f *fakeStore) SaveBatch(ctx context.Context, items []processor.ProcessedArticle) ([]storage.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Article, 0, len(items))
	for _, it := range items {
		f.saved = append(f.saved, it)
		out = append(out, storage.Article{ID: uint(len(f.saved)), Title: it.Title, Sentiment: it.Sentiment})
	}
	return out, nil
}

type fakePublisher struct {
	calls int
	last  []storage.Article
}

func (f *fakePublisher) Publish(ctx context.Context, articles []storage.Article) error {
	f.calls++
	f.last = articles
	return errors.New("broker unavailable")
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRunOnceSavesAndReports(t *testing.T) {
	c := &fakeCollector{
		items: []collector.NewsItem{
			{Title: "Bolsa tem crescimento e lucro", Source: "G1"},
			{Title: "  ", Source: "G1"},
			{Title: "Crise e recessão", Source: "G1"},
		},
		failures: []*collector.SourceError{{Source: "Valor", Err: errors.New("timeout")}},
	}
	store := &fakeStore{}
	pub := &fakePublisher{}

	s, err := New(time.Hour, c, processor.New(nil), store, WithPublisher(pub), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	report, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if report.Fetched != 3 || report.Saved != 2 {
		t.Fatalf("report = %+v, want fetched=3 saved=2", report)
	}
	if len(report.Failed) != 1 || report.Failed[0] != "Valor" {
		t.Fatalf("Failed = %v", report.Failed)
	}
	if report.Counts["positive"] != 1 || report.Counts["negative"] != 1 {
		t.Fatalf("Counts = %v", report.Counts)
	}
	// 推送失败只记录日志，不影响本轮结果
	if pub.calls != 1 || len(pub.last) != 2 {
		t.Fatalf("publisher calls=%d last=%d", pub.calls, len(pub.last))
	}

	m := s.Metrics().Snapshot()
	if m.TicksSucceeded != 1 || m.ArticlesSaved != 2 || m.SourceFailures["Valor"] != 1 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestRunOnceStoreError(t *testing.T) {
	c := &fakeCollector{items: []collector.NewsItem{{Title: "lucro", Source: "G1"}}}
	store := &fakeStore{err: errors.New("db down")}
	pub := &fakePublisher{}

	s, _ := New(time.Hour, c, processor.New(nil), store, WithPublisher(pub), WithLogger(quietLogger()))
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error from store")
	}
	if pub.calls != 0 {
		t.Fatalf("publisher should not be called when save fails")
	}
	if m := s.Metrics().Snapshot(); m.TicksFailed != 1 || m.LastError != "db down" {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestRunOnceEmptyFetch(t *testing.T) {
	s, _ := New(time.Hour, &fakeCollector{}, processor.New(nil), &fakeStore{}, WithLogger(quietLogger()))
	report, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("empty fetch should not be an error: %v", err)
	}
	if report.Saved != 0 || report.Fetched != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestStartRunsImmediatelyAndStopCancels(t *testing.T) {
	c := &fakeCollector{
		started: make(chan struct{}, 1),
		block:   true,
		sawDone: make(chan struct{}),
	}
	s, err := New(time.Hour, c, processor.New(nil), &fakeStore{}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	s.Start()
	select {
	case <-c.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first tick did not run immediately")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	select {
	case <-c.sawDone:
	default:
		t.Fatalf("in-flight tick should observe cancellation")
	}
}

type slowCollector struct {
	calls atomic.Int32
}

func (c *slowCollector) Collect(ctx context.Context) ([]collector.NewsItem, []*collector.SourceError) {
	c.calls.Add(1)
	<-ctx.Done()
	return nil, nil
}

func TestOverlappingTicksAreSkipped(t *testing.T) {
	c := &slowCollector{}
	s, err := New(time.Second, c, processor.New(nil), &fakeStore{}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	// 首轮一直阻塞，期间到期的触发应被跳过而不是排队
	s.Start()
	time.Sleep(3 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if got := c.calls.Load(); got != 1 {
		t.Fatalf("Collect called %d times, want 1", got)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(time.Hour, nil, processor.New(nil), &fakeStore{}); err == nil {
		t.Fatalf("expected error without collector")
	}
	s, err := New(0, &fakeCollector{}, processor.New(nil), &fakeStore{}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if s.interval != DefaultInterval {
		t.Fatalf("interval = %v, want %v", s.interval, DefaultInterval)
	}
}
