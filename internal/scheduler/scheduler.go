package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LJTian/SentimentHub/internal/collector"
	"github.com/LJTian/SentimentHub/internal/logger"
	"github.com/LJTian/SentimentHub/internal/processor"
	"github.com/LJTian/SentimentHub/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultInterval 两轮采集之间的间隔
const DefaultInterval = time.Hour

// Collector 抓取全部数据源
type Collector interface {
	Collect(ctx context.Context) ([]collector.NewsItem, []*collector.SourceError)
}

// Store 保存一批已分类文章
type Store interface {
	SaveBatch(ctx context.Context, items []processor.ProcessedArticle) ([]storage.Article, error)
}

// Publisher 将新入库的文章推送给下游，可选
type Publisher interface {
	Publish(ctx context.Context, articles []storage.Article) error
}

// RunReport 一轮采集的结果
type RunReport struct {
	Fetched  int
	Saved    int
	Failed   []string
	Counts   map[string]int
	Duration time.Duration
}

type Scheduler struct {
	cron      *cron.Cron
	job       cron.Job
	interval  time.Duration
	collector Collector
	processor *processor.Processor
	store     Store
	publisher Publisher
	metrics   *logger.Metrics
	log       logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option 可选配置
type Option func(*Scheduler)

// WithPublisher 每轮入库后推送新文章
func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

// WithMetrics 记录每轮采集的统计
func WithMetrics(m *logger.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger 指定日志实例
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.log = l }
}

func New(interval time.Duration, c Collector, p *processor.Processor, store Store, opts ...Option) (*Scheduler, error) {
	if c == nil || p == nil || store == nil {
		return nil, errors.New("scheduler: collector, processor and store are required")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	s := &Scheduler{
		interval:  interval,
		collector: c,
		processor: p,
		store:     store,
		metrics:   logger.NewMetrics(),
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	// 上一轮未结束时直接跳过本次触发，不排队补跑
	cronLog := cron.PrintfLogger(s.log.WithField("component", "cron"))
	s.cron = cron.New(cron.WithLogger(cronLog))
	s.job = cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(s.tick))
	s.cron.Schedule(cron.Every(interval), s.job)

	return s, nil
}

// Metrics 返回采集统计
func (s *Scheduler) Metrics() *logger.Metrics {
	return s.metrics
}

// Start 立即执行首轮采集，之后每个 interval 执行一次
func (s *Scheduler) Start() {
	s.log.WithField("interval", s.interval.String()).Info("scheduler started")
	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
}

// Stop 停止定时器并取消正在进行的采集，等待其结束或 ctx 到期
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 同步执行一轮采集，方便手动触发
func (s *Scheduler) RunOnce(ctx context.Context) (RunReport, error) {
	return s.run(ctx)
}

func (s *Scheduler) tick() {
	if s.ctx.Err() != nil {
		return
	}
	_, _ = s.run(s.ctx)
}

func (s *Scheduler) run(ctx context.Context) (RunReport, error) {
	start := time.Now()
	s.metrics.RecordTickStart()
	s.log.Info("start collect job...")

	items, failures := s.collector.Collect(ctx)
	report := RunReport{Fetched: len(items), Counts: map[string]int{}}
	for _, f := range failures {
		report.Failed = append(report.Failed, f.Source)
		s.metrics.RecordSourceFailure(f.Source)
	}

	processed := s.processor.Process(items)
	saved, err := s.store.SaveBatch(ctx, processed)
	report.Duration = time.Since(start)
	if err != nil {
		s.metrics.RecordTickFailure(report.Duration, err)
		s.log.WithError(err).Error("save batch failed, tick aborted")
		return report, err
	}

	report.Saved = len(saved)
	for _, a := range saved {
		report.Counts[string(a.Sentiment)]++
	}

	if s.publisher != nil && len(saved) > 0 {
		if err := s.publisher.Publish(ctx, saved); err != nil {
			s.log.WithError(err).Warn("publish articles failed")
		}
	}

	report.Duration = time.Since(start)
	s.metrics.RecordTickSuccess(report.Duration, report.Counts)
	s.log.WithFields(logrus.Fields{
		"fetched":        report.Fetched,
		"saved":          report.Saved,
		"failed_sources": len(report.Failed),
		"duration":       report.Duration.String(),
	}).Info("collect job done (all sources)")

	return report, nil
}
