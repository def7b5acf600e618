package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/SentimentHub/internal/processor"
	"github.com/LJTian/SentimentHub/internal/sentiment"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// DefaultRecentLimit /api/news 默认返回条数
	DefaultRecentLimit = 20
	maxRecentLimit     = 1000

	// DefaultStatsWindow 情感统计的默认时间窗口
	DefaultStatsWindow = 24 * time.Hour

	sqlitePrefix = "sqlite://"
)

// Article 一条已分类的新闻，只插入不更新
type Article struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	Title       string              `gorm:"type:text;not null" json:"title"`
	Summary     string              `gorm:"type:text" json:"summary"`
	Link        string              `gorm:"type:text" json:"link"`
	SourceName  string              `gorm:"size:128;index" json:"source_name"`
	Sentiment   sentiment.Sentiment `gorm:"size:16;index" json:"sentiment"`
	Matches     datatypes.JSONMap   `json:"matches,omitempty"` // 命中的情感词，仅用于排查
	CollectedAt time.Time           `gorm:"index" json:"collected_at"`
}

// SentimentCounts 三个标签的计数，序列化后三个字段总是存在
type SentimentCounts struct {
	Positive int64 `json:"positive"`
	Neutral  int64 `json:"neutral"`
	Negative int64 `json:"negative"`
}

// Get 按标签取计数
func (c SentimentCounts) Get(s sentiment.Sentiment) int64 {
	switch s {
	case sentiment.Positive:
		return c.Positive
	case sentiment.Negative:
		return c.Negative
	case sentiment.Neutral:
		return c.Neutral
	}
	return 0
}

// Total 三类之和
func (c SentimentCounts) Total() int64 {
	return c.Positive + c.Neutral + c.Negative
}

func (c *SentimentCounts) add(s sentiment.Sentiment, n int64) {
	switch s {
	case sentiment.Positive:
		c.Positive += n
	case sentiment.Negative:
		c.Negative += n
	case sentiment.Neutral:
		c.Neutral += n
	}
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client

	log logrus.FieldLogger
	now func() time.Time
}

// Open 根据 DSN 选择驱动：sqlite://<path> 使用 SQLite，其余按 PostgreSQL 处理。
// redisAddr 为空时不启用缓存。
func Open(dsn, redisAddr string, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, sqlitePrefix) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         redisAddr,
			DialTimeout:  time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis ping failed, cache will be best effort")
		}
	}

	return New(db, rdb, log), nil
}

// New 基于已有连接构建 Store，rdb 可为 nil
func New(db *gorm.DB, rdb *redis.Client, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{DB: db, Redis: rdb, log: log, now: time.Now}
}

// Init 幂等地确保表结构存在
func (s *Store) Init() error {
	if err := s.DB.AutoMigrate(&Article{}); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

// Ping 检查数据库连通性
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库与 Redis 连接
func (s *Store) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	} else {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SaveBatch 追加一批文章，每条获得新的自增 ID；返回写入后的记录。
// 字段原样保存；collected_at 截断到微秒，与 PostgreSQL timestamptz 精度一致
func (s *Store) SaveBatch(ctx context.Context, items []processor.ProcessedArticle) ([]Article, error) {
	if len(items) == 0 {
		return nil, nil
	}

	rows := make([]Article, 0, len(items))
	for _, it := range items {
		title := it.Title
		if strings.TrimSpace(title) == "" {
			continue
		}
		if !it.Sentiment.Valid() {
			return nil, fmt.Errorf("storage: invalid sentiment %q for %q", it.Sentiment, title)
		}
		rows = append(rows, Article{
			Title:       title,
			Summary:     it.Summary,
			Link:        it.Link,
			SourceName:  it.Source,
			Sentiment:   it.Sentiment,
			Matches:     matchesJSON(it.Matches),
			CollectedAt: it.CollectedAt.UTC().Truncate(time.Microsecond),
		})
	}
	if len(rows) == 0 {
		return nil, nil
	}

	if err := s.DB.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("storage: insert articles: %w", err)
	}

	s.bumpCacheGeneration(ctx)
	return rows, nil
}

// Recent 返回最近采集的 limit 条，按 collected_at 倒序，同一时刻按 ID 倒序
func (s *Store) Recent(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	key, cacheable := s.cacheKey(ctx, "recent:%d", limit)
	if cacheable {
		var cached []Article
		if s.cacheGet(ctx, key, &cached) {
			return cached, nil
		}
	}

	list := make([]Article, 0, limit)
	err := s.DB.WithContext(ctx).
		Order("collected_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("storage: list recent: %w", err)
	}

	if cacheable {
		s.cacheSet(ctx, key, list)
	}
	return list, nil
}

// SentimentCounts 统计 window 时间窗口内各情感标签的数量，无数据时全部为 0
func (s *Store) SentimentCounts(ctx context.Context, window time.Duration) (SentimentCounts, error) {
	if window <= 0 {
		window = DefaultStatsWindow
	}

	key, cacheable := s.cacheKey(ctx, "stats:%d", int64(window/time.Second))
	if cacheable {
		var cached SentimentCounts
		if s.cacheGet(ctx, key, &cached) {
			return cached, nil
		}
	}

	since := s.now().UTC().Add(-window)
	var rows []struct {
		Sentiment sentiment.Sentiment
		Total     int64
	}
	err := s.DB.WithContext(ctx).
		Model(&Article{}).
		Select("sentiment, COUNT(*) AS total").
		Where("collected_at >= ?", since).
		Group("sentiment").
		Scan(&rows).Error
	if err != nil {
		return SentimentCounts{}, fmt.Errorf("storage: count sentiments: %w", err)
	}

	var counts SentimentCounts
	for _, r := range rows {
		counts.add(r.Sentiment, r.Total)
	}

	if cacheable {
		s.cacheSet(ctx, key, counts)
	}
	return counts, nil
}

// HourlyBucket 某个整点小时内各情感的数量
type HourlyBucket struct {
	Hour time.Time `json:"hour"`
	SentimentCounts
}

// HourlyCounts 按小时（UTC 整点）汇总 window 时间窗口内的情感数量，按时间升序；没有数据的小时不输出
func (s *Store) HourlyCounts(ctx context.Context, window time.Duration) ([]HourlyBucket, error) {
	if window <= 0 {
		window = DefaultStatsWindow
	}
	since := s.now().UTC().Add(-window)

	var rows []struct {
		CollectedAt time.Time
		Sentiment   sentiment.Sentiment
	}
	// 分桶在 Go 中完成，避免依赖 PostgreSQL / SQLite 各自的日期函数
	err := s.DB.WithContext(ctx).
		Model(&Article{}).
		Select("collected_at, sentiment").
		Where("collected_at >= ?", since).
		Order("collected_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("storage: hourly counts: %w", err)
	}

	buckets := make([]HourlyBucket, 0)
	for _, r := range rows {
		hour := r.CollectedAt.UTC().Truncate(time.Hour)
		if n := len(buckets); n == 0 || !buckets[n-1].Hour.Equal(hour) {
			buckets = append(buckets, HourlyBucket{Hour: hour})
		}
		buckets[len(buckets)-1].add(r.Sentiment, 1)
	}
	return buckets, nil
}

func matchesJSON(r sentiment.Result) datatypes.JSONMap {
	if len(r.MatchedPositive)+len(r.MatchedNegative)+len(r.MatchedNeutral) == 0 {
		return nil
	}
	m := datatypes.JSONMap{}
	if len(r.MatchedPositive) > 0 {
		m["positive"] = r.MatchedPositive
	}
	if len(r.MatchedNegative) > 0 {
		m["negative"] = r.MatchedNegative
	}
	if len(r.MatchedNeutral) > 0 {
		m["neutral"] = r.MatchedNeutral
	}
	return m
}
