package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SourceError 单个数据源的失败，不影响其它数据源
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("collector: %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Collector 并发执行全部 Fetcher，按配置顺序合并结果
type Collector struct {
	fetchers []Fetcher
	log      logrus.FieldLogger
}

// New 直接使用给定的 Fetcher 列表
func New(fetchers []Fetcher, log logrus.FieldLogger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{fetchers: fetchers, log: log}
}

// FromSources 为每个数据源构建 Fetcher，任一配置不合法即返回错误
func FromSources(sources []Source, timeout time.Duration, log logrus.FieldLogger) (*Collector, error) {
	fetchers := make([]Fetcher, 0, len(sources))
	for _, src := range sources {
		f, err := NewFetcher(src, timeout)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, f)
	}
	return New(fetchers, log), nil
}

// Sources 返回已注册的数据源名称
func (c *Collector) Sources() []string {
	names := make([]string, 0, len(c.fetchers))
	for _, f := range c.fetchers {
		names = append(names, f.Name())
	}
	return names
}

// Collect 抓取所有数据源。失败的数据源记录日志并通过 failures 返回，其余结果照常返回
func (c *Collector) Collect(ctx context.Context) (items []NewsItem, failures []*SourceError) {
	perSource := make([][]NewsItem, len(c.fetchers))
	errs := make([]error, len(c.fetchers))

	var wg sync.WaitGroup
	for i, f := range c.fetchers {
		wg.Add(1)
		go func(i int, fetcher Fetcher) {
			defer wg.Done()
			defer func() {
				// 解析器 panic 视为该数据源失败
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()

			name := fetcher.Name()
			c.log.WithField("source", name).Debug("fetching source")
			got, err := fetcher.Fetch(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			perSource[i] = got
		}(i, f)
	}
	wg.Wait()

	for i, f := range c.fetchers {
		name := f.Name()
		if errs[i] != nil {
			c.log.WithFields(logrus.Fields{
				"source": name,
				"error":  errs[i].Error(),
			}).Warn("fetch source failed")
			failures = append(failures, &SourceError{Source: name, Err: errs[i]})
			continue
		}
		if len(perSource[i]) == 0 {
			c.log.WithField("source", name).Info("source returned 0 items")
			continue
		}
		c.log.WithFields(logrus.Fields{
			"source": name,
			"items":  len(perSource[i]),
		}).Debug("source fetched")
		items = append(items, perSource[i]...)
	}
	return items, failures
}
