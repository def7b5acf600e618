package api

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/LJTian/SentimentHub/internal/logger"
	"github.com/LJTian/SentimentHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	// 首页展示的最近新闻条数
	dashboardLimit = 10
	maxNewsLimit   = 100
	statsWindow    = 24 * time.Hour
	healthTimeout  = 2 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

// Store 展示层只读依赖的存储接口
type Store interface {
	Recent(ctx context.Context, limit int) ([]storage.Article, error)
	SentimentCounts(ctx context.Context, window time.Duration) (storage.SentimentCounts, error)
	HourlyCounts(ctx context.Context, window time.Duration) ([]storage.HourlyBucket, error)
	Ping(ctx context.Context) error
}

type Server struct {
	store   Store
	metrics *logger.Metrics
	log     logrus.FieldLogger
	tmpl    *template.Template
	now     func() time.Time
}

// NewServer metrics 可为 nil
func NewServer(store Store, metrics *logger.Metrics, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if metrics == nil {
		metrics = logger.NewMetrics()
	}
	return &Server{
		store:   store,
		metrics: metrics,
		log:     log,
		tmpl:    template.Must(template.ParseFS(templateFS, "templates/*.html")),
		now:     time.Now,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(s.tmpl)

	r.GET("/health", s.health)
	r.GET("/", s.dashboard)

	api := r.Group("/api")
	{
		api.GET("/news", s.listNews)
		api.GET("/stats", s.stats)
		api.GET("/timeline", s.timeline)
		api.GET("/metrics", s.metricsSnapshot)
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("health check: database unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type dashboardData struct {
	Articles   []storage.Article
	Stats      storage.SentimentCounts
	Timeline   []storage.HourlyBucket
	LastUpdate string
}

func (s *Server) dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	articles, err := s.store.Recent(ctx, dashboardLimit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	stats, err := s.store.SentimentCounts(ctx, statsWindow)
	if err != nil {
		s.internalError(c, err)
		return
	}
	timeline, err := s.store.HourlyCounts(ctx, statsWindow)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if timeline == nil {
		timeline = []storage.HourlyBucket{}
	}

	c.HTML(http.StatusOK, "dashboard.html", dashboardData{
		Articles:   articles,
		Stats:      stats,
		Timeline:   timeline,
		LastUpdate: s.now().Format("2006-01-02 15:04:05"),
	})
}

func (s *Server) listNews(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(storage.DefaultRecentLimit)))
	if err != nil || limit <= 0 {
		limit = storage.DefaultRecentLimit
	}
	if limit > maxNewsLimit {
		limit = maxNewsLimit
	}

	items, err := s.store.Recent(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if items == nil {
		items = []storage.Article{}
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) stats(c *gin.Context) {
	counts, err := s.store.SentimentCounts(c.Request.Context(), statsWindow)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) timeline(c *gin.Context) {
	buckets, err := s.store.HourlyCounts(c.Request.Context(), statsWindow)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if buckets == nil {
		buckets = []storage.HourlyBucket{}
	}
	c.JSON(http.StatusOK, buckets)
}

func (s *Server) metricsSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.log.WithFields(logrus.Fields{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	}).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
