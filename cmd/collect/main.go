package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/LJTian/SentimentHub/internal/collector"
	"github.com/LJTian/SentimentHub/internal/config"
	"github.com/LJTian/SentimentHub/internal/logger"
	"github.com/LJTian/SentimentHub/internal/processor"
	"github.com/LJTian/SentimentHub/internal/scheduler"
	"github.com/LJTian/SentimentHub/internal/sentiment"
	"github.com/LJTian/SentimentHub/internal/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0969DA")).
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2DA44E"))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E7681")).Width(16)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CF222E")).Bold(true)

	sentimentStyles = map[sentiment.Sentiment]lipgloss.Style{
		sentiment.Positive: lipgloss.NewStyle().Foreground(lipgloss.Color("#2DA44E")).Bold(true),
		sentiment.Neutral:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6E7681")).Bold(true),
		sentiment.Negative: lipgloss.NewStyle().Foreground(lipgloss.Color("#CF222E")).Bold(true),
	}
)

// 一个仅执行一次采集任务的命令行入口：适合手动触发采集
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config failed: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	store, err := storage.Open(cfg.DatabaseDSN, cfg.RedisAddr, logger.Component(log, "storage"))
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		log.Fatalf("init schema failed: %v", err)
	}

	coll, err := collector.FromSources(cfg.Sources, cfg.FetchTimeout, logger.Component(log, "collector"))
	if err != nil {
		log.Fatalf("init collector failed: %v", err)
	}

	p := processor.New(sentiment.NewClassifier(cfg.Lexicon))
	s, err := scheduler.New(cfg.FetchInterval, coll, p, store, scheduler.WithLogger(logger.Component(log, "scheduler")))
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 只执行一轮采集任务后退出
	report, err := s.RunOnce(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("collect failed: "+err.Error()))
		os.Exit(1)
	}
	printReport(coll.Sources(), report)
}

func printReport(sources []string, r scheduler.RunReport) {
	fmt.Println(headerStyle.Render("SentimentHub - coleta concluída"))

	row := func(label, value string) {
		fmt.Println(labelStyle.Render(label) + value)
	}
	row("Fontes", strings.Join(sources, ", "))
	row("Coletadas", fmt.Sprint(r.Fetched))
	row("Salvas", fmt.Sprint(r.Saved))
	row("Duração", r.Duration.Round(time.Millisecond).String())

	for _, label := range sentiment.Labels {
		row(string(label), sentimentStyles[label].Render(fmt.Sprint(r.Counts[string(label)])))
	}

	if len(r.Failed) > 0 {
		row("Falhas", errorStyle.Render(strings.Join(r.Failed, ", ")))
	}
}
