package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"orderflow/internal/app"
	"orderflow/internal/config"
	"orderflow/internal/logger"
)

func main() {
	cfgPath := os.Getenv("ORDERFLOW_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)
	logger.Infof("✓ 配置加载成功（环境=%s，场所=%s，模式=%s）", cfg.App.Env, cfg.Venue.Name, cfg.Venue.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 一次性模式：处理单个事件文件后退出。
	if eventPath := strings.TrimSpace(os.Getenv("ORDERFLOW_EVENT")); eventPath != "" {
		code := runOnce(ctx, cfg, eventPath)
		stop()
		if logFile != nil {
			logFile.Close()
		}
		os.Exit(code)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer a.Close()
	if err := a.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

func runOnce(ctx context.Context, cfg *config.Config, eventPath string) int {
	a, err := app.NewApp(cfg, app.WithoutHTTP())
	if err != nil {
		logger.Errorf("初始化应用失败: %v", err)
		fmt.Println(`{"State":"ERROR"}`)
		return 1
	}
	defer a.Close()
	resp, err := a.RunEventFile(ctx, eventPath)
	out, _ := json.Marshal(resp)
	fmt.Println(string(out))
	if err != nil {
		logger.Errorf("事件处理失败: %v", err)
		return 1
	}
	return 0
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
