// Package main 是实时回归哨兵的入口点。
// 订阅台账中所有在途腿的实时行情，价格比触及回归目标时平掉
// 整个配对；断线以固定间隔无限重连，全部平仓后自行退出。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/monitor"
	"reversion-sentinel/internal/core/store"
	"reversion-sentinel/internal/exchange/bitget"
	"reversion-sentinel/internal/output/jsonl"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateExchange(true); err != nil {
		fmt.Fprintf(os.Stderr, "交易所配置验证失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	ledger := store.NewLedger(filepath.Join(cfg.Output.Dir, "ledger.csv"))

	stats, err := jsonl.NewWriter(filepath.Join(cfg.Output.Dir, "sentinel.jsonl"), cfg.Output.BufferSize)
	if err != nil {
		logger.Error("创建退出快照输出失败", zap.Error(err))
		os.Exit(1)
	}

	transport := bitget.NewWSClient(cfg.Exchange, logger)
	broker := bitget.NewClient(cfg.Exchange, logger)

	m := monitor.NewMonitor(cfg.Monitor, cfg.Trade, transport, broker, ledger, stats, logger)
	runErr := m.Run(ctx)

	if err := stats.Close(); err != nil {
		logger.Warn("退出快照落盘失败", zap.Error(err))
	}

	if runErr != nil && ctx.Err() == nil {
		logger.Error("哨兵异常退出", zap.Error(runErr))
		os.Exit(1)
	}
	logger.Info("哨兵退出", zap.String("state", string(m.State())))
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
