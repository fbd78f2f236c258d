// Package main 是对冲开仓引擎的入口点。
// 读取流水线落盘的交易清单 CSV，对每条意向在 Bitget 上开出
// 两腿等额保证金的市价对冲仓，并把成交记入在途持仓台账。
// 重复执行同一清单不会加仓（以台账为幂等依据）。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/execution"
	"reversion-sentinel/internal/core/store"
	"reversion-sentinel/internal/exchange/bitget"
)

func main() {
	var configPath string
	var tradesPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.StringVar(&tradesPath, "trades", "", "交易清单路径（默认取输出目录中最新的 trades_*.csv）")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateExchange(false); err != nil {
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

	if tradesPath == "" {
		tradesPath, err = latestTradeList(cfg.Output.Dir)
		if err != nil {
			logger.Error("定位交易清单失败", zap.Error(err))
			os.Exit(1)
		}
	}

	list, err := store.LoadTradeList(tradesPath)
	if err != nil {
		logger.Error("交易清单加载失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("交易清单已加载",
		zap.String("path", tradesPath),
		zap.Int("intents", list.Len()))

	ledger := store.NewLedger(filepath.Join(cfg.Output.Dir, "ledger.csv"))
	orphans := store.NewLedger(filepath.Join(cfg.Output.Dir, "orphans.csv"))
	if err := ledger.InitIfMissing(); err != nil {
		logger.Error("台账初始化失败", zap.Error(err))
		os.Exit(1)
	}
	if err := orphans.InitIfMissing(); err != nil {
		logger.Error("孤腿文件初始化失败", zap.Error(err))
		os.Exit(1)
	}

	broker := bitget.NewClient(cfg.Exchange, logger)
	executor := execution.NewExecutor(cfg.Trade, broker, ledger, orphans, logger)

	// 先对账再执行：别处平掉的仓位不应阻塞新开仓
	if err := executor.Reconcile(ctx); err != nil {
		logger.Error("启动对账失败", zap.Error(err))
		os.Exit(1)
	}

	report, err := executor.ExecuteList(ctx, list)
	if err != nil {
		logger.Error("交易清单执行失败", zap.Error(err))
		os.Exit(1)
	}
	if report.Orphaned > 0 {
		logger.Error("存在需要人工处理的残腿",
			zap.Int("orphaned", report.Orphaned),
			zap.String("orphans_file", orphans.Path()))
		os.Exit(1)
	}
}

// latestTradeList 返回输出目录中文件名最新的交易清单
// 文件名含时间戳，字典序即时间序
func latestTradeList(dir string) (string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "trades_*.csv"))
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("目录 %s 中没有交易清单", dir)
	}
	sort.Strings(paths)
	return paths[len(paths)-1], nil
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
