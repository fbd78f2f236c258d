// Package main 是配对筛选流水线的入口点。
// 从 K 线 CSV 目录出发：协整筛选 → 均值回归信号 → 冲突消解，
// 最终落盘一张带时间戳的交易清单 CSV，交由执行引擎使用。
// 流水线是纯离线批处理，不访问交易所。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/reversion"
	"reversion-sentinel/internal/core/screen"
	"reversion-sentinel/internal/core/store"
	"reversion-sentinel/internal/core/tradelist"
	"reversion-sentinel/internal/output/jsonl"
)

// runSummary 单次流水线运行的汇总记录
type runSummary struct {
	// RunID 运行标识
	RunID string `json:"run_id"`
	// TsUnixMs 完成时间（毫秒）
	TsUnixMs int64 `json:"ts_unix_ms"`
	// Symbols 参与筛选的合约数
	Symbols int `json:"symbols"`
	// CointegratedPairs 通过协整检验的配对数
	CointegratedPairs int `json:"cointegrated_pairs"`
	// Signals 产出信号数
	Signals int `json:"signals"`
	// Accepted 冲突消解后保留的意向数
	Accepted int `json:"accepted"`
	// TradeListPath 交易清单文件路径
	TradeListPath string `json:"trade_list_path"`
	// ElapsedMs 运行耗时（毫秒）
	ElapsedMs int64 `json:"elapsed_ms"`
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	start := time.Now()

	universe, err := store.LoadUniverse(cfg.Data.CandleDir, cfg.Data.MinRows, logger)
	if err != nil {
		logger.Error("K 线数据加载失败", zap.Error(err))
		os.Exit(1)
	}

	screener := screen.NewScreener(cfg.Screener, logger)
	cointResults := screener.Run(universe)
	if ctx.Err() != nil {
		logger.Info("流水线被中断")
		os.Exit(1)
	}

	universeMap := screen.IndexBySymbol(universe)

	var charts *reversion.JSONLCharts
	if cfg.Output.ChartsEnabled {
		charts, err = reversion.NewJSONLCharts(
			fmt.Sprintf("%s/charts.jsonl", cfg.Output.Dir),
			cfg.Output.BufferSize,
			cfg.Signal.ZScoreEntry,
		)
		if err != nil {
			logger.Error("创建诊断输出失败", zap.Error(err))
			os.Exit(1)
		}
	}

	engine := reversion.NewEngine(cfg.Signal, chartWriterOrNil(charts), logger)
	signals := engine.EvaluateAll(cointResults, universeMap, cfg.Screener.Workers)

	builder := tradelist.NewBuilder(logger)
	list := builder.Build(signals)

	path, err := store.SaveTradeList(cfg.Output.Dir, list)
	if err != nil {
		logger.Error("交易清单落盘失败", zap.Error(err))
		os.Exit(1)
	}

	if charts != nil {
		if err := charts.Close(); err != nil {
			logger.Warn("诊断输出关闭失败", zap.Error(err))
		}
	}

	summary := runSummary{
		RunID:             list.RunID,
		TsUnixMs:          time.Now().UnixMilli(),
		Symbols:           len(universe),
		CointegratedPairs: len(cointResults),
		Signals:           len(signals),
		Accepted:          list.Len(),
		TradeListPath:     path,
		ElapsedMs:         time.Since(start).Milliseconds(),
	}
	if err := writeRunSummary(cfg, summary); err != nil {
		logger.Warn("运行汇总写入失败", zap.Error(err))
	}

	logger.Info("流水线完成",
		zap.String("run_id", list.RunID),
		zap.Int("symbols", summary.Symbols),
		zap.Int("cointegrated_pairs", summary.CointegratedPairs),
		zap.Int("signals", summary.Signals),
		zap.Int("accepted", summary.Accepted),
		zap.String("trade_list", path),
		zap.Int64("elapsed_ms", summary.ElapsedMs))
}

// chartWriterOrNil 将可能为 nil 的具体类型转为接口
// 直接传 nil 指针会得到非 nil 接口值
func chartWriterOrNil(c *reversion.JSONLCharts) reversion.ChartWriter {
	if c == nil {
		return nil
	}
	return c
}

// writeRunSummary 将运行汇总追加到 runs.jsonl
func writeRunSummary(cfg *config.Config, summary runSummary) error {
	w, err := jsonl.NewWriter(fmt.Sprintf("%s/runs.jsonl", cfg.Output.Dir), cfg.Output.BufferSize)
	if err != nil {
		return err
	}
	if err := w.Write(summary); err != nil {
		w.Close()
		return err
	}
	return w.Close()
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
