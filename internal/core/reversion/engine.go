// Package reversion 实现均值回归信号引擎。
// 对每个协整配对依次执行过滤门：价差构造、z-score 入场门、
// 半衰期门、可选周期性确认；全部通过才产出 SignalResult。
// 未通过过滤门是预期的静默排除，不是错误。
package reversion

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/align"
	"reversion-sentinel/internal/core/model"
	"reversion-sentinel/internal/stats/cycle"
	"reversion-sentinel/internal/stats/meanrev"
)

// ChartWriter z-score 诊断序列输出接口
// 薄 I/O，不属于分析契约，测试中可替换为空实现
type ChartWriter interface {
	// WriteChart 按配对名持久化 z-score 序列
	WriteChart(pair string, z []float64) error
}

// Engine 均值回归信号引擎
type Engine struct {
	// cfg 信号配置
	cfg config.SignalConfig
	// charts 诊断输出（可为 nil）
	charts ChartWriter
	// logger 日志记录器
	logger *zap.Logger
}

// gateReport 运行报告：各过滤门的排除计数
type gateReport struct {
	mu          sync.Mutex
	degenerate  int
	zGate       int
	halfLife    int
	periodicity int
	ratio       int
	emitted     int
}

// NewEngine 创建信号引擎
// 参数 cfg: 信号配置
// 参数 charts: 诊断输出，可为 nil
// 参数 logger: 日志记录器
func NewEngine(cfg config.SignalConfig, charts ChartWriter, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		charts: charts,
		logger: logger.Named("reversion"),
	}
}

// EvaluateAll 对全部协整配对并行计算信号
// 参数 results: 协整筛选输出（已按配对名排序）
// 参数 universe: Symbol → 价格序列
// 参数 workers: worker pool 大小
// 返回: 候选信号，保持 results 的输入顺序（下游贪心消解依赖该顺序）
func (e *Engine) EvaluateAll(results []model.CointegrationResult, universe map[string]*model.PriceSeries, workers int) []model.SignalResult {
	if workers <= 0 {
		workers = 1
	}

	report := &gateReport{}
	slots := make([]*model.SignalResult, len(results))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res := results[idx]
				slots[idx] = e.evaluate(res, universe[res.SymbolA], universe[res.SymbolB], report)
			}
		}()
	}
	for i := range results {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make([]model.SignalResult, 0, len(results))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}

	e.logger.Info("信号计算完成",
		zap.Int("candidates", len(results)),
		zap.Int("emitted", report.emitted),
		zap.Int("drop_degenerate", report.degenerate),
		zap.Int("drop_zscore", report.zGate),
		zap.Int("drop_half_life", report.halfLife),
		zap.Int("drop_periodicity", report.periodicity),
		zap.Int("drop_ratio", report.ratio))

	return out
}

// Evaluate 对单个协整配对执行过滤门流水线
// 返回: 全部通过时为 SignalResult，否则为 nil
func (e *Engine) Evaluate(res model.CointegrationResult, a, b *model.PriceSeries) *model.SignalResult {
	return e.evaluate(res, a, b, &gateReport{})
}

func (e *Engine) evaluate(res model.CointegrationResult, a, b *model.PriceSeries, report *gateReport) *model.SignalResult {
	pair := res.PairName()

	// 门 1：独立重新对齐并构造对数比价差
	aligned := align.Pair(a, b)
	if aligned.IsDegenerate() {
		e.logger.Debug("共同时间戳不足", zap.String("pair", pair))
		report.bump(&report.degenerate)
		return nil
	}
	spread := meanrev.Spread(aligned.ClosesA, aligned.ClosesB)

	// 门 2：最新 z-score；零方差价差产生 NaN，视为未通过
	zLatest := meanrev.LatestZ(spread)
	if !meanrev.PassesGate(zLatest, e.cfg.ZScoreEntry) {
		e.logger.Debug("z-score 未达入场门",
			zap.String("pair", pair), zap.Float64("z", zLatest))
		report.bump(&report.zGate)
		return nil
	}

	// 门 3：AR(1) 半衰期；斜率非负或近零视为非均值回归
	hl, ok := meanrev.HalfLife(spread)
	if !ok || hl > e.cfg.HalfLifeMaxHours {
		e.logger.Debug("半衰期门未通过",
			zap.String("pair", pair), zap.Float64("half_life", hl), zap.Bool("defined", ok))
		report.bump(&report.halfLife)
		return nil
	}

	// 门 4：周期性确认（按配置为注记或硬门）
	zSeries := meanrev.ZScores(spread)
	periodic := false
	if e.cfg.PeriodicityMode != config.PeriodicityOff {
		periodic = cycle.PeriodicPeaks(zSeries, e.cfg.AutocorrThreshold, e.cfg.LagInterval) &&
			cycle.DominantFrequency(zSeries, e.cfg.FrequencyThreshold)
		if e.cfg.PeriodicityMode == config.PeriodicityStrict && !periodic {
			e.logger.Debug("周期性确认未通过", zap.String("pair", pair))
			report.bump(&report.periodicity)
			return nil
		}
	}

	// 回归目标：价格比均值与第二腿最新价
	ratio, ok := meanrev.Ratio(spread)
	if !ok {
		e.logger.Debug("回归比无定义", zap.String("pair", pair))
		report.bump(&report.ratio)
		return nil
	}

	sig := &model.SignalResult{
		SymbolA:            res.SymbolA,
		SymbolB:            res.SymbolB,
		PValue:             res.PValue,
		ZScore:             math.Round(zLatest*100) / 100,
		HalfLifeHours:      hl,
		MeanReversionRatio: ratio,
		Periodic:           periodic,
	}
	if n := aligned.Len(); n > 0 && aligned.ClosesB[n-1] > 0 {
		sig.EntryPriceRatio = aligned.ClosesA[n-1] / aligned.ClosesB[n-1]
	}
	if priceB, ok := b.LatestClose(); ok && priceB > 0 {
		sig.TargetPrice = ratio * priceB
		sig.HasTargetPrice = true
	}

	// 诊断输出失败不影响信号产出
	if e.charts != nil {
		if err := e.charts.WriteChart(res.SymbolA+"_"+res.SymbolB, zSeries); err != nil {
			e.logger.Warn("z-score 诊断输出失败", zap.String("pair", pair), zap.Error(err))
		}
	}

	report.bump(&report.emitted)
	return sig
}

func (r *gateReport) bump(counter *int) {
	r.mu.Lock()
	*counter++
	r.mu.Unlock()
}
