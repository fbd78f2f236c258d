// Package screen 实现全市场协整筛选。
// 对合约全集生成全部 C(N,2) 无序配对，经固定大小的 worker pool
// 并行检验，按 p 值阈值过滤。单对失败只影响该对，绝不中断批次。
package screen

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/align"
	"reversion-sentinel/internal/core/model"
	"reversion-sentinel/internal/stats/coint"
)

// Screener 协整筛选器
// 每对检验相互独立、无副作用，聚合结果与调度顺序无关。
type Screener struct {
	// cfg 筛选配置
	cfg config.ScreenerConfig
	// logger 日志记录器
	logger *zap.Logger
}

// NewScreener 创建协整筛选器
// 参数 cfg: 筛选配置（p 值阈值、worker 数）
// 参数 logger: 日志记录器
func NewScreener(cfg config.ScreenerConfig, logger *zap.Logger) *Screener {
	return &Screener{
		cfg:    cfg,
		logger: logger.Named("screen"),
	}
}

// pairJob 单对检验任务
type pairJob struct {
	a *model.PriceSeries
	b *model.PriceSeries
}

// Run 对全集执行协整筛选
// 参数 universe: 合约序列全集（调用方负责按 Symbol 排序，保证可复现）
// 返回: 通过显著性阈值的协整结果，按 (SymbolA, SymbolB) 排序
func (s *Screener) Run(universe []*model.PriceSeries) []model.CointegrationResult {
	jobs := make(chan pairJob)
	resultCh := make(chan model.CointegrationResult)

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if res, ok := s.evaluate(job.a, job.b); ok {
					resultCh <- res
				}
			}
		}()
	}

	go func() {
		// 字典序 i<j 枚举：不重复、不自配
		for i := 0; i < len(universe); i++ {
			for j := i + 1; j < len(universe); j++ {
				jobs <- pairJob{a: universe[i], b: universe[j]}
			}
		}
		close(jobs)
		wg.Wait()
		close(resultCh)
	}()

	var results []model.CointegrationResult
	for res := range resultCh {
		results = append(results, res)
	}

	// worker 完成顺序不定，回排保证下游贪心消解可复现
	sort.Slice(results, func(i, j int) bool {
		if results[i].SymbolA != results[j].SymbolA {
			return results[i].SymbolA < results[j].SymbolA
		}
		return results[i].SymbolB < results[j].SymbolB
	})

	s.logger.Info("协整筛选完成",
		zap.Int("universe", len(universe)),
		zap.Int("pairs", len(universe)*(len(universe)-1)/2),
		zap.Int("passing", len(results)))

	return results
}

// IndexBySymbol 将序列全集转为 Symbol → 序列的查找表
// 信号引擎按协整结果中的合约名取回原始序列
func IndexBySymbol(universe []*model.PriceSeries) map[string]*model.PriceSeries {
	out := make(map[string]*model.PriceSeries, len(universe))
	for _, s := range universe {
		out[s.Symbol] = s
	}
	return out
}

// evaluate 检验单对
// 退化对齐与高 p 值是正常过滤结果；计算失败记日志后排除，不上抛
func (s *Screener) evaluate(a, b *model.PriceSeries) (res model.CointegrationResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("单对检验 panic，已排除",
				zap.String("pair", fmt.Sprintf("%s/%s", a.Symbol, b.Symbol)),
				zap.Any("panic", r))
			ok = false
		}
	}()

	aligned := align.Pair(a, b)
	if aligned.IsDegenerate() {
		s.logger.Debug("共同时间戳不足，跳过",
			zap.String("pair", fmt.Sprintf("%s/%s", a.Symbol, b.Symbol)),
			zap.Int("common", aligned.Len()))
		return model.CointegrationResult{}, false
	}

	p, err := coint.EngleGranger(aligned.ClosesA, aligned.ClosesB)
	if err != nil {
		s.logger.Warn("协整检验失败，已排除",
			zap.String("pair", fmt.Sprintf("%s/%s", a.Symbol, b.Symbol)),
			zap.Error(err))
		return model.CointegrationResult{}, false
	}

	if p >= s.cfg.PValueThreshold {
		return model.CointegrationResult{}, false
	}

	return model.CointegrationResult{
		SymbolA: a.Symbol,
		SymbolB: b.Symbol,
		PValue:  math.Round(p*1e4) / 1e4,
	}, true
}
