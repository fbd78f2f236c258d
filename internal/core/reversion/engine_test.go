// Package reversion 信号引擎测试
package reversion

import (
	"math"
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/model"
)

// pairFromSpread 由价差序列构造配对：b 恒为 100，a = 100·exp(spread)
// 对齐后的对数比价差恰好还原为输入序列
func pairFromSpread(spread []float64) (a, b *model.PriceSeries) {
	a = &model.PriceSeries{Symbol: "AAAUSDT"}
	b = &model.PriceSeries{Symbol: "BBBUSDT"}
	for i, s := range spread {
		ts := int64(i+1) * 3_600_000
		a.TsMs = append(a.TsMs, ts)
		a.Closes = append(a.Closes, 100*math.Exp(s))
		b.TsMs = append(b.TsMs, ts)
		b.Closes = append(b.Closes, 100)
	}
	return a, b
}

// reversingSpread 均值回归价差，末端拉出大偏离以触发入场门
func reversingSpread() []float64 {
	rng := rand.New(rand.NewSource(3))
	phi := math.Exp(-math.Ln2 / 5)
	n := 500
	spread := make([]float64, n)
	for i := 1; i < n; i++ {
		spread[i] = phi*spread[i-1] + 0.01*rng.NormFloat64()
	}
	spread[n-1] = 0.2
	return spread
}

func baseConfig() config.SignalConfig {
	return config.SignalConfig{
		ZScoreEntry:        2.0,
		HalfLifeMaxHours:   24.0,
		PeriodicityMode:    config.PeriodicityOff,
		AutocorrThreshold:  0.3,
		FrequencyThreshold: 0.3,
		LagInterval:        24,
	}
}

func TestEvaluate_EmitsSignal(t *testing.T) {
	a, b := pairFromSpread(reversingSpread())
	e := NewEngine(baseConfig(), nil, zap.NewNop())

	res := model.CointegrationResult{SymbolA: "AAAUSDT", SymbolB: "BBBUSDT", PValue: 0.01}
	sig := e.Evaluate(res, a, b)
	if sig == nil {
		t.Fatalf("全部过滤门应通过")
	}
	if sig.PValue != 0.01 {
		t.Fatalf("PValue=%v, want 0.01", sig.PValue)
	}
	if math.Abs(sig.ZScore) < 2.0 {
		t.Fatalf("ZScore=%v, want |z| >= 2", sig.ZScore)
	}
	if sig.HalfLifeHours <= 0 || sig.HalfLifeHours > 24 {
		t.Fatalf("HalfLifeHours=%v, want (0, 24]", sig.HalfLifeHours)
	}
	if !sig.HasTargetPrice {
		t.Fatalf("第二腿有最新价，应给出目标价")
	}
	// 目标价 = 回归比 × 第二腿最新价（100）
	if math.Abs(sig.TargetPrice-sig.MeanReversionRatio*100) > 1e-6 {
		t.Fatalf("TargetPrice=%v, want ratio×100=%v", sig.TargetPrice, sig.MeanReversionRatio*100)
	}
	// 价差末端为正偏离 ⇒ z>0 ⇒ short
	if sig.Side() != model.SideShort {
		t.Fatalf("Side=%v, want short", sig.Side())
	}
	if sig.EntryPriceRatio <= 0 {
		t.Fatalf("EntryPriceRatio=%v, want > 0", sig.EntryPriceRatio)
	}
}

func TestEvaluate_ZeroVarianceFailsGate(t *testing.T) {
	// 价格比恒定：z-score 为 NaN，必须被入场门拦下
	spread := make([]float64, 100)
	for i := range spread {
		spread[i] = 0.05
	}
	a, b := pairFromSpread(spread)

	e := NewEngine(baseConfig(), nil, zap.NewNop())
	res := model.CointegrationResult{SymbolA: "AAAUSDT", SymbolB: "BBBUSDT", PValue: 0}
	if sig := e.Evaluate(res, a, b); sig != nil {
		t.Fatalf("零方差价差不应产出信号, got %+v", sig)
	}
}

func TestEvaluate_DriftFailsHalfLife(t *testing.T) {
	// 线性漂移：末端 z 超过低阈值，但 AR(1) 斜率近零，半衰期门拦下
	spread := make([]float64, 200)
	for i := range spread {
		spread[i] = float64(i) * 0.001
	}
	a, b := pairFromSpread(spread)

	cfg := baseConfig()
	cfg.ZScoreEntry = 1.0
	e := NewEngine(cfg, nil, zap.NewNop())
	res := model.CointegrationResult{SymbolA: "AAAUSDT", SymbolB: "BBBUSDT", PValue: 0.01}
	if sig := e.Evaluate(res, a, b); sig != nil {
		t.Fatalf("漂移序列不应产出信号, got %+v", sig)
	}
}

func TestEvaluate_StrictPeriodicityGate(t *testing.T) {
	a, b := pairFromSpread(reversingSpread())

	cfg := baseConfig()
	cfg.PeriodicityMode = config.PeriodicityStrict
	// 不可能达到的周期性要求
	cfg.AutocorrThreshold = 0.99
	cfg.LagInterval = 999
	e := NewEngine(cfg, nil, zap.NewNop())

	res := model.CointegrationResult{SymbolA: "AAAUSDT", SymbolB: "BBBUSDT", PValue: 0.01}
	if sig := e.Evaluate(res, a, b); sig != nil {
		t.Fatalf("strict 模式下未确认周期性不应产出信号")
	}
}

func TestEvaluate_AnnotatePeriodicity(t *testing.T) {
	a, b := pairFromSpread(reversingSpread())

	cfg := baseConfig()
	cfg.PeriodicityMode = config.PeriodicityAnnotate
	cfg.AutocorrThreshold = 0.99
	cfg.LagInterval = 999
	e := NewEngine(cfg, nil, zap.NewNop())

	res := model.CointegrationResult{SymbolA: "AAAUSDT", SymbolB: "BBBUSDT", PValue: 0.01}
	sig := e.Evaluate(res, a, b)
	if sig == nil {
		t.Fatalf("annotate 模式下周期性只是注记，不应拦截")
	}
	if sig.Periodic {
		t.Fatalf("未确认周期性 Periodic 应为 false")
	}
}

// recordingCharts 记录 WriteChart 调用的假诊断输出
type recordingCharts struct {
	pairs []string
}

func (r *recordingCharts) WriteChart(pair string, z []float64) error {
	r.pairs = append(r.pairs, pair)
	return nil
}

func TestEvaluateAll_PreservesOrderAndWritesCharts(t *testing.T) {
	a, b := pairFromSpread(reversingSpread())
	universe := map[string]*model.PriceSeries{
		"AAAUSDT": a,
		"BBBUSDT": b,
	}
	results := []model.CointegrationResult{
		{SymbolA: "AAAUSDT", SymbolB: "BBBUSDT", PValue: 0.01},
	}

	charts := &recordingCharts{}
	e := NewEngine(baseConfig(), charts, zap.NewNop())
	signals := e.EvaluateAll(results, universe, 4)
	if len(signals) != 1 {
		t.Fatalf("信号数=%d, want 1", len(signals))
	}
	if len(charts.pairs) != 1 || charts.pairs[0] != "AAAUSDT_BBBUSDT" {
		t.Fatalf("诊断输出=%v, want [AAAUSDT_BBBUSDT]", charts.pairs)
	}
}
