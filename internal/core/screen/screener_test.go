// Package screen 协整筛选测试
package screen

import (
	"math/rand"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/model"
)

// makeSeries 构造带公共时间轴的序列
func makeSeries(symbol string, closes []float64) *model.PriceSeries {
	s := &model.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		s.TsMs = append(s.TsMs, int64(i+1)*3_600_000)
		s.Closes = append(s.Closes, c)
	}
	return s
}

// testUniverse 三个合约：A 与 B 协整（B = 2A + 平稳噪声），C 独立趋势
func testUniverse() []*model.PriceSeries {
	rng := rand.New(rand.NewSource(11))
	n := 300

	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	level := 100.0
	noise := 0.0
	for i := 0; i < n; i++ {
		level += rng.NormFloat64()
		noise = 0.2*noise + rng.NormFloat64()
		a[i] = level
		b[i] = 2*level + noise
		// 平滑二次趋势，与随机游走的回归残差高度持续
		c[i] = float64(i) * float64(i) / float64(n)
	}

	return []*model.PriceSeries{
		makeSeries("AAAUSDT", a),
		makeSeries("BBBUSDT", b),
		makeSeries("CCCUSDT", c),
	}
}

func TestScreener_FindsCointegratedPair(t *testing.T) {
	s := NewScreener(config.ScreenerConfig{PValueThreshold: 0.05, Workers: 4}, zap.NewNop())
	results := s.Run(testUniverse())

	found := false
	for _, r := range results {
		if r.SymbolA == "AAAUSDT" && r.SymbolB == "BBBUSDT" {
			found = true
			if r.PValue >= 0.05 {
				t.Fatalf("协整对 p=%v, want < 0.05", r.PValue)
			}
		}
	}
	if !found {
		t.Fatalf("未找到已知协整对 AAAUSDT/BBBUSDT, results=%v", results)
	}
}

func TestScreener_ResultsSorted(t *testing.T) {
	s := NewScreener(config.ScreenerConfig{PValueThreshold: 0.999, Workers: 8}, zap.NewNop())
	results := s.Run(testUniverse())

	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		if prev.SymbolA > cur.SymbolA ||
			(prev.SymbolA == cur.SymbolA && prev.SymbolB >= cur.SymbolB) {
			t.Fatalf("结果未按配对名排序: %v 在 %v 之前", prev.PairName(), cur.PairName())
		}
	}
}

func TestScreener_WorkerCountInvariance(t *testing.T) {
	universe := testUniverse()

	var baseline []model.CointegrationResult
	for _, workers := range []int{1, 2, 8} {
		s := NewScreener(config.ScreenerConfig{PValueThreshold: 0.999, Workers: workers}, zap.NewNop())
		results := s.Run(universe)
		if baseline == nil {
			baseline = results
			continue
		}
		if !reflect.DeepEqual(baseline, results) {
			t.Fatalf("workers=%d 的结果与基准不一致", workers)
		}
	}
}

func TestScreener_DegeneratePairSkipped(t *testing.T) {
	// 两合约没有共同时间戳：该对静默排除，不影响批次
	a := &model.PriceSeries{Symbol: "AAAUSDT", TsMs: []int64{1000, 2000}, Closes: []float64{1, 2}}
	b := &model.PriceSeries{Symbol: "BBBUSDT", TsMs: []int64{9000, 9999}, Closes: []float64{3, 4}}

	s := NewScreener(config.ScreenerConfig{PValueThreshold: 0.999, Workers: 2}, zap.NewNop())
	results := s.Run([]*model.PriceSeries{a, b})
	if len(results) != 0 {
		t.Fatalf("退化对不应产生结果, got %v", results)
	}
}

func TestIndexBySymbol(t *testing.T) {
	universe := testUniverse()
	m := IndexBySymbol(universe)
	if len(m) != len(universe) {
		t.Fatalf("查找表大小=%d, want %d", len(m), len(universe))
	}
	if m["AAAUSDT"] != universe[0] {
		t.Fatalf("查找表未指向原序列")
	}
}
