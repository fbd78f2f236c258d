// Package tradelist 交易清单构建测试
package tradelist

import (
	"testing"

	"go.uber.org/zap"

	"reversion-sentinel/internal/core/model"
)

// sig 构造测试信号，zScore 的符号决定方向
func sig(a, b string, zScore float64) model.SignalResult {
	return model.SignalResult{
		SymbolA:            a,
		SymbolB:            b,
		PValue:             0.01,
		ZScore:             zScore,
		HalfLifeHours:      10,
		MeanReversionRatio: 1.5,
		EntryPriceRatio:    1.6,
	}
}

func TestBuild_NoConflict(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	list := b.Build([]model.SignalResult{
		sig("AAAUSDT", "BBBUSDT", 2.5),
		sig("CCCUSDT", "DDDUSDT", -2.5),
	})

	if list.Len() != 2 {
		t.Fatalf("意向数=%d, want 2", list.Len())
	}
	if list.RunID == "" {
		t.Fatalf("RunID 不能为空")
	}
	if list.Intents[0].Side != model.SideShort {
		t.Fatalf("z>0 应为 short, got %v", list.Intents[0].Side)
	}
	if list.Intents[1].Side != model.SideLong {
		t.Fatalf("z<0 应为 long, got %v", list.Intents[1].Side)
	}
}

func TestBuild_ConflictDropsWholeIntent(t *testing.T) {
	// (A/B short) 先被接受并锁定 A、B 为 short；
	// (B/C long) 中 B 方向相反 ⇒ 整条意向（含 C 腿）丢弃
	b := NewBuilder(zap.NewNop())
	list := b.Build([]model.SignalResult{
		sig("AAAUSDT", "BBBUSDT", 2.5),
		sig("BBBUSDT", "CCCUSDT", -2.5),
	})

	if list.Len() != 1 {
		t.Fatalf("意向数=%d, want 1", list.Len())
	}
	if list.Intents[0].PairName() != "AAAUSDT/BBBUSDT" {
		t.Fatalf("保留的配对=%s, want AAAUSDT/BBBUSDT", list.Intents[0].PairName())
	}
}

func TestBuild_SameDirectionShared(t *testing.T) {
	// 同方向共享合约不构成冲突
	b := NewBuilder(zap.NewNop())
	list := b.Build([]model.SignalResult{
		sig("AAAUSDT", "BBBUSDT", 2.5),
		sig("BBBUSDT", "CCCUSDT", 2.5),
	})

	if list.Len() != 2 {
		t.Fatalf("同向共享不应丢弃, 意向数=%d, want 2", list.Len())
	}
}

func TestBuild_OrderDependence(t *testing.T) {
	// 贪心消解依赖输入顺序：交换输入顺序会改变保留的意向
	b := NewBuilder(zap.NewNop())

	forward := b.Build([]model.SignalResult{
		sig("AAAUSDT", "BBBUSDT", 2.5),
		sig("BBBUSDT", "CCCUSDT", -2.5),
	})
	backward := b.Build([]model.SignalResult{
		sig("BBBUSDT", "CCCUSDT", -2.5),
		sig("AAAUSDT", "BBBUSDT", 2.5),
	})

	if forward.Intents[0].PairName() == backward.Intents[0].PairName() {
		t.Fatalf("顺序不同应保留不同意向")
	}
}

func TestBuild_IntentFields(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	list := b.Build([]model.SignalResult{sig("AAAUSDT", "BBBUSDT", -3.0)})

	intent := list.Intents[0]
	if intent.HalfLifeHours != 10 {
		t.Fatalf("HalfLifeHours=%v, want 10", intent.HalfLifeHours)
	}
	if intent.MeanReversionRatio != 1.5 {
		t.Fatalf("MeanReversionRatio=%v, want 1.5", intent.MeanReversionRatio)
	}
	if intent.EntryPriceRatio != 1.6 {
		t.Fatalf("EntryPriceRatio=%v, want 1.6", intent.EntryPriceRatio)
	}
	// long 意向：买 A 卖 B
	if intent.LegSide("AAAUSDT") != model.OrderBuy || intent.LegSide("BBBUSDT") != model.OrderSell {
		t.Fatalf("long 意向腿方向错误")
	}
}
