// Package tradelist 实现交易清单构建与方向冲突消解。
// 消解策略为贪心且依赖输入顺序：按序处理信号，任一合约已被
// 先前接受的意向锁定为相反方向时，整条新意向（两腿）丢弃。
// 后到的、统计上可能更强的配对会仅因处理顺序被拒——这是既有
// 系统的可复现行为，未经产品确认不得更改（见 DESIGN.md）。
package tradelist

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reversion-sentinel/internal/core/model"
)

// Builder 交易清单构建器
type Builder struct {
	// logger 日志记录器
	logger *zap.Logger
}

// NewBuilder 创建交易清单构建器
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger.Named("tradelist")}
}

// Build 将信号序列转为冲突消解后的交易清单
// 方向由最新 z-score 符号推导：z < 0 ⇒ long，否则 short。
// 对无冲突输入幂等：清单再次经过构建器输出不变。
func (b *Builder) Build(signals []model.SignalResult) *model.TradeList {
	list := &model.TradeList{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now(),
	}

	// 合约 → 已锁定的配对方向
	locked := make(map[string]model.Side)

	for _, sig := range signals {
		intent := model.TradeIntent{
			SymbolA:            sig.SymbolA,
			SymbolB:            sig.SymbolB,
			Side:               sig.Side(),
			HalfLifeHours:      sig.HalfLifeHours,
			MeanReversionRatio: sig.MeanReversionRatio,
			EntryPriceRatio:    sig.EntryPriceRatio,
		}

		if conflict, sym := b.conflicts(locked, intent); conflict {
			b.logger.Info("方向冲突，整条意向丢弃",
				zap.String("pair", intent.PairName()),
				zap.String("side", string(intent.Side)),
				zap.String("conflicting_symbol", sym))
			continue
		}

		locked[intent.SymbolA] = intent.Side
		locked[intent.SymbolB] = intent.Side
		list.Intents = append(list.Intents, intent)
	}

	b.logger.Info("交易清单构建完成",
		zap.String("run_id", list.RunID),
		zap.Int("signals", len(signals)),
		zap.Int("accepted", len(list.Intents)))

	return list
}

// Rebuild 以既有清单的意向重新过一遍冲突消解
// 对自身已消解的输出应为恒等变换，用于幂等性校验
func (b *Builder) Rebuild(list *model.TradeList) *model.TradeList {
	out := &model.TradeList{
		RunID:     list.RunID,
		CreatedAt: list.CreatedAt,
	}
	locked := make(map[string]model.Side)
	for _, intent := range list.Intents {
		if conflict, _ := b.conflicts(locked, intent); conflict {
			continue
		}
		locked[intent.SymbolA] = intent.Side
		locked[intent.SymbolB] = intent.Side
		out.Intents = append(out.Intents, intent)
	}
	return out
}

// conflicts 判断意向是否与已锁定方向冲突
// 同一配对方向语义下，意向的两腿共享同一个 Side 锁
func (b *Builder) conflicts(locked map[string]model.Side, intent model.TradeIntent) (bool, string) {
	if side, ok := locked[intent.SymbolA]; ok && side != intent.Side {
		return true, intent.SymbolA
	}
	if side, ok := locked[intent.SymbolB]; ok && side != intent.Side {
		return true, intent.SymbolB
	}
	return false, ""
}
