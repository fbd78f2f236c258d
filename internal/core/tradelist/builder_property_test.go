// Package tradelist 交易清单属性测试
package tradelist

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"reversion-sentinel/internal/core/model"
)

// signalsFromSpec 将整数流按三个一组解释为 (a, b, 方向)
// 合约名取模 8 制造共享腿，方向按奇偶映射 z-score 符号
func signalsFromSpec(raw []int) []model.SignalResult {
	var signals []model.SignalResult
	for i := 0; i+2 < len(raw); i += 3 {
		a := fmt.Sprintf("SYM%dUSDT", raw[i]%8)
		b := fmt.Sprintf("SYM%dUSDT", raw[i+1]%8)
		if a == b {
			continue
		}
		z := 2.5
		if raw[i+2]%2 == 0 {
			z = -2.5
		}
		signals = append(signals, sig(a, b, z))
	}
	return signals
}

func TestBuild_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	specGen := gen.SliceOf(gen.IntRange(0, 15))

	properties.Property("清单内任一合约不会以相反方向出现两次", prop.ForAll(
		func(raw []int) bool {
			b := NewBuilder(zap.NewNop())
			list := b.Build(signalsFromSpec(raw))

			locked := make(map[string]model.Side)
			for _, intent := range list.Intents {
				for _, symbol := range []string{intent.SymbolA, intent.SymbolB} {
					if side, ok := locked[symbol]; ok && side != intent.Side {
						return false
					}
					locked[symbol] = intent.Side
				}
			}
			return true
		},
		specGen,
	))

	properties.Property("消解对自身输出幂等", prop.ForAll(
		func(raw []int) bool {
			b := NewBuilder(zap.NewNop())
			list := b.Build(signalsFromSpec(raw))
			again := b.Rebuild(list)

			if len(again.Intents) != len(list.Intents) {
				return false
			}
			for i := range list.Intents {
				if again.Intents[i] != list.Intents[i] {
					return false
				}
			}
			return true
		},
		specGen,
	))

	properties.TestingRun(t)
}
