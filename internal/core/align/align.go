// Package align 实现两条价格序列的时间对齐。
// 按时间戳做内连接：任一侧缺失的时间点在两侧同时丢弃，
// 不做插值或前向填充。所有配对统计的基础。
package align

import "reversion-sentinel/internal/core/model"

// Pair 对两条序列按共同时间戳做内连接
// 输出按时间戳升序，两侧长度相等且索引同步。
// 共同时间戳不足 2 个时返回的 AlignedPair 为退化情形，
// 调用方通过 IsDegenerate 短路，不视为错误。
func Pair(a, b *model.PriceSeries) *model.AlignedPair {
	out := &model.AlignedPair{}
	if a != nil {
		out.SymbolA = a.Symbol
	}
	if b != nil {
		out.SymbolB = b.Symbol
	}
	if a.Len() == 0 || b.Len() == 0 {
		return out
	}

	// b 侧时间戳 → 下标；序列不变量保证无重复
	bIdx := make(map[int64]int, b.Len())
	for i, ts := range b.TsMs {
		bIdx[ts] = i
	}

	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	out.TsMs = make([]int64, 0, n)
	out.ClosesA = make([]float64, 0, n)
	out.ClosesB = make([]float64, 0, n)

	// a 侧本身升序，按序取交集即保证输出升序
	for i, ts := range a.TsMs {
		j, ok := bIdx[ts]
		if !ok {
			continue
		}
		out.TsMs = append(out.TsMs, ts)
		out.ClosesA = append(out.ClosesA, a.Closes[i])
		out.ClosesB = append(out.ClosesB, b.Closes[j])
	}
	return out
}
