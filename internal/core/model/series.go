// Package model 定义均值回归哨兵使用的核心数据结构。
// 包含价格序列、协整结果、信号、交易意向等核心类型。
package model

// PriceSeries 单个合约的收盘价时间序列
// 不变量：加载后时间戳严格递增，无重复
type PriceSeries struct {
	// Symbol 合约标识，如 BTCUSDT
	Symbol string
	// TsMs 时间戳（毫秒），与 Closes 一一对应
	TsMs []int64
	// Closes 收盘价
	Closes []float64
}

// Len 返回序列长度
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Closes)
}

// LatestClose 返回最新收盘价
// 若序列为空返回 (0, false)
func (s *PriceSeries) LatestClose() (float64, bool) {
	if s.Len() == 0 {
		return 0, false
	}
	return s.Closes[len(s.Closes)-1], true
}

// AlignedPair 按共同时间戳内连接后的一对序列
// 不变量：两侧长度相等且索引同步
type AlignedPair struct {
	// SymbolA 第一腿合约
	SymbolA string
	// SymbolB 第二腿合约
	SymbolB string
	// TsMs 共同时间戳（毫秒，升序）
	TsMs []int64
	// ClosesA 第一腿收盘价
	ClosesA []float64
	// ClosesB 第二腿收盘价
	ClosesB []float64
}

// Len 返回对齐后的长度
func (p *AlignedPair) Len() int {
	if p == nil {
		return 0
	}
	return len(p.TsMs)
}

// IsDegenerate 判断是否为退化情形
// 共同时间戳少于 2 个时，下游所有统计量无定义，必须短路
func (p *AlignedPair) IsDegenerate() bool {
	return p.Len() < 2
}

// PriceTick 实时行情推送的单条价格
type PriceTick struct {
	// Symbol 合约标识
	Symbol string
	// Close 最新收盘价
	Close float64
	// TsMs 行情时间戳（毫秒）
	TsMs int64
}
