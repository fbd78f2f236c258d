// Package model 定义均值回归哨兵使用的核心数据结构。
package model

import "fmt"

// Side 交易方向
type Side string

const (
	// SideLong 多头方向
	// 最新 z-score 为负（价差低于均值，预期上行）时产生
	SideLong Side = "long"
	// SideShort 空头方向
	// 最新 z-score 为正（价差高于均值，预期下行）时产生
	SideShort Side = "short"
)

// CointegrationResult 协整检验结果
// 仅对通过显著性阈值（p < 阈值）的合约对存在，创建后只读
type CointegrationResult struct {
	// SymbolA 第一腿合约
	SymbolA string
	// SymbolB 第二腿合约
	SymbolB string
	// PValue Engle-Granger 检验 p 值（保留 4 位小数）
	PValue float64
}

// PairName 返回 A/B 形式的配对名
func (r CointegrationResult) PairName() string {
	return fmt.Sprintf("%s/%s", r.SymbolA, r.SymbolB)
}

// SignalResult 均值回归候选信号
// 仅当全部过滤门通过时由信号引擎产出，创建后只读
type SignalResult struct {
	// SymbolA 第一腿合约
	SymbolA string
	// SymbolB 第二腿合约
	SymbolB string
	// PValue 协整检验 p 值
	PValue float64
	// ZScore 最新 z-score（保留 2 位小数）
	ZScore float64
	// HalfLifeHours 均值回归半衰期（小时，保留 2 位小数）
	HalfLifeHours float64
	// MeanReversionRatio 历史均值价格比 exp(mean(spread))（保留 5 位小数）
	MeanReversionRatio float64
	// TargetPrice 回归目标价 = MeanReversionRatio × 第二腿最新价
	// 第二腿无最新价时为 0，且 HasTargetPrice 为 false
	TargetPrice float64
	// HasTargetPrice 是否成功计算回归目标价
	HasTargetPrice bool
	// Periodic 周期性确认标记
	// 自相关扫描与主频扫描同时通过时为 true
	Periodic bool
	// EntryPriceRatio 信号时刻的最新价格比 A/B
	EntryPriceRatio float64
}

// PairName 返回 A/B 形式的配对名
func (r SignalResult) PairName() string {
	return fmt.Sprintf("%s/%s", r.SymbolA, r.SymbolB)
}

// Side 由最新 z-score 推导交易方向
// z < 0 ⇒ long；否则 short
func (r SignalResult) Side() Side {
	if r.ZScore < 0 {
		return SideLong
	}
	return SideShort
}
