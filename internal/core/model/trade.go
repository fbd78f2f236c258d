// Package model 定义均值回归哨兵使用的核心数据结构。
package model

import (
	"strings"
	"time"
)

// OrderSide 订单方向（单腿实际下单方向）
type OrderSide string

const (
	// OrderBuy 买入开多 / 买入平空
	OrderBuy OrderSide = "buy"
	// OrderSell 卖出开空 / 卖出平多
	OrderSell OrderSide = "sell"
)

// Opposite 返回相反的订单方向，用于平仓
func (s OrderSide) Opposite() OrderSide {
	if s == OrderBuy {
		return OrderSell
	}
	return OrderBuy
}

// TradeIntent 交易意向
// 由 SignalResult 推导，冲突消解后进入 TradeList
type TradeIntent struct {
	// SymbolA 第一腿合约（base）
	SymbolA string
	// SymbolB 第二腿合约（quote）
	SymbolB string
	// Side 配对方向: long 或 short
	// long: 买入 A、卖出 B；short: 卖出 A、买入 B
	Side Side
	// HalfLifeHours 均值回归半衰期（小时）
	HalfLifeHours float64
	// MeanReversionRatio 回归目标价格比
	MeanReversionRatio float64
	// EntryPriceRatio 入场时的价格比（最新 A/B）
	EntryPriceRatio float64
}

// PairName 返回 A/B 形式的配对名
func (t TradeIntent) PairName() string {
	return t.SymbolA + "/" + t.SymbolB
}

// LegSide 返回指定腿的下单方向
// long 意向买 A 卖 B，short 意向卖 A 买 B
func (t TradeIntent) LegSide(symbol string) OrderSide {
	aBuys := t.Side == SideLong
	if symbol == t.SymbolA {
		if aBuys {
			return OrderBuy
		}
		return OrderSell
	}
	if aBuys {
		return OrderSell
	}
	return OrderBuy
}

// TradeList 冲突消解后的交易清单
// 持久化为本次运行的权威交接产物
// 不变量：任一合约不会以相反方向出现在两条意向中
type TradeList struct {
	// RunID 本次流水线运行标识
	RunID string
	// CreatedAt 生成时间
	CreatedAt time.Time
	// Intents 接受的意向（保持输入顺序）
	Intents []TradeIntent
}

// Len 返回意向数量
func (l *TradeList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Intents)
}

// ActiveTrade 在途持仓记录（每腿一条，一对两条）
// 由执行引擎在成交后写入台账，由哨兵在确认平仓后删除
type ActiveTrade struct {
	// Pair 所属配对，A/B 形式
	Pair string
	// Leg 本腿合约标识
	Leg string
	// LegSide 开仓时本腿的下单方向
	LegSide OrderSide
	// Side 配对方向: long 或 short
	Side Side
	// OrderID 交易所订单号
	OrderID string
	// Amount 持仓数量
	Amount float64
	// MeanReversionRatio 回归目标价格比（哨兵平仓判据）
	MeanReversionRatio float64
}

// Base 返回配对的第一腿合约
func (t ActiveTrade) Base() string {
	if i := strings.IndexByte(t.Pair, '/'); i >= 0 {
		return t.Pair[:i]
	}
	return t.Pair
}

// Quote 返回配对的第二腿合约
func (t ActiveTrade) Quote() string {
	if i := strings.IndexByte(t.Pair, '/'); i >= 0 {
		return t.Pair[i+1:]
	}
	return ""
}

// CloseSide 返回平掉本腿所需的订单方向
func (t ActiveTrade) CloseSide() OrderSide {
	return t.LegSide.Opposite()
}
