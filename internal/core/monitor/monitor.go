// Package monitor 实现在途持仓的实时回归哨兵。
// 订阅台账中所有腿的实时行情，价格比触及回归目标时平掉整个配对；
// 断线后以固定间隔无限重连，每次重连都重新加载台账。
// 价格缓存只由 Run 所在的单 goroutine 读写，无需加锁。
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/model"
	"reversion-sentinel/internal/core/store"
	"reversion-sentinel/internal/output/jsonl"
	"reversion-sentinel/internal/util/retry"
)

// State 哨兵连接状态
type State string

const (
	// StateDisconnected 初始未连接
	StateDisconnected State = "disconnected"
	// StateConnecting 正在建立连接
	StateConnecting State = "connecting"
	// StateSubscribed 已订阅行情，等待首个推送
	StateSubscribed State = "subscribed"
	// StateStreaming 正常接收行情
	StateStreaming State = "streaming"
	// StateReconnecting 断线后等待重连
	StateReconnecting State = "reconnecting"
	// StateTerminated 已终止（全部平仓或收到关停信号）
	StateTerminated State = "terminated"
)

// errAllClosed 全部配对已平仓的内部哨兵错误
var errAllClosed = errors.New("全部配对已平仓")

// Transport 实时行情传输接口
// 由 bitget WebSocket 客户端实现，测试中以假实现替换
type Transport interface {
	// Connect 建立连接
	Connect(ctx context.Context) error
	// Subscribe 订阅指定合约的实时行情
	Subscribe(symbols []string) error
	// ReadTick 阻塞读取下一个价格推送
	// 连接断开或 Close 被调用时返回错误
	ReadTick() (*model.PriceTick, error)
	// Close 关闭连接，使阻塞中的 ReadTick 返回
	Close() error
}

// OrderPlacer 平仓下单接口，Broker 的子集
type OrderPlacer interface {
	// PlaceMarketOrder 市价下单
	PlaceMarketOrder(ctx context.Context, symbol string, side model.OrderSide, amount decimal.Decimal, reduceOnly bool) (string, error)
}

// Monitor 实时回归哨兵
type Monitor struct {
	// cfg 哨兵配置
	cfg config.MonitorConfig
	// tradeCfg 执行配置（平仓重试参数）
	tradeCfg config.TradeConfig
	// transport 行情传输
	transport Transport
	// broker 平仓下单客户端
	broker OrderPlacer
	// ledger 在途持仓台账
	ledger *store.Ledger
	// stats 退出快照输出（可为 nil）
	stats *jsonl.Writer
	// logger 日志记录器
	logger *zap.Logger

	// state 当前连接状态，仅 Run goroutine 写
	state State
	// prices 最新收盘价缓存，仅 Run goroutine 读写
	prices map[string]float64
	// cooldown 配对 → 下次允许再次尝试平仓的时间
	cooldown map[string]time.Time

	// reconnects 重连次数（退出快照用）
	reconnects int
	// ticks 处理的推送总数
	ticks int
	// closedPairs 本次运行平掉的配对数
	closedPairs int
}

// exitSnapshot 退出时写出的运行快照
type exitSnapshot struct {
	// State 退出时的状态
	State State `json:"state"`
	// ClosedPairs 本次运行平掉的配对数
	ClosedPairs int `json:"closed_pairs"`
	// RemainingPairs 仍在途的配对数
	RemainingPairs int `json:"remaining_pairs"`
	// Reconnects 重连次数
	Reconnects int `json:"reconnects"`
	// Ticks 处理的推送总数
	Ticks int `json:"ticks"`
}

// NewMonitor 创建实时回归哨兵
func NewMonitor(cfg config.MonitorConfig, tradeCfg config.TradeConfig, transport Transport, broker OrderPlacer, ledger *store.Ledger, stats *jsonl.Writer, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:       cfg,
		tradeCfg:  tradeCfg,
		transport: transport,
		broker:    broker,
		ledger:    ledger,
		stats:     stats,
		logger:    logger.Named("monitor"),
		state:     StateDisconnected,
		prices:    make(map[string]float64),
		cooldown:  make(map[string]time.Time),
	}
}

// State 返回当前连接状态
// 只应在 Run 返回后读取，运行中的值仅供日志参考
func (m *Monitor) State() State {
	return m.state
}

// Run 运行哨兵直到全部配对平仓或 ctx 取消
// 每次（重）连接都重新加载台账，断线以固定间隔无限重连。
// 返回: 全部平仓为 nil，取消为 ctx 错误
func (m *Monitor) Run(ctx context.Context) error {
	defer m.writeSnapshot()

	reconnectDelay := time.Duration(m.cfg.ReconnectDelayMs) * time.Millisecond

	for {
		if err := ctx.Err(); err != nil {
			m.setState(StateTerminated)
			return err
		}

		m.setState(StateConnecting)
		if err := m.transport.Connect(ctx); err != nil {
			m.logger.Warn("连接失败，等待重连", zap.Error(err))
			if stop := m.waitReconnect(ctx, reconnectDelay); stop {
				m.setState(StateTerminated)
				return ctx.Err()
			}
			continue
		}

		// 每次连接都以台账当前内容为准，平仓冷却一并重置
		m.cooldown = make(map[string]time.Time)
		trades, err := m.ledger.Load()
		if err != nil {
			m.transport.Close()
			m.logger.Error("台账加载失败，等待重连", zap.Error(err))
			if stop := m.waitReconnect(ctx, reconnectDelay); stop {
				m.setState(StateTerminated)
				return ctx.Err()
			}
			continue
		}
		if len(trades) == 0 {
			m.transport.Close()
			m.logger.Info("台账为空，哨兵退出")
			m.setState(StateTerminated)
			return nil
		}

		if err := m.transport.Subscribe(legSymbols(trades)); err != nil {
			m.transport.Close()
			m.logger.Warn("订阅失败，等待重连", zap.Error(err))
			if stop := m.waitReconnect(ctx, reconnectDelay); stop {
				m.setState(StateTerminated)
				return ctx.Err()
			}
			continue
		}
		m.setState(StateSubscribed)
		m.logger.Info("行情订阅完成",
			zap.Int("pairs", len(groupByPair(trades))),
			zap.Int("legs", len(trades)))

		err = m.stream(ctx, trades)
		m.transport.Close()

		switch {
		case errors.Is(err, errAllClosed):
			m.logger.Info("全部配对已平仓，哨兵退出")
			m.setState(StateTerminated)
			return nil
		case ctx.Err() != nil:
			m.logger.Info("收到关停信号，哨兵退出")
			m.setState(StateTerminated)
			return ctx.Err()
		default:
			m.logger.Warn("行情流中断，等待重连", zap.Error(err))
			if stop := m.waitReconnect(ctx, reconnectDelay); stop {
				m.setState(StateTerminated)
				return ctx.Err()
			}
		}
	}
}

// stream 行情接收主循环
// 返回 errAllClosed 表示正常完结，其他错误表示连接中断
func (m *Monitor) stream(ctx context.Context, trades []model.ActiveTrade) error {
	pairs := groupByPair(trades)

	// ctx 取消时关闭连接，让阻塞中的 ReadTick 返回
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			m.transport.Close()
		case <-watchDone:
		}
	}()

	for {
		tick, err := m.transport.ReadTick()
		if err != nil {
			return err
		}
		if tick == nil || tick.Close <= 0 {
			continue
		}
		m.setState(StateStreaming)
		m.ticks++
		m.prices[tick.Symbol] = tick.Close

		for pair, legs := range pairs {
			if !m.shouldClose(pair, legs) {
				continue
			}
			if m.closePair(ctx, pair, legs) {
				delete(pairs, pair)
				m.closedPairs++
			}
		}

		if len(pairs) == 0 {
			return errAllClosed
		}
	}
}

// shouldClose 判断配对是否触及回归目标
// long 配对在入场时比值低于目标，比值回升到目标即平仓；
// short 配对反之。两腿价格都没到位前不判断。
func (m *Monitor) shouldClose(pair string, legs []model.ActiveTrade) bool {
	if time.Now().Before(m.cooldown[pair]) {
		return false
	}

	base, quote := legs[0].Base(), legs[0].Quote()
	priceA, okA := m.prices[base]
	priceB, okB := m.prices[quote]
	if !okA || !okB || priceB <= 0 {
		return false
	}

	ratio := priceA / priceB
	target := legs[0].MeanReversionRatio
	if legs[0].Side == model.SideLong {
		return ratio >= target
	}
	return ratio <= target
}

// closePair 平掉配对的所有在途腿
// 每腿独立重试，成功的腿立即从台账删除；任一腿失败则整个配对
// 进入冷却期后重试，已平掉的腿不会重复下单。
// 返回: 配对是否已全部平掉
func (m *Monitor) closePair(ctx context.Context, pair string, legs []model.ActiveTrade) bool {
	m.logger.Info("价格比触及回归目标，平仓",
		zap.String("pair", pair),
		zap.String("side", string(legs[0].Side)),
		zap.Float64("target_ratio", legs[0].MeanReversionRatio))

	delay := time.Duration(m.tradeCfg.OrderRetryDelayMs) * time.Millisecond
	allClosed := true

	for _, leg := range legs {
		inLedger, err := m.ledger.Has(leg.Pair, leg.Leg)
		if err != nil {
			m.logger.Error("台账查询失败", zap.String("pair", pair), zap.Error(err))
			allClosed = false
			continue
		}
		if !inLedger {
			continue
		}

		amount := decimal.NewFromFloat(leg.Amount)
		err = retry.Do(ctx, m.tradeCfg.OrderRetries, delay, func() error {
			_, placeErr := m.broker.PlaceMarketOrder(ctx, leg.Leg, leg.CloseSide(), amount, true)
			return placeErr
		})
		if err != nil {
			m.logger.Error("平仓下单失败",
				zap.String("pair", pair), zap.String("leg", leg.Leg), zap.Error(err))
			allClosed = false
			continue
		}

		if _, err := m.ledger.Remove(leg.OrderID); err != nil {
			m.logger.Error("台账删除失败",
				zap.String("pair", pair), zap.String("order_id", leg.OrderID), zap.Error(err))
		}
		m.logger.Info("腿已平仓",
			zap.String("pair", pair),
			zap.String("leg", leg.Leg),
			zap.Float64("amount", leg.Amount))
	}

	if !allClosed {
		m.cooldown[pair] = time.Now().Add(time.Duration(m.cfg.RecloseCooldownMs) * time.Millisecond)
	}
	return allClosed
}

// waitReconnect 等待固定重连间隔
// 返回: ctx 是否已取消
func (m *Monitor) waitReconnect(ctx context.Context, delay time.Duration) bool {
	m.setState(StateReconnecting)
	m.reconnects++
	select {
	case <-ctx.Done():
		return true
	case <-time.After(delay):
		return false
	}
}

// setState 更新连接状态并记录变更
func (m *Monitor) setState(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("状态切换",
		zap.String("from", string(m.state)), zap.String("to", string(s)))
	m.state = s
}

// writeSnapshot 写出退出快照
func (m *Monitor) writeSnapshot() {
	if m.stats == nil {
		return
	}
	remaining := 0
	if trades, err := m.ledger.Load(); err == nil {
		remaining = len(groupByPair(trades))
	}
	snap := exitSnapshot{
		State:          m.state,
		ClosedPairs:    m.closedPairs,
		RemainingPairs: remaining,
		Reconnects:     m.reconnects,
		Ticks:          m.ticks,
	}
	if err := m.stats.Write(snap); err != nil {
		m.logger.Warn("退出快照写入失败", zap.Error(err))
	}
}

// groupByPair 将台账记录按配对分组
func groupByPair(trades []model.ActiveTrade) map[string][]model.ActiveTrade {
	pairs := make(map[string][]model.ActiveTrade)
	for _, t := range trades {
		pairs[t.Pair] = append(pairs[t.Pair], t)
	}
	return pairs
}

// legSymbols 收集台账中所有腿的合约标识（去重）
func legSymbols(trades []model.ActiveTrade) []string {
	seen := make(map[string]bool, len(trades))
	var symbols []string
	for _, t := range trades {
		if !seen[t.Leg] {
			seen[t.Leg] = true
			symbols = append(symbols, t.Leg)
		}
	}
	return symbols
}
