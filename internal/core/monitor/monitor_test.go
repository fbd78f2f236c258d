// Package monitor 实时哨兵测试
package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/model"
	"reversion-sentinel/internal/core/store"
)

// fakeTransport 脚本化假行情：每次连接按脚本推完一段后断开
type fakeTransport struct {
	mu       sync.Mutex
	sessions [][]*model.PriceTick
	session  int
	idx      int

	connects   int
	subscribed [][]string
	// onConnect 连接后回调（连接序号从 1 开始），用于模拟外部改动台账
	onConnect func(connects int)
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	f.session = f.connects - 1
	f.idx = 0
	cb := f.onConnect
	n := f.connects
	f.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return nil
}

func (f *fakeTransport) Subscribe(symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, symbols)
	return nil
}

func (f *fakeTransport) ReadTick() (*model.PriceTick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session >= len(f.sessions) || f.idx >= len(f.sessions[f.session]) {
		return nil, errors.New("连接断开")
	}
	tick := f.sessions[f.session][f.idx]
	f.idx++
	return tick, nil
}

func (f *fakeTransport) Close() error { return nil }

// fakeCloser 记录平仓单的假下单端
type fakeCloser struct {
	mu     sync.Mutex
	orders []placedClose
	fail   bool
	nextID int
}

type placedClose struct {
	symbol string
	side   model.OrderSide
	amount decimal.Decimal
}

func (f *fakeCloser) PlaceMarketOrder(ctx context.Context, symbol string, side model.OrderSide, amount decimal.Decimal, reduceOnly bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, placedClose{symbol: symbol, side: side, amount: amount})
	if f.fail {
		return "", errors.New("平仓被拒")
	}
	f.nextID++
	return "close-" + string(rune('0'+f.nextID)), nil
}

func tick(symbol string, price float64) *model.PriceTick {
	return &model.PriceTick{Symbol: symbol, Close: price, TsMs: time.Now().UnixMilli()}
}

// seedLedger 写入一对 short 持仓：卖 A 5 张、买 B 10 张，回归比 1.5
func seedLedger(t *testing.T) *store.Ledger {
	t.Helper()
	l := store.NewLedger(filepath.Join(t.TempDir(), "ledger.csv"))
	require.NoError(t, l.InitIfMissing())
	require.NoError(t, l.Append(model.ActiveTrade{
		Pair: "AAAUSDT/BBBUSDT", Leg: "AAAUSDT", LegSide: model.OrderSell,
		Side: model.SideShort, OrderID: "o-1", Amount: 5, MeanReversionRatio: 1.5,
	}))
	require.NoError(t, l.Append(model.ActiveTrade{
		Pair: "AAAUSDT/BBBUSDT", Leg: "BBBUSDT", LegSide: model.OrderBuy,
		Side: model.SideShort, OrderID: "o-2", Amount: 10, MeanReversionRatio: 1.5,
	}))
	return l
}

func monitorCfg() (config.MonitorConfig, config.TradeConfig) {
	return config.MonitorConfig{ReconnectDelayMs: 1, RecloseCooldownMs: 60000},
		config.TradeConfig{RiskPct: 10, Leverage: 10, OrderRetries: 3, OrderRetryDelayMs: 0}
}

func TestRun_ClosesPairAtTarget(t *testing.T) {
	ledger := seedLedger(t)
	transport := &fakeTransport{sessions: [][]*model.PriceTick{{
		tick("AAAUSDT", 200), // 比值 2.0 > 1.5，不平
		tick("BBBUSDT", 100),
		tick("AAAUSDT", 140), // 比值 1.4 ≤ 1.5，触发平仓
		tick("AAAUSDT", 130), // 已平掉后不应再下单
	}}}
	closer := &fakeCloser{}

	mc, tc := monitorCfg()
	m := NewMonitor(mc, tc, transport, closer, ledger, nil, zap.NewNop())

	err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateTerminated, m.State())

	// 两腿各平一次：A 买回、B 卖出
	require.Len(t, closer.orders, 2)
	require.Equal(t, "AAAUSDT", closer.orders[0].symbol)
	require.Equal(t, model.OrderBuy, closer.orders[0].side)
	require.True(t, closer.orders[0].amount.Equal(decimal.RequireFromString("5")))
	require.Equal(t, "BBBUSDT", closer.orders[1].symbol)
	require.Equal(t, model.OrderSell, closer.orders[1].side)

	trades, err := ledger.Load()
	require.NoError(t, err)
	require.Empty(t, trades)

	// 订阅了两条腿
	require.Len(t, transport.subscribed, 1)
	require.ElementsMatch(t, []string{"AAAUSDT", "BBBUSDT"}, transport.subscribed[0])
}

func TestRun_LongPairClosesAboveTarget(t *testing.T) {
	l := store.NewLedger(filepath.Join(t.TempDir(), "ledger.csv"))
	require.NoError(t, l.InitIfMissing())
	require.NoError(t, l.Append(model.ActiveTrade{
		Pair: "AAAUSDT/BBBUSDT", Leg: "AAAUSDT", LegSide: model.OrderBuy,
		Side: model.SideLong, OrderID: "o-1", Amount: 5, MeanReversionRatio: 1.5,
	}))
	require.NoError(t, l.Append(model.ActiveTrade{
		Pair: "AAAUSDT/BBBUSDT", Leg: "BBBUSDT", LegSide: model.OrderSell,
		Side: model.SideLong, OrderID: "o-2", Amount: 10, MeanReversionRatio: 1.5,
	}))

	transport := &fakeTransport{sessions: [][]*model.PriceTick{{
		tick("AAAUSDT", 140), // 比值 1.4 < 1.5，long 不平
		tick("BBBUSDT", 100),
		tick("AAAUSDT", 160), // 比值 1.6 ≥ 1.5，触发平仓
	}}}
	closer := &fakeCloser{}

	mc, tc := monitorCfg()
	m := NewMonitor(mc, tc, transport, closer, l, nil, zap.NewNop())
	require.NoError(t, m.Run(context.Background()))
	require.Len(t, closer.orders, 2)
	// long 开仓买 A ⇒ 平仓卖 A
	require.Equal(t, model.OrderSell, closer.orders[0].side)
}

func TestRun_ReloadsLedgerOnReconnect(t *testing.T) {
	ledger := seedLedger(t)
	transport := &fakeTransport{sessions: [][]*model.PriceTick{
		{tick("AAAUSDT", 200), tick("BBBUSDT", 100)}, // 未触发平仓即断开
	}}
	// 第二次连接前台账被外部清空（如人工平仓）
	transport.onConnect = func(connects int) {
		if connects == 2 {
			_, _ = ledger.Remove("o-1")
			_, _ = ledger.Remove("o-2")
		}
	}
	closer := &fakeCloser{}

	mc, tc := monitorCfg()
	m := NewMonitor(mc, tc, transport, closer, ledger, nil, zap.NewNop())
	require.NoError(t, m.Run(context.Background()))
	require.Equal(t, 2, transport.connects)
	require.Empty(t, closer.orders)
}

func TestRun_CloseFailureEntersCooldown(t *testing.T) {
	ledger := seedLedger(t)
	transport := &fakeTransport{sessions: [][]*model.PriceTick{
		{
			tick("AAAUSDT", 140), // 触发平仓，但下单全部失败
			tick("BBBUSDT", 100),
			tick("AAAUSDT", 139), // 冷却期内不得再次尝试
		},
		{tick("AAAUSDT", 140), tick("BBBUSDT", 100)}, // 重连后恢复成功
	}}
	closer := &fakeCloser{fail: true}
	transport.onConnect = func(connects int) {
		if connects == 2 {
			closer.mu.Lock()
			closer.fail = false
			closer.mu.Unlock()
		}
	}

	mc, tc := monitorCfg()
	m := NewMonitor(mc, tc, transport, closer, ledger, nil, zap.NewNop())
	require.NoError(t, m.Run(context.Background()))

	// 会话 1：两腿各重试 3 次 = 6 单；会话 2：两腿各 1 单
	require.Len(t, closer.orders, 8)

	trades, err := ledger.Load()
	require.NoError(t, err)
	require.Empty(t, trades)
}

// blockingTransport 永远阻塞在 ReadTick，直到 Close 被调用
type blockingTransport struct {
	mu       sync.Mutex
	released chan struct{}
	closed   bool
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{released: make(chan struct{})}
}

func (b *blockingTransport) Connect(ctx context.Context) error { return nil }

func (b *blockingTransport) Subscribe(symbols []string) error { return nil }

func (b *blockingTransport) ReadTick() (*model.PriceTick, error) {
	<-b.released
	return nil, errors.New("连接已关闭")
}

func (b *blockingTransport) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.released)
	}
	return nil
}

func TestRun_ShutdownUnblocksRead(t *testing.T) {
	ledger := seedLedger(t)
	transport := newBlockingTransport()
	closer := &fakeCloser{}

	mc, tc := monitorCfg()
	m := NewMonitor(mc, tc, transport, closer, ledger, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("取消后哨兵未退出")
	}
	require.Equal(t, StateTerminated, m.State())

	// 台账保持原样
	trades, err := ledger.Load()
	require.NoError(t, err)
	require.Len(t, trades, 2)
}
