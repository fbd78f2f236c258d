// Package execution 实现交易清单的对冲开仓引擎。
// 每条意向开两腿等额保证金的市价对冲仓：long 买 A 卖 B，short 卖 A 买 B。
// 两腿必须同时在场——第二腿失败时立即回平第一腿，
// 回平也失败的残腿记入孤腿文件并要求人工介入。
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/model"
	"reversion-sentinel/internal/core/store"
	"reversion-sentinel/internal/util/retry"
)

// Broker 交易所下单接口
// 由 bitget 客户端实现，测试中以假实现替换
type Broker interface {
	// Balance 查询账户 USDT 权益
	Balance(ctx context.Context) (float64, error)
	// MinSize 查询合约的最小下单数量（同时是数量步长）
	MinSize(ctx context.Context, symbol string) (decimal.Decimal, error)
	// SetLeverage 设置合约杠杆倍数
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	// PlaceMarketOrder 市价下单
	// 参数 reduceOnly: true 表示只减仓（平仓单）
	// 返回: 交易所订单号
	PlaceMarketOrder(ctx context.Context, symbol string, side model.OrderSide, amount decimal.Decimal, reduceOnly bool) (string, error)
	// Positions 查询当前全部持仓，key 为合约标识
	Positions(ctx context.Context) (map[string]float64, error)
	// LatestPrice 查询合约最新成交价
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Executor 对冲开仓引擎
type Executor struct {
	// cfg 执行配置
	cfg config.TradeConfig
	// broker 交易所客户端
	broker Broker
	// ledger 在途持仓台账
	ledger *store.Ledger
	// orphans 孤腿记录（与台账同格式）
	orphans *store.Ledger
	// logger 日志记录器
	logger *zap.Logger
}

// Report 执行结果汇总
type Report struct {
	// Placed 成功开出的配对数（两腿都在场）
	Placed int
	// Skipped 因幂等或数量不足跳过的配对数
	Skipped int
	// Failed 开仓失败的配对数（两腿都不在场）
	Failed int
	// Orphaned 留下残腿的配对数（需人工处理）
	Orphaned int
}

// NewExecutor 创建对冲开仓引擎
func NewExecutor(cfg config.TradeConfig, broker Broker, ledger, orphans *store.Ledger, logger *zap.Logger) *Executor {
	return &Executor{
		cfg:     cfg,
		broker:  broker,
		ledger:  ledger,
		orphans: orphans,
		logger:  logger.Named("execution"),
	}
}

// ExecuteList 执行整张交易清单
// 每腿保证金 = 权益 × risk_pct% / (2 × 意向数)，名义价值再乘杠杆。
// 已在台账中的腿直接跳过，同一清单重复执行不会加仓。
func (e *Executor) ExecuteList(ctx context.Context, list *model.TradeList) (*Report, error) {
	report := &Report{}
	if list.Len() == 0 {
		e.logger.Info("交易清单为空，无事可做")
		return report, nil
	}

	balance, err := e.broker.Balance(ctx)
	if err != nil {
		return report, fmt.Errorf("查询账户权益失败: %w", err)
	}
	marginPerLeg := balance * e.cfg.RiskPct / 100 / float64(2*list.Len())
	if marginPerLeg <= 0 {
		return report, fmt.Errorf("单腿保证金为零: 权益 %.2f, risk_pct %.2f", balance, e.cfg.RiskPct)
	}

	e.logger.Info("开始执行交易清单",
		zap.String("run_id", list.RunID),
		zap.Int("intents", list.Len()),
		zap.Float64("balance", balance),
		zap.Float64("margin_per_leg", marginPerLeg))

	for _, intent := range list.Intents {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("执行被取消: %w", err)
		}
		e.executeIntent(ctx, intent, marginPerLeg, report)
	}

	e.logger.Info("交易清单执行完成",
		zap.Int("placed", report.Placed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("orphaned", report.Orphaned))

	return report, nil
}

// executeIntent 执行单条意向：先腿 A 后腿 B
// 腿 B 失败时回平腿 A；单条意向的失败不中断后续意向
func (e *Executor) executeIntent(ctx context.Context, intent model.TradeIntent, marginPerLeg float64, report *Report) {
	pair := intent.PairName()

	hasA, err := e.ledger.Has(pair, intent.SymbolA)
	if err != nil {
		e.logger.Error("台账查询失败", zap.String("pair", pair), zap.Error(err))
		report.Failed++
		return
	}
	hasB, err := e.ledger.Has(pair, intent.SymbolB)
	if err != nil {
		e.logger.Error("台账查询失败", zap.String("pair", pair), zap.Error(err))
		report.Failed++
		return
	}
	if hasA && hasB {
		e.logger.Info("配对已在台账，跳过", zap.String("pair", pair))
		report.Skipped++
		return
	}
	if hasA != hasB {
		// 上次运行留下的单腿：不自动补齐，交由人工核对
		e.logger.Error("台账中存在单腿记录，跳过该配对",
			zap.String("pair", pair),
			zap.Bool("has_a", hasA), zap.Bool("has_b", hasB))
		report.Orphaned++
		return
	}

	legA, err := e.openLeg(ctx, intent, intent.SymbolA, marginPerLeg)
	if err != nil {
		e.logger.Error("第一腿开仓失败，配对放弃",
			zap.String("pair", pair), zap.String("leg", intent.SymbolA), zap.Error(err))
		report.Failed++
		return
	}

	legB, err := e.openLeg(ctx, intent, intent.SymbolB, marginPerLeg)
	if err != nil {
		e.logger.Error("第二腿开仓失败，回平第一腿",
			zap.String("pair", pair), zap.String("leg", intent.SymbolB), zap.Error(err))
		if flattenErr := e.flattenLeg(ctx, legA); flattenErr != nil {
			e.logger.Error("第一腿回平失败，记入孤腿文件",
				zap.String("pair", pair), zap.String("leg", legA.Leg),
				zap.String("order_id", legA.OrderID), zap.Error(flattenErr))
			if orphanErr := e.orphans.Append(legA); orphanErr != nil {
				e.logger.Error("孤腿记录写入失败", zap.String("pair", pair), zap.Error(orphanErr))
			}
			report.Orphaned++
			return
		}
		report.Failed++
		return
	}

	if err := e.ledger.Append(legA); err != nil {
		e.logger.Error("台账写入失败", zap.String("pair", pair), zap.Error(err))
	}
	if err := e.ledger.Append(legB); err != nil {
		e.logger.Error("台账写入失败", zap.String("pair", pair), zap.Error(err))
	}

	e.logger.Info("配对开仓完成",
		zap.String("pair", pair),
		zap.String("side", string(intent.Side)),
		zap.Float64("amount_a", legA.Amount),
		zap.Float64("amount_b", legB.Amount))
	report.Placed++
}

// openLeg 开出一腿：设杠杆、按保证金与步长计算数量、带重试下单
func (e *Executor) openLeg(ctx context.Context, intent model.TradeIntent, symbol string, marginPerLeg float64) (model.ActiveTrade, error) {
	var trade model.ActiveTrade

	amount, err := e.sizeLeg(ctx, symbol, marginPerLeg)
	if err != nil {
		return trade, err
	}

	if err := e.broker.SetLeverage(ctx, symbol, e.cfg.Leverage); err != nil {
		return trade, fmt.Errorf("设置杠杆失败: %w", err)
	}

	side := intent.LegSide(symbol)
	delay := time.Duration(e.cfg.OrderRetryDelayMs) * time.Millisecond

	var orderID string
	err = retry.Do(ctx, e.cfg.OrderRetries, delay, func() error {
		id, placeErr := e.broker.PlaceMarketOrder(ctx, symbol, side, amount, false)
		if placeErr != nil {
			return placeErr
		}
		orderID = id
		return nil
	})
	if err != nil {
		return trade, fmt.Errorf("下单失败: %w", err)
	}

	amountF, _ := amount.Float64()
	trade = model.ActiveTrade{
		Pair:               intent.PairName(),
		Leg:                symbol,
		LegSide:            side,
		Side:               intent.Side,
		OrderID:            orderID,
		Amount:             amountF,
		MeanReversionRatio: intent.MeanReversionRatio,
	}
	return trade, nil
}

// sizeLeg 计算一腿的下单数量
// 数量 = 保证金 × 杠杆 / 最新价，向下取整到最小下单步长
func (e *Executor) sizeLeg(ctx context.Context, symbol string, marginPerLeg float64) (decimal.Decimal, error) {
	price, err := e.broker.LatestPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("查询最新价失败: %w", err)
	}
	if price <= 0 {
		return decimal.Zero, fmt.Errorf("最新价无效: %f", price)
	}

	step, err := e.broker.MinSize(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("查询最小下单数量失败: %w", err)
	}
	if step.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("最小下单数量无效: %s", step)
	}

	notional := decimal.NewFromFloat(marginPerLeg).Mul(decimal.NewFromInt(int64(e.cfg.Leverage)))
	raw := notional.Div(decimal.NewFromFloat(price))

	// 向下取整到步长的整数倍
	amount := raw.Div(step).Floor().Mul(step)
	if amount.LessThan(step) {
		return decimal.Zero, fmt.Errorf("数量 %s 低于最小下单数量 %s", raw, step)
	}
	return amount, nil
}

// flattenLeg 以只减仓市价单回平一腿，带重试
func (e *Executor) flattenLeg(ctx context.Context, trade model.ActiveTrade) error {
	delay := time.Duration(e.cfg.OrderRetryDelayMs) * time.Millisecond
	amount := decimal.NewFromFloat(trade.Amount)
	return retry.Do(ctx, e.cfg.OrderRetries, delay, func() error {
		_, err := e.broker.PlaceMarketOrder(ctx, trade.Leg, trade.CloseSide(), amount, true)
		return err
	})
}

// Reconcile 启动对账：台账与交易所实际持仓互相校验
// 台账有、交易所无 ⇒ 台账行移入孤腿文件，交由人工核对；
// 交易所有、台账无 ⇒ 记为未受管敞口，不代为管理。
func (e *Executor) Reconcile(ctx context.Context) error {
	trades, err := e.ledger.Load()
	if err != nil {
		return fmt.Errorf("读取台账失败: %w", err)
	}
	positions, err := e.broker.Positions(ctx)
	if err != nil {
		return fmt.Errorf("查询持仓失败: %w", err)
	}

	tracked := make(map[string]bool, len(trades))
	for _, t := range trades {
		tracked[t.Leg] = true
		if _, ok := positions[t.Leg]; ok {
			continue
		}
		e.logger.Error("台账记录在交易所无对应持仓，移入孤腿文件",
			zap.String("pair", t.Pair),
			zap.String("leg", t.Leg),
			zap.String("order_id", t.OrderID))
		if err := e.orphans.Append(t); err != nil {
			return fmt.Errorf("孤腿记录写入失败: %w", err)
		}
		if _, err := e.ledger.Remove(t.OrderID); err != nil {
			return fmt.Errorf("移除台账记录失败: %w", err)
		}
	}

	for symbol, size := range positions {
		if !tracked[symbol] {
			e.logger.Error("交易所存在未入台账的持仓，不予管理",
				zap.String("symbol", symbol),
				zap.Float64("size", size))
		}
	}

	return nil
}
