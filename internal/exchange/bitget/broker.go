// Package bitget 实现 Bitget 交易所的 REST 交易客户端。
// 签名机制: ACCESS-SIGN = base64(HMAC-SHA256(secret, ts + method + path + body))
// 合约产品: U 本位永续（umcbl），保证金币种 USDT
package bitget

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/model"
)

const (
	// productType U 本位永续合约产品类型
	productType = "umcbl"
	// marginCoin 保证金币种
	marginCoin = "USDT"
	// symbolSuffix REST 合约标识后缀（BTCUSDT → BTCUSDT_UMCBL）
	symbolSuffix = "_UMCBL"
	// codeOK 业务成功状态码
	codeOK = "00000"
)

// Client Bitget REST 交易客户端
// 实现执行引擎的 Broker 接口
type Client struct {
	// cfg 交易所配置
	cfg config.ExchangeConfig
	// httpClient HTTP 客户端
	httpClient *http.Client
	// logger 日志记录器
	logger *zap.Logger

	// minSizes 合约 → 最小下单数量缓存
	minSizes map[string]decimal.Decimal
	// minSizesMu 缓存锁
	minSizesMu sync.Mutex
}

// NewClient 创建 REST 交易客户端
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		logger:   logger.Named("bitget-rest"),
		minSizes: make(map[string]decimal.Decimal),
	}
}

// Balance 查询账户 USDT 权益
func (c *Client) Balance(ctx context.Context) (float64, error) {
	raw, err := c.request(ctx, http.MethodGet, "/api/mix/v1/account/accounts?productType="+productType, nil)
	if err != nil {
		return 0, err
	}

	var accounts []accountData
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return 0, fmt.Errorf("解析账户响应失败: %w", err)
	}
	for _, acct := range accounts {
		if acct.MarginCoin != marginCoin {
			continue
		}
		equity, err := strconv.ParseFloat(acct.Equity, 64)
		if err != nil {
			return 0, fmt.Errorf("账户权益无效 %q: %w", acct.Equity, err)
		}
		return equity, nil
	}
	return 0, fmt.Errorf("账户响应中没有 %s 保证金账户", marginCoin)
}

// MinSize 查询合约的最小下单数量
// 合约规格首次查询后全量缓存
func (c *Client) MinSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	c.minSizesMu.Lock()
	if size, ok := c.minSizes[symbol]; ok {
		c.minSizesMu.Unlock()
		return size, nil
	}
	c.minSizesMu.Unlock()

	raw, err := c.request(ctx, http.MethodGet, "/api/mix/v1/market/contracts?productType="+productType, nil)
	if err != nil {
		return decimal.Zero, err
	}

	var contracts []contractData
	if err := json.Unmarshal(raw, &contracts); err != nil {
		return decimal.Zero, fmt.Errorf("解析合约规格失败: %w", err)
	}

	c.minSizesMu.Lock()
	for _, ct := range contracts {
		size, err := decimal.NewFromString(ct.MinTradeNum)
		if err != nil {
			continue
		}
		c.minSizes[plainSymbol(ct.Symbol)] = size
	}
	size, ok := c.minSizes[symbol]
	c.minSizesMu.Unlock()

	if !ok {
		return decimal.Zero, fmt.Errorf("合约规格中没有 %s", symbol)
	}
	return size, nil
}

// SetLeverage 设置合约杠杆倍数（全仓）
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	body := map[string]string{
		"symbol":     restSymbol(symbol),
		"marginCoin": marginCoin,
		"leverage":   strconv.Itoa(leverage),
	}
	_, err := c.request(ctx, http.MethodPost, "/api/mix/v1/account/setLeverage", body)
	if err != nil {
		return fmt.Errorf("设置 %s 杠杆失败: %w", symbol, err)
	}
	return nil
}

// PlaceMarketOrder 市价下单
// buy 开多 / sell 开空；reduceOnly 时 buy 平空 / sell 平多
// 每单携带唯一 clientOid，交易所侧据此去重
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side model.OrderSide, amount decimal.Decimal, reduceOnly bool) (string, error) {
	body := map[string]string{
		"symbol":     restSymbol(symbol),
		"marginCoin": marginCoin,
		"size":       amount.String(),
		"side":       orderSideParam(side, reduceOnly),
		"orderType":  "market",
		"clientOid":  uuid.NewString(),
	}
	raw, err := c.request(ctx, http.MethodPost, "/api/mix/v1/order/placeOrder", body)
	if err != nil {
		return "", fmt.Errorf("下单失败 %s %s: %w", symbol, side, err)
	}

	var order orderData
	if err := json.Unmarshal(raw, &order); err != nil {
		return "", fmt.Errorf("解析下单响应失败: %w", err)
	}
	if order.OrderId == "" {
		return "", fmt.Errorf("下单响应缺少订单号")
	}

	c.logger.Info("订单已提交",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("size", amount.String()),
		zap.Bool("reduce_only", reduceOnly),
		zap.String("order_id", order.OrderId))
	return order.OrderId, nil
}

// Positions 查询当前全部非零持仓
// 返回: 合约标识 → 持仓数量（空头为负）
func (c *Client) Positions(ctx context.Context) (map[string]float64, error) {
	path := "/api/mix/v1/position/allPosition?productType=" + productType + "&marginCoin=" + marginCoin
	raw, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var positions []positionData
	if err := json.Unmarshal(raw, &positions); err != nil {
		return nil, fmt.Errorf("解析持仓响应失败: %w", err)
	}

	out := make(map[string]float64, len(positions))
	for _, pos := range positions {
		total, err := strconv.ParseFloat(pos.Total, 64)
		if err != nil || total == 0 {
			continue
		}
		if pos.HoldSide == "short" {
			total = -total
		}
		out[plainSymbol(pos.Symbol)] = total
	}
	return out, nil
}

// LatestPrice 查询合约最新成交价
func (c *Client) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	raw, err := c.request(ctx, http.MethodGet, "/api/mix/v1/market/ticker?symbol="+restSymbol(symbol), nil)
	if err != nil {
		return 0, err
	}

	var ticker tickerData
	if err := json.Unmarshal(raw, &ticker); err != nil {
		return 0, fmt.Errorf("解析行情响应失败: %w", err)
	}
	price, err := strconv.ParseFloat(ticker.Last, 64)
	if err != nil {
		return 0, fmt.Errorf("最新价无效 %q: %w", ticker.Last, err)
	}
	return price, nil
}

// request 发送签名请求并拆出业务数据
// 参数 path: 带查询串的请求路径
// 参数 body: POST 请求体，GET 传 nil
func (c *Client) request(ctx context.Context, method, path string, body any) (jsonRaw, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.RestURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ACCESS-KEY", c.cfg.APIKey)
	req.Header.Set("ACCESS-SIGN", c.sign(ts, method, path, payload))
	req.Header.Set("ACCESS-TIMESTAMP", ts)
	req.Header.Set("ACCESS-PASSPHRASE", c.cfg.Passphrase)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败 %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(data))
	}

	var rest restResponse
	if err := json.Unmarshal(data, &rest); err != nil {
		return nil, fmt.Errorf("解析响应壳失败: %w", err)
	}
	if rest.Code != codeOK {
		return nil, fmt.Errorf("业务错误 code=%s msg=%s", rest.Code, rest.Msg)
	}
	return rest.Data, nil
}

// sign 计算请求签名
func (c *Client) sign(ts, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(ts))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// orderSideParam 将腿方向映射为 Bitget 订单方向参数
func orderSideParam(side model.OrderSide, reduceOnly bool) string {
	if reduceOnly {
		if side == model.OrderBuy {
			return "close_short"
		}
		return "close_long"
	}
	if side == model.OrderBuy {
		return "open_long"
	}
	return "open_short"
}

// restSymbol 将内部合约标识转为 REST 标识（BTCUSDT → BTCUSDT_UMCBL）
func restSymbol(symbol string) string {
	if strings.Contains(symbol, "_") {
		return symbol
	}
	return symbol + symbolSuffix
}

// plainSymbol 将 REST 标识还原为内部合约标识
func plainSymbol(symbol string) string {
	if i := strings.IndexByte(symbol, '_'); i >= 0 {
		return symbol[:i]
	}
	return symbol
}

// truncate 截断响应体用于错误消息
func truncate(data []byte) string {
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}
