// Package bitget 实现 Bitget 交易所的 WebSocket 行情客户端。
// 订阅频道: candle1H（小时 K 线）
// 心跳机制: 文本 ping/pong，默认 25 秒间隔
// 断线重连由上层哨兵负责，这里只提供单次连接的生命周期。
package bitget

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"reversion-sentinel/internal/config"
	"reversion-sentinel/internal/core/model"
)

// candleChannel 订阅的 K 线频道，与流水线的小时线对齐
const candleChannel = "candle1H"

// WSClient Bitget WebSocket 行情客户端
// 实现哨兵的 Transport 接口；Connect / Close 可交替调用多次。
type WSClient struct {
	// cfg 交易所配置
	cfg config.ExchangeConfig
	// logger 日志记录器
	logger *zap.Logger
	// parser 消息解析器
	parser *Parser

	// conn 当前连接，写操作用 connMu 串行化
	conn *websocket.Conn
	// connMu 连接锁
	connMu sync.Mutex
	// pingStop 当前连接的心跳停止信号
	pingStop chan struct{}

	// pending 上次推送中尚未交付的价格事件
	pending []*model.PriceTick
}

// NewWSClient 创建 WebSocket 行情客户端
func NewWSClient(cfg config.ExchangeConfig, logger *zap.Logger) *WSClient {
	return &WSClient{
		cfg:    cfg,
		logger: logger.Named("bitget-ws"),
		parser: NewParser(),
	}
}

// Connect 建立 WebSocket 连接并启动心跳
// 已有连接时先关闭旧连接
func (c *WSClient) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.teardownLocked()

	header := http.Header{}
	header.Set("User-Agent", "reversion-sentinel/1.0")

	dialer := websocket.Dialer{
		HandshakeTimeout: time.Duration(c.cfg.TimeoutMs) * time.Millisecond,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.WsURL, header)
	if err != nil {
		return fmt.Errorf("连接 Bitget WebSocket 失败: %w", err)
	}

	c.conn = conn
	c.pending = nil
	c.pingStop = make(chan struct{})
	go c.pingLoop(c.pingStop)

	c.logger.Info("Bitget WebSocket 连接成功", zap.String("url", c.cfg.WsURL))
	return nil
}

// Subscribe 订阅指定合约的小时 K 线
func (c *WSClient) Subscribe(symbols []string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("WebSocket 未连接")
	}

	args := make([]SubscribeArg, 0, len(symbols))
	for _, symbol := range symbols {
		args = append(args, SubscribeArg{
			InstType: "mc",
			Channel:  candleChannel,
			InstId:   symbol,
		})
	}
	data, err := json.Marshal(SubscribeRequest{Op: "subscribe", Args: args})
	if err != nil {
		return fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("发送订阅请求失败: %w", err)
	}

	c.logger.Info("Bitget 订阅请求已发送", zap.Int("symbols", len(args)))
	return nil
}

// ReadTick 阻塞读取下一个价格事件
// 心跳响应与订阅确认在内部消化；连接断开或 Close 后返回错误。
func (c *WSClient) ReadTick() (*model.PriceTick, error) {
	for {
		if len(c.pending) > 0 {
			tick := c.pending[0]
			c.pending = c.pending[1:]
			return tick, nil
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return nil, fmt.Errorf("WebSocket 未连接")
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("读取 Bitget 消息失败: %w", err)
		}

		if IsPong(data) {
			continue
		}
		if IsEvent(data) {
			if _, err := ParseEvent(data); err != nil {
				c.logger.Warn("Bitget 订阅异常", zap.Error(err))
			}
			continue
		}

		ticks, err := c.parser.Parse(data)
		if err != nil {
			sample := data
			if len(sample) > 200 {
				sample = sample[:200]
			}
			c.logger.Warn("解析 Bitget 消息失败", zap.Error(err), zap.ByteString("data", sample))
			continue
		}
		c.pending = ticks
	}
}

// Close 关闭连接并停止心跳
// 阻塞中的 ReadTick 会随连接关闭返回错误；可重复调用。
func (c *WSClient) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.teardownLocked()
	return nil
}

// teardownLocked 关闭当前连接与心跳，要求持有 connMu
func (c *WSClient) teardownLocked() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// pingLoop 心跳循环，按固定间隔发送文本 ping
func (c *WSClient) pingLoop(stop chan struct{}) {
	ticker := time.NewTicker(time.Duration(c.cfg.PingIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				return
			}
			// gorilla/websocket 不允许并发写，connMu 串行化写入
			err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			c.connMu.Unlock()
			if err != nil {
				c.logger.Warn("发送 Bitget ping 失败", zap.Error(err))
				return
			}
		}
	}
}
