// Package bitget 实现 Bitget WebSocket 消息解析。
package bitget

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"reversion-sentinel/internal/core/model"
)

// Parser Bitget K 线推送解析器
type Parser struct{}

// NewParser 创建解析器
func NewParser() *Parser {
	return &Parser{}
}

// IsPong 判断是否为 pong 响应
// Bitget 使用文本 ping/pong 心跳
func IsPong(data []byte) bool {
	return bytes.Equal(data, []byte("pong"))
}

// IsEvent 判断是否为订阅 / 错误响应
// 推送消息没有 event 字段
func IsEvent(data []byte) bool {
	return bytes.Contains(data, []byte(`"event"`))
}

// ParseEvent 解析订阅 / 错误响应
// 返回: error 事件时返回描述性错误
func ParseEvent(data []byte) (*EventResponse, error) {
	var resp EventResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("解析事件响应失败: %w", err)
	}
	if resp.Event == "error" {
		return &resp, fmt.Errorf("订阅被拒绝: code=%d msg=%s", resp.Code, resp.Msg)
	}
	return &resp, nil
}

// Parse 解析 K 线推送为价格事件
// 每条 K 线取收盘价（下标 4）；一次推送可能包含多条 K 线。
// 非 K 线消息返回空切片，不报错。
func (p *Parser) Parse(data []byte) ([]*model.PriceTick, error) {
	var msg CandleMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 K 线推送失败: %w", err)
	}
	if msg.Arg.InstId == "" || len(msg.Data) == 0 {
		return nil, nil
	}

	ticks := make([]*model.PriceTick, 0, len(msg.Data))
	for _, row := range msg.Data {
		if len(row) < 5 {
			return nil, fmt.Errorf("K 线字段不足: %d", len(row))
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("K 线时间戳无效 %q: %w", row[0], err)
		}
		closePx, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("K 线收盘价无效 %q: %w", row[4], err)
		}
		ticks = append(ticks, &model.PriceTick{
			Symbol: msg.Arg.InstId,
			Close:  closePx,
			TsMs:   ts,
		})
	}

	return ticks, nil
}
