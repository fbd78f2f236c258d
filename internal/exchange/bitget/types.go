// Package bitget 定义 Bitget 交易所消息类型。
package bitget

// SubscribeRequest Bitget WebSocket 订阅请求
type SubscribeRequest struct {
	// Op 操作类型: subscribe, unsubscribe
	Op string `json:"op"`
	// Args 订阅参数列表
	Args []SubscribeArg `json:"args"`
}

// SubscribeArg 订阅参数
type SubscribeArg struct {
	// InstType 产品类型: mc（U 本位合约）
	InstType string `json:"instType"`
	// Channel 频道名称: candle1H
	Channel string `json:"channel"`
	// InstId 合约标识: BTCUSDT
	InstId string `json:"instId"`
}

// EventResponse Bitget 订阅 / 错误响应
type EventResponse struct {
	// Event 事件类型: subscribe, error
	Event string `json:"event"`
	// Arg 订阅参数
	Arg *SubscribeArg `json:"arg,omitempty"`
	// Code 错误码
	Code int `json:"code,omitempty"`
	// Msg 错误消息
	Msg string `json:"msg,omitempty"`
}

// CandleMessage Bitget K 线推送
// Data 中每条为 [时间戳ms, 开, 高, 低, 收, 成交量] 的字符串数组
type CandleMessage struct {
	// Action 动作类型: snapshot, update
	Action string `json:"action"`
	// Arg 订阅参数（含合约标识）
	Arg SubscribeArg `json:"arg"`
	// Data K 线数据列表
	Data [][]string `json:"data"`
}

// restResponse Bitget REST 通用响应壳
type restResponse struct {
	// Code 业务状态码，"00000" 为成功
	Code string `json:"code"`
	// Msg 错误消息
	Msg string `json:"msg"`
	// Data 业务数据
	Data jsonRaw `json:"data"`
}

// jsonRaw 延迟解析的 JSON 字节
type jsonRaw []byte

// UnmarshalJSON 保留原始字节
func (r *jsonRaw) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// accountData 账户权益响应
type accountData struct {
	// MarginCoin 保证金币种
	MarginCoin string `json:"marginCoin"`
	// Equity 账户权益
	Equity string `json:"equity"`
	// Available 可用余额
	Available string `json:"available"`
}

// contractData 合约规格响应
type contractData struct {
	// Symbol 合约标识
	Symbol string `json:"symbol"`
	// MinTradeNum 最小下单数量（同时是数量步长）
	MinTradeNum string `json:"minTradeNum"`
}

// orderData 下单响应
type orderData struct {
	// OrderId 交易所订单号
	OrderId string `json:"orderId"`
	// ClientOid 自定义订单号
	ClientOid string `json:"clientOid"`
}

// positionData 持仓响应
type positionData struct {
	// Symbol 合约标识
	Symbol string `json:"symbol"`
	// HoldSide 持仓方向: long, short
	HoldSide string `json:"holdSide"`
	// Total 持仓数量
	Total string `json:"total"`
}

// tickerData 行情快照响应
type tickerData struct {
	// Symbol 合约标识
	Symbol string `json:"symbol"`
	// Last 最新成交价
	Last string `json:"last"`
}
