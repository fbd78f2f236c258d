// Package bitget 消息解析测试
package bitget

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_CandlePush(t *testing.T) {
	data := []byte(`{
		"action": "update",
		"arg": {"instType": "mc", "channel": "candle1H", "instId": "BTCUSDT"},
		"data": [
			["1724832000000", "61000", "61500", "60800", "61200.5", "1200"],
			["1724835600000", "61200.5", "61400", "61100", "61350", "800"]
		]
	}`)

	ticks, err := NewParser().Parse(data)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	require.Equal(t, "BTCUSDT", ticks[0].Symbol)
	require.Equal(t, int64(1724832000000), ticks[0].TsMs)
	require.Equal(t, 61200.5, ticks[0].Close)
	require.Equal(t, 61350.0, ticks[1].Close)
}

func TestParse_NonCandleMessage(t *testing.T) {
	// 无 arg.instId 的消息不报错，返回空
	ticks, err := NewParser().Parse([]byte(`{"foo": "bar"}`))
	require.NoError(t, err)
	require.Empty(t, ticks)
}

func TestParse_MalformedCandle(t *testing.T) {
	data := []byte(`{
		"arg": {"instId": "BTCUSDT"},
		"data": [["1724832000000", "61000"]]
	}`)
	_, err := NewParser().Parse(data)
	require.Error(t, err)
}

func TestParse_BadClose(t *testing.T) {
	data := []byte(`{
		"arg": {"instId": "BTCUSDT"},
		"data": [["1724832000000", "1", "2", "3", "abc", "5"]]
	}`)
	_, err := NewParser().Parse(data)
	require.Error(t, err)
}

func TestIsPong(t *testing.T) {
	require.True(t, IsPong([]byte("pong")))
	require.False(t, IsPong([]byte(`{"event":"subscribe"}`)))
}

func TestParseEvent(t *testing.T) {
	resp, err := ParseEvent([]byte(`{"event":"subscribe","arg":{"instId":"BTCUSDT"}}`))
	require.NoError(t, err)
	require.Equal(t, "subscribe", resp.Event)

	_, err = ParseEvent([]byte(`{"event":"error","code":30001,"msg":"channel not exist"}`))
	require.Error(t, err)
}

func TestOrderSideParam(t *testing.T) {
	require.Equal(t, "open_long", orderSideParam("buy", false))
	require.Equal(t, "open_short", orderSideParam("sell", false))
	require.Equal(t, "close_short", orderSideParam("buy", true))
	require.Equal(t, "close_long", orderSideParam("sell", true))
}

func TestSymbolMapping(t *testing.T) {
	require.Equal(t, "BTCUSDT_UMCBL", restSymbol("BTCUSDT"))
	require.Equal(t, "BTCUSDT_UMCBL", restSymbol("BTCUSDT_UMCBL"))
	require.Equal(t, "BTCUSDT", plainSymbol("BTCUSDT_UMCBL"))
	require.Equal(t, "BTCUSDT", plainSymbol("BTCUSDT"))
}
