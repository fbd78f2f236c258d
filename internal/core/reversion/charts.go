// Package reversion 实现均值回归信号引擎。
package reversion

import (
	"reversion-sentinel/internal/output/jsonl"
)

// chartRecord z-score 诊断记录，每个产出信号的配对一条
type chartRecord struct {
	// Pair 配对名，A_B 形式
	Pair string `json:"pair"`
	// ZScores 全窗口 z-score 序列
	ZScores []float64 `json:"z_scores"`
	// Entry 入场阈值，阅读诊断时的参考线
	Entry float64 `json:"entry"`
}

// JSONLCharts 基于 JSONL 文件的诊断输出
type JSONLCharts struct {
	// w 底层异步写入器
	w *jsonl.Writer
	// entry 入场阈值
	entry float64
}

// NewJSONLCharts 创建 JSONL 诊断输出
// 参数 path: 输出文件路径（如 <out>/charts.jsonl）
// 参数 bufferSize: 写入缓冲区大小
// 参数 entry: z-score 入场阈值（记录进每条诊断）
func NewJSONLCharts(path string, bufferSize int, entry float64) (*JSONLCharts, error) {
	w, err := jsonl.NewWriter(path, bufferSize)
	if err != nil {
		return nil, err
	}
	return &JSONLCharts{w: w, entry: entry}, nil
}

// WriteChart 按配对名写出 z-score 序列
func (c *JSONLCharts) WriteChart(pair string, z []float64) error {
	return c.w.Write(chartRecord{Pair: pair, ZScores: z, Entry: c.entry})
}

// Close 关闭底层写入器并落盘
func (c *JSONLCharts) Close() error {
	return c.w.Close()
}
