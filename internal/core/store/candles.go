// Package store 实现流水线产物的文件持久化。
// K 线 CSV 加载、交易清单 CSV 读写、在途持仓台账读写都在这里，
// CSV 文件是流水线 → 执行引擎 → 哨兵之间的交接契约。
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"reversion-sentinel/internal/core/model"
)

// LoadSeries 从单个 CSV 文件加载一个合约的收盘价序列
// 文件格式: Time,Open,High,Low,Close,Volume（首行表头）
// 重复时间戳只保留首次出现，输出按时间戳升序
// 参数 path: CSV 文件路径
// 参数 symbol: 合约标识（通常来自文件名）
func LoadSeries(path, symbol string) (*model.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 K 线文件失败: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析 K 线文件失败 %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("K 线文件为空: %s", path)
	}

	tsCol, closeCol, hasHeader := detectColumns(rows[0])
	if hasHeader {
		rows = rows[1:]
	}

	series := &model.PriceSeries{Symbol: symbol}
	seen := make(map[int64]bool, len(rows))
	for i, row := range rows {
		if len(row) <= tsCol || len(row) <= closeCol {
			return nil, fmt.Errorf("K 线文件 %s 第 %d 行列数不足", path, i+1)
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(row[tsCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("K 线文件 %s 第 %d 行时间戳无效: %w", path, i+1, err)
		}
		closePx, err := strconv.ParseFloat(strings.TrimSpace(row[closeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("K 线文件 %s 第 %d 行收盘价无效: %w", path, i+1, err)
		}
		if seen[ts] {
			continue
		}
		seen[ts] = true
		series.TsMs = append(series.TsMs, ts)
		series.Closes = append(series.Closes, closePx)
	}

	sortSeries(series)
	return series, nil
}

// LoadUniverse 加载目录下所有合约的收盘价序列
// 每个 <SYMBOL>.csv 对应一个合约；行数不足 minRows 的合约记录警告后排除。
// 返回: 按合约名升序的序列集合（保证配对枚举顺序确定）
func LoadUniverse(dir string, minRows int, logger *zap.Logger) ([]*model.PriceSeries, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("扫描 K 线目录失败: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("K 线目录 %s 下没有 CSV 文件", dir)
	}

	var universe []*model.PriceSeries
	for _, path := range paths {
		symbol := strings.TrimSuffix(filepath.Base(path), ".csv")
		series, err := LoadSeries(path, symbol)
		if err != nil {
			logger.Warn("K 线文件加载失败，跳过",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if series.Len() < minRows {
			logger.Warn("K 线行数不足，排除该合约",
				zap.String("symbol", symbol),
				zap.Int("rows", series.Len()),
				zap.Int("min_rows", minRows))
			continue
		}
		universe = append(universe, series)
	}

	sort.Slice(universe, func(i, j int) bool {
		return universe[i].Symbol < universe[j].Symbol
	})

	logger.Info("K 线数据加载完成",
		zap.Int("files", len(paths)),
		zap.Int("symbols", len(universe)))

	return universe, nil
}

// detectColumns 由表头行识别时间戳列与收盘价列
// 无法识别表头时按 Time,Open,High,Low,Close,Volume 的固定列序处理
func detectColumns(header []string) (tsCol, closeCol int, hasHeader bool) {
	tsCol, closeCol = 0, 4
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "time", "timestamp", "ts":
			tsCol = i
			hasHeader = true
		case "close":
			closeCol = i
			hasHeader = true
		case "open", "high", "low", "volume":
			hasHeader = true
		}
	}
	return tsCol, closeCol, hasHeader
}

// sortSeries 按时间戳升序整理序列
func sortSeries(s *model.PriceSeries) {
	idx := make([]int, len(s.TsMs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return s.TsMs[idx[i]] < s.TsMs[idx[j]] })

	ts := make([]int64, len(idx))
	closes := make([]float64, len(idx))
	for i, j := range idx {
		ts[i] = s.TsMs[j]
		closes[i] = s.Closes[j]
	}
	s.TsMs = ts
	s.Closes = closes
}
