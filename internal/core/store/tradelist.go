// Package store 实现流水线产物的文件持久化。
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reversion-sentinel/internal/core/model"
)

// tradeListHeader 交易清单 CSV 表头
var tradeListHeader = []string{"PAIR", "SIDE", "HALF_LIFE", "MEAN_REVERSION_RATIO", "TRADE_PRICE_RATIO"}

// SaveTradeList 将交易清单写为带时间戳的 CSV 文件
// 文件名: trades_<YYYYMMDD_HHMMSS>.csv，时间取 list.CreatedAt
// 返回: 写出的文件完整路径
func SaveTradeList(dir string, list *model.TradeList) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("trades_%s.csv", list.CreatedAt.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("创建交易清单文件失败: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tradeListHeader); err != nil {
		return "", fmt.Errorf("写入交易清单表头失败: %w", err)
	}
	for _, intent := range list.Intents {
		row := []string{
			intent.PairName(),
			string(intent.Side),
			strconv.FormatFloat(intent.HalfLifeHours, 'f', 2, 64),
			strconv.FormatFloat(intent.MeanReversionRatio, 'f', 5, 64),
			strconv.FormatFloat(intent.EntryPriceRatio, 'f', 5, 64),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("写入交易意向失败: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("交易清单落盘失败: %w", err)
	}

	return path, nil
}

// LoadTradeList 从 CSV 文件读回交易清单
// RunID 由文件名时间戳部分代替（清单文件本身不带 RunID）
func LoadTradeList(path string) (*model.TradeList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开交易清单失败: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析交易清单失败 %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("交易清单为空: %s", path)
	}
	if !isTradeListHeader(rows[0]) {
		return nil, fmt.Errorf("交易清单表头不匹配: %s", path)
	}

	list := &model.TradeList{
		RunID:     strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "trades_"), ".csv"),
		CreatedAt: time.Now(),
	}
	for i, row := range rows[1:] {
		if len(row) < len(tradeListHeader) {
			return nil, fmt.Errorf("交易清单 %s 第 %d 行列数不足", path, i+2)
		}
		symA, symB, ok := strings.Cut(row[0], "/")
		if !ok {
			return nil, fmt.Errorf("交易清单 %s 第 %d 行配对名无效: %s", path, i+2, row[0])
		}
		side := model.Side(row[1])
		if side != model.SideLong && side != model.SideShort {
			return nil, fmt.Errorf("交易清单 %s 第 %d 行方向无效: %s", path, i+2, row[1])
		}
		hl, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("交易清单 %s 第 %d 行半衰期无效: %w", path, i+2, err)
		}
		ratio, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("交易清单 %s 第 %d 行回归比无效: %w", path, i+2, err)
		}
		entry, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("交易清单 %s 第 %d 行入场比无效: %w", path, i+2, err)
		}
		list.Intents = append(list.Intents, model.TradeIntent{
			SymbolA:            symA,
			SymbolB:            symB,
			Side:               side,
			HalfLifeHours:      hl,
			MeanReversionRatio: ratio,
			EntryPriceRatio:    entry,
		})
	}

	return list, nil
}

// isTradeListHeader 校验表头行（大小写不敏感）
func isTradeListHeader(row []string) bool {
	if len(row) != len(tradeListHeader) {
		return false
	}
	for i, col := range row {
		if !strings.EqualFold(strings.TrimSpace(col), tradeListHeader[i]) {
			return false
		}
	}
	return true
}
