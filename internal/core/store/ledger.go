// Package store 实现流水线产物的文件持久化。
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"reversion-sentinel/internal/core/model"
)

// ledgerHeader 在途持仓台账 CSV 表头，每腿一行
var ledgerHeader = []string{"PAIR", "LEG", "LEG_SIDE", "SIDE", "TRADE_ID", "AMOUNT", "MEAN_REVERSION_RATIO"}

// Ledger 在途持仓台账
// 执行引擎在成交后追加记录，哨兵在确认平仓后删除对应行。
// 孤腿文件（orphans.csv）复用同一格式，用独立 Ledger 实例操作。
type Ledger struct {
	// path 台账文件路径
	path string

	mu sync.Mutex
}

// NewLedger 创建台账访问器
// 参数 path: 台账 CSV 路径（如 <out>/ledger.csv）
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Path 返回台账文件路径
func (l *Ledger) Path() string {
	return l.path
}

// InitIfMissing 台账文件不存在时创建仅含表头的空台账
func (l *Ledger) InitIfMissing() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("检查台账文件失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("创建台账目录失败: %w", err)
	}
	return l.writeAll(nil)
}

// Append 追加一条持仓记录（一腿）
func (l *Ledger) Append(t model.ActiveTrade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	trades, err := l.readAll()
	if err != nil {
		return err
	}
	return l.writeAll(append(trades, t))
}

// Load 读取全部在途持仓
// 文件不存在视为空台账
func (l *Ledger) Load() ([]model.ActiveTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAll()
}

// Remove 删除指定订单号的持仓记录
// 返回: 是否确实删除了记录
func (l *Ledger) Remove(orderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	trades, err := l.readAll()
	if err != nil {
		return false, err
	}

	kept := trades[:0]
	removed := false
	for _, t := range trades {
		if t.OrderID == orderID {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return false, nil
	}
	return true, l.writeAll(kept)
}

// Has 判断指定配对的指定腿是否已有在途记录
// 执行引擎用于幂等跳过已成交的腿
func (l *Ledger) Has(pair, leg string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	trades, err := l.readAll()
	if err != nil {
		return false, err
	}
	for _, t := range trades {
		if t.Pair == pair && t.Leg == leg {
			return true, nil
		}
	}
	return false, nil
}

// readAll 读取台账全部记录，文件不存在返回空
func (l *Ledger) readAll() ([]model.ActiveTrade, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("打开台账失败: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析台账失败 %s: %w", l.path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if !isLedgerHeader(rows[0]) {
		return nil, fmt.Errorf("台账表头不匹配: %s", l.path)
	}

	var trades []model.ActiveTrade
	for i, row := range rows[1:] {
		if len(row) < len(ledgerHeader) {
			return nil, fmt.Errorf("台账 %s 第 %d 行列数不足", l.path, i+2)
		}
		amount, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("台账 %s 第 %d 行数量无效: %w", l.path, i+2, err)
		}
		ratio, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return nil, fmt.Errorf("台账 %s 第 %d 行回归比无效: %w", l.path, i+2, err)
		}
		trades = append(trades, model.ActiveTrade{
			Pair:               row[0],
			Leg:                row[1],
			LegSide:            model.OrderSide(row[2]),
			Side:               model.Side(row[3]),
			OrderID:            row[4],
			Amount:             amount,
			MeanReversionRatio: ratio,
		})
	}

	return trades, nil
}

// writeAll 以表头 + 全部记录重写台账文件
// 先写临时文件再原子替换，避免中途崩溃留下半截台账
func (l *Ledger) writeAll(trades []model.ActiveTrade) error {
	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("创建台账临时文件失败: %w", err)
	}

	w := csv.NewWriter(f)
	writeErr := w.Write(ledgerHeader)
	for _, t := range trades {
		if writeErr != nil {
			break
		}
		writeErr = w.Write([]string{
			t.Pair,
			t.Leg,
			string(t.LegSide),
			string(t.Side),
			t.OrderID,
			strconv.FormatFloat(t.Amount, 'f', -1, 64),
			strconv.FormatFloat(t.MeanReversionRatio, 'f', 5, 64),
		})
	}
	w.Flush()
	if writeErr == nil {
		writeErr = w.Error()
	}
	if err := f.Close(); writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("写入台账失败: %w", writeErr)
	}

	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("替换台账文件失败: %w", err)
	}
	return nil
}

// isLedgerHeader 校验台账表头行（大小写不敏感）
func isLedgerHeader(row []string) bool {
	if len(row) != len(ledgerHeader) {
		return false
	}
	for i, col := range row {
		if !strings.EqualFold(strings.TrimSpace(col), ledgerHeader[i]) {
			return false
		}
	}
	return true
}
