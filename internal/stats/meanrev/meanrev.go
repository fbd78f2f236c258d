// Package meanrev 实现均值回归统计量。
// 价差 z-score、AR(1) 半衰期与回归目标价格比。
package meanrev

import (
	"math"

	"reversion-sentinel/internal/stats/regress"
)

// slopeTol AR(1) 斜率与零不可区分的容差
// 斜率过小半衰期无定义（非均值回归），必须返回"无信号"
const slopeTol = 1e-8

// Spread 计算对齐后两条价格序列的对数比价差
// spread_i = log(a_i / b_i)；零价或负价会产生非有限值，
// 由各统计量按自身语义处理（z-score 自然变为 NaN，半衰期拟合先剔除）
func Spread(a, b []float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Log(a[i] / b[i])
	}
	return out
}

// ZScores 计算序列的 z-score 序列 (v - mean) / std（样本标准差）
// 零方差时除零产生 NaN/±Inf；调用方的阈值门必须把非有限值视为未通过
func ZScores(spread []float64) []float64 {
	n := len(spread)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	var sum float64
	for _, v := range spread {
		sum += v
	}
	mean := sum / float64(n)

	var ss float64
	for _, v := range spread {
		d := v - mean
		ss += d * d
	}
	var std float64
	if n > 1 {
		std = math.Sqrt(ss / float64(n-1))
	}

	for i, v := range spread {
		out[i] = (v - mean) / std
	}
	return out
}

// LatestZ 返回序列最后一个 z-score
// 空序列返回 NaN
func LatestZ(spread []float64) float64 {
	z := ZScores(spread)
	if len(z) == 0 {
		return math.NaN()
	}
	return z[len(z)-1]
}

// PassesGate 判断最新 z-score 是否通过入场门 |z| ≥ threshold
// NaN/±Inf 一律视为未通过，零方差价差绝不能误触发
func PassesGate(z, threshold float64) bool {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return false
	}
	return math.Abs(z) >= threshold
}

// HalfLife 以 AR(1) 回归估计均值回归半衰期
// 拟合 Δspread_t = α + β·spread_{t-1}，滞后特征首位补零；
// 半衰期 = -ln(2)/β，保留 2 位小数。
// 返回: (半衰期, true)；β 与零不可区分、β 非负或数据退化时返回 (0, false)
func HalfLife(spread []float64) (float64, bool) {
	// 先剔除非有限值再回归
	clean := make([]float64, 0, len(spread))
	for _, v := range spread {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean = append(clean, v)
		}
	}
	if len(clean) < 3 {
		return 0, false
	}

	// 滞后一期特征，首位补零
	lagged := make([]float64, len(clean))
	lagged[0] = 0
	copy(lagged[1:], clean[:len(clean)-1])

	delta := make([]float64, len(clean))
	for i := range clean {
		delta[i] = clean[i] - lagged[i]
	}

	fit, err := regress.FitLine(lagged, delta)
	if err != nil {
		return 0, false
	}

	// 斜率与零不可区分：无半衰期，绝不能除以近零斜率放大
	if math.Abs(fit.Beta) < slopeTol {
		return 0, false
	}

	hl := -math.Ln2 / fit.Beta
	if hl <= 0 || math.IsNaN(hl) || math.IsInf(hl, 0) {
		return 0, false
	}
	return math.Round(hl*100) / 100, true
}

// Ratio 计算回归目标价格比 exp(mean(spread))，保留 5 位小数
// 均值只取有限值；无有限值时返回 (0, false)
func Ratio(spread []float64) (float64, bool) {
	var sum float64
	var n int
	for _, v := range spread {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	r := math.Exp(sum / float64(n))
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return math.Round(r*1e5) / 1e5, true
}
