// Package cycle 实现周期性确认。
// 自相关扫描检查滞后峰是否按固定间隔复现，
// 离散傅里叶变换幅谱检查是否存在主导频率。
package cycle

import "math"

// Autocorr 计算序列在指定滞后的自相关（Pearson 相关）
// 对齐 x[lag:] 与 x[:n-lag] 两段计算；样本不足或方差为零返回 NaN
func Autocorr(x []float64, lag int) float64 {
	n := len(x)
	if lag <= 0 || lag >= n {
		return math.NaN()
	}
	return pearson(x[lag:], x[:n-lag])
}

// PeriodicPeaks 自相关扫描确认
// 扫描滞后 1..n/2-1 的自相关，记录绝对值超过阈值的位置，
// 任意两个相邻超阈位置间距恰为 interval 时确认为周期性。
func PeriodicPeaks(x []float64, threshold float64, interval int) bool {
	n := len(x)
	if n < 4 || interval <= 0 {
		return false
	}

	var peaks []int
	for i, lag := 0, 1; lag < n/2; i, lag = i+1, lag+1 {
		ac := Autocorr(x, lag)
		if math.IsNaN(ac) {
			continue
		}
		if math.Abs(ac) > threshold {
			peaks = append(peaks, i)
		}
	}

	for i := 1; i < len(peaks); i++ {
		if peaks[i]-peaks[i-1] == interval {
			return true
		}
	}
	return false
}

// DominantFrequency 主频扫描确认
// 幅谱取前半段，按 2/N·|X[k]| 归一化，峰值幅度超过阈值时确认。
// 序列长度 ≤ 千级，直接按定义计算 DFT 即可
func DominantFrequency(x []float64, threshold float64) bool {
	n := len(x)
	if n < 4 {
		return false
	}

	maxAmp := 0.0
	for k := 0; k < n/2; k++ {
		var re, im float64
		w := -2 * math.Pi * float64(k) / float64(n)
		for t, v := range x {
			angle := w * float64(t)
			re += v * math.Cos(angle)
			im += v * math.Sin(angle)
		}
		amp := 2.0 / float64(n) * math.Hypot(re, im)
		if amp > maxAmp {
			maxAmp = amp
		}
	}
	return maxAmp > threshold
}

// pearson 计算两段等长序列的 Pearson 相关系数
func pearson(a, b []float64) float64 {
	n := len(a)
	if n < 2 {
		return math.NaN()
	}

	var sumA, sumB float64
	for i := 0; i < n; i++ {
		sumA += a[i]
		sumB += b[i]
	}
	meanA := sumA / float64(n)
	meanB := sumB / float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varA*varB)
}
