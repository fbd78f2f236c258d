// Package coint 实现 Engle-Granger 协整检验。
// 两步法：先对价格做带截距 OLS，再对残差做 ADF 回归，
// tau 统计量通过 MacKinnon 渐近临界值映射为近似 p 值。
package coint

import (
	"errors"
	"fmt"
	"math"

	"reversion-sentinel/internal/stats/regress"
)

// ErrTooShort 样本不足，ADF 回归自由度不够
var ErrTooShort = errors.New("样本不足，无法进行协整检验")

// minSamples ADF 回归所需的最小样本量
const minSamples = 12

// residVarTol 残差方差容差；低于该值视为完全协整
// 常数序列对（比价恒定）走这条路径：p≈0、显著协整，
// 后续 z-score 门会因零方差价差将其拦下
const residVarTol = 1e-12

// MacKinnon (2010) 渐近临界值，双变量 Engle-Granger、含常数项
// 小样本修正项省略：小时线 1000 根的场景下修正量远小于插值误差
var cvTable = []struct {
	tau float64
	p   float64
}{
	{-3.89644, 0.01},
	{-3.33613, 0.05},
	{-3.04445, 0.10},
}

// pClampLow、pClampHigh p 值截断范围
const (
	pClampLow  = 1e-6
	pClampHigh = 0.999
)

// EngleGranger 对两条等长价格序列做协整检验
// 参数 a, b: 对齐后的收盘价序列（等长）
// 返回: 近似 p 值；数据无法回归时返回错误（调用方按单对失败处理）
func EngleGranger(a, b []float64) (float64, error) {
	n := len(a)
	if n != len(b) {
		return 0, fmt.Errorf("序列长度不一致: %d vs %d", n, len(b))
	}
	if n < minSamples {
		return 0, ErrTooShort
	}
	for i := 0; i < n; i++ {
		if !isFinite(a[i]) || !isFinite(b[i]) {
			return 0, fmt.Errorf("序列含非有限值（索引 %d）", i)
		}
	}

	// 第一步：a = alpha + beta*b + e
	// b 无方差时退化为对 a 去均值（比价恒定的平凡情形）
	var resid []float64
	fit, err := regress.FitLine(b, a)
	if err == nil {
		resid = fit.Residuals(b, a)
	} else if errors.Is(err, regress.ErrSingular) {
		resid = demean(a)
	} else {
		return 0, err
	}

	if regress.Variance(resid) < residVarTol {
		// 残差恒为零：完全协整
		return 0, nil
	}

	// 第二步：残差 ADF 回归（1 阶增广，无常数项）
	// Δe_t = ρ·e_{t-1} + φ·Δe_{t-1}
	tau, err := adfTau(resid)
	if err != nil {
		return 0, err
	}

	return mackinnonP(tau), nil
}

// adfTau 计算残差序列的 ADF tau 统计量
func adfTau(e []float64) (float64, error) {
	n := len(e)
	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = e[i] - e[i-1]
	}

	// 样本 t = 2..n-1：y=Δe_t, x1=e_{t-1}, x2=Δe_{t-1}
	m := n - 2
	y := make([]float64, m)
	x1 := make([]float64, m)
	x2 := make([]float64, m)
	for t := 2; t < n; t++ {
		y[t-2] = diff[t-1]
		x1[t-2] = e[t-1]
		x2[t-2] = diff[t-2]
	}

	fit, err := regress.FitTwo(x1, x2, y)
	if err != nil {
		return 0, fmt.Errorf("ADF 回归失败: %w", err)
	}
	if fit.SE1 <= 0 || !isFinite(fit.SE1) {
		return 0, fmt.Errorf("ADF 标准误无效: %v", fit.SE1)
	}
	return fit.B1 / fit.SE1, nil
}

// mackinnonP 将 tau 统计量映射为近似 p 值
// 在临界值表的 log10(p)-tau 空间做线性插值，表外按端点段斜率外推后截断
func mackinnonP(tau float64) float64 {
	logp := func(lo, hi int) float64 {
		// 过点 (tau_lo, log10 p_lo) 与 (tau_hi, log10 p_hi) 的直线
		t0, p0 := cvTable[lo].tau, math.Log10(cvTable[lo].p)
		t1, p1 := cvTable[hi].tau, math.Log10(cvTable[hi].p)
		return p0 + (tau-t0)*(p1-p0)/(t1-t0)
	}

	var lg float64
	switch {
	case tau <= cvTable[0].tau:
		lg = logp(0, 1)
	case tau <= cvTable[1].tau:
		lg = logp(0, 1)
	case tau <= cvTable[2].tau:
		lg = logp(1, 2)
	default:
		lg = logp(1, 2)
	}

	p := math.Pow(10, lg)
	if p < pClampLow {
		return pClampLow
	}
	if p > pClampHigh {
		return pClampHigh
	}
	return p
}

func demean(x []float64) []float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - mean
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
