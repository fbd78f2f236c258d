// Package regress 实现最小二乘回归。
// 供协整检验与半衰期拟合共用；矩阵奇异以 error 报告，绝不 panic。
package regress

import (
	"errors"
	"math"
)

// ErrSingular 设计矩阵奇异（自变量无方差或数据不足）
var ErrSingular = errors.New("设计矩阵奇异")

// singularTol 奇异判定容差
const singularTol = 1e-12

// LineFit 一元带截距最小二乘拟合结果
// 模型: y = Alpha + Beta*x + ε
type LineFit struct {
	// Alpha 截距
	Alpha float64
	// Beta 斜率
	Beta float64
}

// FitLine 拟合 y = alpha + beta*x
// 参数 x, y: 等长样本序列
// 返回: 拟合结果；样本不足或 x 无方差时返回 ErrSingular
func FitLine(x, y []float64) (LineFit, error) {
	n := len(x)
	if n != len(y) || n < 2 {
		return LineFit{}, ErrSingular
	}

	var sx, sy, sxx, sxy float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}

	den := float64(n)*sxx - sx*sx
	if math.Abs(den) < singularTol*float64(n)*math.Max(sxx, 1) {
		return LineFit{}, ErrSingular
	}

	beta := (float64(n)*sxy - sx*sy) / den
	alpha := (sy - beta*sx) / float64(n)

	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
		return LineFit{}, ErrSingular
	}

	return LineFit{Alpha: alpha, Beta: beta}, nil
}

// Residuals 计算一元拟合的残差序列 y - (alpha + beta*x)
func (f LineFit) Residuals(x, y []float64) []float64 {
	res := make([]float64, len(x))
	for i := range x {
		res[i] = y[i] - f.Alpha - f.Beta*x[i]
	}
	return res
}

// Fit2 二元无截距最小二乘拟合结果
// 模型: y = B1*x1 + B2*x2 + ε
type Fit2 struct {
	// B1 第一个回归系数
	B1 float64
	// B2 第二个回归系数
	B2 float64
	// SE1 B1 的标准误
	SE1 float64
	// SE2 B2 的标准误
	SE2 float64
}

// FitTwo 拟合 y = b1*x1 + b2*x2（无截距），并给出系数标准误
// 协整残差的 ADF 回归使用：残差按构造均值为零，不需要常数项。
// 返回: 拟合结果；法方程奇异或自由度不足时返回 ErrSingular
func FitTwo(x1, x2, y []float64) (Fit2, error) {
	n := len(y)
	if len(x1) != n || len(x2) != n || n < 4 {
		return Fit2{}, ErrSingular
	}

	// 法方程 X'X b = X'y（2×2）
	var s11, s12, s22, s1y, s2y float64
	for i := 0; i < n; i++ {
		s11 += x1[i] * x1[i]
		s12 += x1[i] * x2[i]
		s22 += x2[i] * x2[i]
		s1y += x1[i] * y[i]
		s2y += x2[i] * y[i]
	}

	det := s11*s22 - s12*s12
	scale := math.Max(s11*s22, 1)
	if math.Abs(det) < singularTol*scale {
		return Fit2{}, ErrSingular
	}

	b1 := (s22*s1y - s12*s2y) / det
	b2 := (s11*s2y - s12*s1y) / det

	// σ² = RSS / (n - k)，k = 2
	var rss float64
	for i := 0; i < n; i++ {
		e := y[i] - b1*x1[i] - b2*x2[i]
		rss += e * e
	}
	sigma2 := rss / float64(n-2)

	// Var(b) = σ² (X'X)⁻¹ 的对角元
	se1 := math.Sqrt(sigma2 * s22 / det)
	se2 := math.Sqrt(sigma2 * s11 / det)

	fit := Fit2{B1: b1, B2: b2, SE1: se1, SE2: se2}
	if math.IsNaN(b1) || math.IsNaN(b2) || math.IsInf(b1, 0) || math.IsInf(b2, 0) {
		return Fit2{}, ErrSingular
	}
	return fit, nil
}

// Variance 计算样本方差（ddof=1）
// 样本不足 2 个时返回 0
func Variance(x []float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(n)
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return ss / float64(n-1)
}
