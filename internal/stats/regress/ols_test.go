// Package regress 回归测试
package regress

import (
	"math"
	"testing"
)

func TestFitLine_ExactLine(t *testing.T) {
	// y = 3 + 2x 的精确样本
	x := []float64{0, 1, 2, 3, 4, 5}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 3 + 2*v
	}

	fit, err := FitLine(x, y)
	if err != nil {
		t.Fatalf("FitLine 失败: %v", err)
	}
	if math.Abs(fit.Alpha-3) > 1e-9 {
		t.Fatalf("Alpha=%v, want 3", fit.Alpha)
	}
	if math.Abs(fit.Beta-2) > 1e-9 {
		t.Fatalf("Beta=%v, want 2", fit.Beta)
	}

	for i, r := range fit.Residuals(x, y) {
		if math.Abs(r) > 1e-9 {
			t.Fatalf("残差[%d]=%v, want 0", i, r)
		}
	}
}

func TestFitLine_Singular(t *testing.T) {
	// x 无方差
	x := []float64{5, 5, 5, 5}
	y := []float64{1, 2, 3, 4}
	if _, err := FitLine(x, y); err == nil {
		t.Fatalf("常数 x 应返回奇异错误")
	}

	// 样本不足
	if _, err := FitLine([]float64{1}, []float64{2}); err == nil {
		t.Fatalf("单样本应返回奇异错误")
	}
}

func TestFitTwo_ExactPlane(t *testing.T) {
	// y = 1.5*x1 - 0.5*x2 的精确样本
	x1 := []float64{1, 2, 3, 4, 5, 6}
	x2 := []float64{2, 1, 4, 3, 6, 5}
	y := make([]float64, len(x1))
	for i := range x1 {
		y[i] = 1.5*x1[i] - 0.5*x2[i]
	}

	fit, err := FitTwo(x1, x2, y)
	if err != nil {
		t.Fatalf("FitTwo 失败: %v", err)
	}
	if math.Abs(fit.B1-1.5) > 1e-9 {
		t.Fatalf("B1=%v, want 1.5", fit.B1)
	}
	if math.Abs(fit.B2+0.5) > 1e-9 {
		t.Fatalf("B2=%v, want -0.5", fit.B2)
	}
	// 精确拟合的标准误应为零
	if fit.SE1 > 1e-9 || fit.SE2 > 1e-9 {
		t.Fatalf("精确拟合标准误应为 0, got SE1=%v SE2=%v", fit.SE1, fit.SE2)
	}
}

func TestFitTwo_Collinear(t *testing.T) {
	// x2 = 2*x1，法方程奇异
	x1 := []float64{1, 2, 3, 4, 5}
	x2 := []float64{2, 4, 6, 8, 10}
	y := []float64{1, 2, 3, 4, 5}
	if _, err := FitTwo(x1, x2, y); err == nil {
		t.Fatalf("共线回归元应返回奇异错误")
	}
}

func TestVariance(t *testing.T) {
	// 样本方差（ddof=1）: var({2,4,4,4,5,5,7,9}) = 4.571428...
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	got := Variance(x)
	want := 32.0 / 7.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Variance=%v, want %v", got, want)
	}

	if Variance([]float64{3}) != 0 {
		t.Fatalf("单样本方差应为 0")
	}
}
