// Package stats 基于 gonum 的统计工具，所有函数对空切片返回 0
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean 算术平均
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// SampleStdDev 样本标准差（ddof=1），少于两个点返回 0
func SampleStdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Quantile 线性插值分位数，p ∈ [0,1]
func Quantile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	return linInterpQuantile(sorted, p)
}

// linInterpQuantile 与 numpy.percentile 默认 linear 方法一致
func linInterpQuantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// EmpiricalQuantile gonum 经验分位数（不插值）
func EmpiricalQuantile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// PercentRank 经验 CDF：history 中 <= x 的比例
func PercentRank(history []float64, x float64) float64 {
	if len(history) == 0 {
		return 0
	}
	sorted := append([]float64(nil), history...)
	sort.Float64s(sorted)
	return stat.CDF(x, stat.Empirical, sorted, nil)
}

// MinMax 返回最小值和最大值
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	return floats.Min(data), floats.Max(data)
}

// Sum 求和
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return floats.Sum(data)
}

// SafeDiv 除零保护
func SafeDiv(n, d float64) float64 {
	if d == 0 || math.IsNaN(d) {
		return 0
	}
	return n / d
}

// LogDiff ln(cur/base)，任一非正返回 0
func LogDiff(cur, base float64) float64 {
	if cur <= 0 || base <= 0 {
		return 0
	}
	return math.Log(cur / base)
}

// Histogram 等宽分箱，范围 [lo, hi]，最后一个箱包含右端点
// 返回各箱计数与 bins+1 个边界
func Histogram(values []float64, bins int, lo, hi float64) ([]float64, []float64) {
	if bins <= 0 {
		bins = 1
	}
	if hi <= lo {
		hi = lo + 1
	}
	edges := make([]float64, bins+1)
	floats.Span(edges, lo, hi)
	counts := make([]float64, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		if v < lo || v > hi {
			continue
		}
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return counts, edges
}
