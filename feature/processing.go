package feature

import "math"

// Normalizer 是定长向量的归一化接口
type Normalizer interface {
	// Normalize 返回归一化后的新向量，不修改输入
	Normalize(v []float64) []float64
}

// L2Normalizer L2 归一化
// 公式: x' = x / ||x||
// 特点: 向量模长变为 1，零向量保持为零
type L2Normalizer struct{}

// Normalize 归一化向量
func (L2Normalizer) Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	norm := Magnitude(v)
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// LogNormalizer Log 变换
// 公式: x' = log(x + 1)
// 特点: 处理长尾分布，压缩大值
type LogNormalizer struct{}

// Normalize 变换向量
func (n LogNormalizer) Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = n.NormalizeValue(x)
	}
	return out
}

// NormalizeValue 变换单个值
func (LogNormalizer) NormalizeValue(value float64) float64 {
	if value < 0 {
		return 0 // Log 变换要求值 >= 0
	}
	return math.Log1p(value)
}

// SaturatingLog 把长尾计数压缩到 [0,1]：log(1+x) / log(1+ceiling)，超过 ceiling 取 1。
func SaturatingLog(x, ceiling float64) float64 {
	if x <= 0 || ceiling <= 0 {
		return 0
	}
	return math.Min(1, math.Log1p(x)/math.Log1p(ceiling))
}

// Magnitude 返回向量 L2 模长
func Magnitude(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
