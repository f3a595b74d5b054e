package signals

import "math"

// 异常分类标签
const (
	FlagStructural     = "结构性异常"
	FlagVolatile       = "高波动异常"
	FlagRatioPseudo    = "比例假异常"
	FlagNormal         = "正常波动"
	FlagTrendDeviation = "趋势性偏离"
	FlagInsufficient   = "样本不足"
)

// MetricTypeRatio 比率型指标的统计结果标记
const MetricTypeRatio = "ratio"

// Decision 异常决策
type Decision struct {
	Flag            string  `json:"flag"`
	Z               float64 `json:"z"`
	CV              float64 `json:"cv"`
	AnomalyDetected bool    `json:"anomaly_detected"`
}

// Normal 正常波动决策
func Normal() Decision {
	return Decision{Flag: FlagNormal}
}

// Pseudo 是否为比例假异常
func (d Decision) Pseudo() bool { return d.Flag == FlagRatioPseudo }

// NeedsFollowUp 是否需要注入后续步骤
func (d Decision) NeedsFollowUp() bool { return d.AnomalyDetected || d.Pseudo() }

// Thresholds 分类阈值
type Thresholds struct {
	CV    float64 // 结构性 / 高波动的 CV 分界
	Ratio float64 // 比例自身变化阈值
	Scale float64 // 分子 / 分母规模变化阈值
	// ZMid > 0 时，|z| ∈ [ZMid, 2) 记为趋势性偏离
	ZMid float64
	// MinDenominator > 0 时，比率指标分母不足记为样本不足
	MinDenominator float64
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{CV: 0.1, Ratio: 0.2, Scale: 0.2}
}

// Stats 异常检测输入（anomaly_stats 结果）
type Stats struct {
	Value       float64 `json:"value"`
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	Points      int     `json:"points"`
	LastDate    string  `json:"last_date,omitempty"`
	Percentile  float64 `json:"percentile"`
	MetricType  string  `json:"metric_type,omitempty"`
	DeltaGroup  float64 `json:"delta_group,omitempty"`
	DeltaTotal  float64 `json:"delta_total,omitempty"`
	DeltaRatio  float64 `json:"delta_ratio,omitempty"`
	Denominator float64 `json:"denominator,omitempty"`
}

// Classify 基于 z 与 CV 的异常分类
func Classify(value, mean, std, cvThreshold float64) Decision {
	if std <= 0 || mean == 0 {
		return Normal()
	}
	z := (value - mean) / std
	cv := math.Abs(std / mean)
	absZ := math.Abs(z)

	d := Decision{Flag: FlagNormal, Z: z, CV: cv}
	switch {
	case absZ >= 2 && cv < cvThreshold:
		d.Flag, d.AnomalyDetected = FlagStructural, true
	case absZ >= 2:
		d.Flag, d.AnomalyDetected = FlagVolatile, true
	}
	return d
}

// ClassifyRatio 比率指标分解判断：ok=false 表示比例变化不显著或无法归因
func ClassifyRatio(deltaGroup, deltaTotal, deltaRatio, ratioThreshold, scaleThreshold float64) (Decision, bool) {
	if math.Abs(deltaRatio) < ratioThreshold {
		return Decision{}, false
	}
	if math.Abs(deltaGroup) >= scaleThreshold && math.Abs(deltaGroup-deltaTotal) >= scaleThreshold {
		return Decision{Flag: FlagStructural, Z: deltaRatio, CV: math.Abs(deltaGroup), AnomalyDetected: true}, true
	}
	if math.Abs(deltaTotal) >= scaleThreshold && math.Abs(deltaGroup) < scaleThreshold {
		return Decision{Flag: FlagRatioPseudo, Z: deltaRatio, CV: math.Abs(deltaTotal)}, true
	}
	return Decision{}, false
}

// Evaluate 综合判断；比率指标的分解结论优先
func Evaluate(s Stats, th Thresholds) Decision {
	if s.MetricType == MetricTypeRatio && th.MinDenominator > 0 && s.Denominator < th.MinDenominator {
		return Decision{Flag: FlagInsufficient}
	}

	d := Classify(s.Value, s.Mean, s.Std, th.CV)
	if !d.AnomalyDetected && th.ZMid > 0 && math.Abs(d.Z) >= th.ZMid {
		d.Flag, d.AnomalyDetected = FlagTrendDeviation, true
	}

	if s.MetricType == MetricTypeRatio {
		if rd, ok := ClassifyRatio(s.DeltaGroup, s.DeltaTotal, s.DeltaRatio, th.Ratio, th.Scale); ok {
			return rd
		}
	}
	return d
}
