// Package signals 信号定义、异常分类与下钻规划
package signals

import "fmt"

// 信号类型，消费方必须容忍未知类型
const (
	TypeAnomalyDecision  = "anomaly_decision"
	TypeDistribution     = "distribution_signal"
	TypeDataQuality      = "data_quality_signal"
	TypeStructureAnomaly = "structure_anomaly"
	TypeError            = "error"
)

// 信号状态
const (
	StatusNormal   = "normal"
	StatusAbnormal = "abnormal"
	StatusWarning  = "warning"
	StatusFailed   = "failed"
)

// Signal 带类型标签的信号记录
type Signal struct {
	Type            string                 `json:"type"`
	Status          string                 `json:"status,omitempty"`
	StepID          string                 `json:"step_id,omitempty"`
	Metric          string                 `json:"metric,omitempty"`
	DateRange       string                 `json:"date_range,omitempty"`
	Dimension       string                 `json:"dimension,omitempty"`
	Dimensions      []string               `json:"dimensions,omitempty"`
	CoreMetrics     []string               `json:"core_metrics,omitempty"`
	Message         string                 `json:"message,omitempty"`
	Score           float64                `json:"score,omitempty"`
	Flag            string                 `json:"flag,omitempty"`
	Z               float64                `json:"z,omitempty"`
	CV              float64                `json:"cv,omitempty"`
	AnomalyDetected *bool                  `json:"anomaly_detected,omitempty"`
	Extra           map[string]interface{} `json:"extra,omitempty"`
}

// Anomalous 信号是否声明检测到异常
func (s Signal) Anomalous() bool {
	return s.AnomalyDetected != nil && *s.AnomalyDetected
}

// DataQualityWarning 数据质量告警
func DataQualityWarning(metric, format string, args ...interface{}) Signal {
	return Signal{
		Type:    TypeDataQuality,
		Status:  StatusWarning,
		Metric:  metric,
		Message: fmt.Sprintf(format, args...),
	}
}

// Failed 工具级失败信号（不中断运行）
func Failed(metric, format string, args ...interface{}) Signal {
	return Signal{
		Type:    TypeError,
		Status:  StatusFailed,
		Metric:  metric,
		Message: fmt.Sprintf(format, args...),
	}
}

// Distribution 分布偏移信号，score 超过阈值为 abnormal
func Distribution(metric, dimension string, score, threshold float64, label string) Signal {
	status, word := StatusNormal, "Normal"
	if score > threshold {
		status, word = StatusAbnormal, "Abnormal"
	}
	return Signal{
		Type:      TypeDistribution,
		Status:    status,
		Metric:    metric,
		Dimension: dimension,
		Score:     score,
		Message:   fmt.Sprintf("%s %.2f (%s)", label, score, word),
		Extra:     map[string]interface{}{"threshold": threshold},
	}
}

// FromDecision 把异常决策包装为信号
func FromDecision(d Decision, in PlanInput) Signal {
	detected := d.AnomalyDetected
	return Signal{
		Type:            TypeAnomalyDecision,
		Status:          decisionStatus(d),
		Metric:          in.Metric,
		DateRange:       in.DateRange,
		Dimensions:      append([]string(nil), in.Dimensions...),
		CoreMetrics:     append([]string(nil), in.CoreMetrics...),
		Flag:            d.Flag,
		Z:               d.Z,
		CV:              d.CV,
		AnomalyDetected: &detected,
	}
}

func decisionStatus(d Decision) string {
	switch {
	case d.AnomalyDetected:
		return StatusAbnormal
	case d.Flag == FlagRatioPseudo:
		return StatusWarning
	default:
		return StatusNormal
	}
}
