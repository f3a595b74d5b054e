package tools

import (
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/signals"
)

// ResultKind 结果类型标签
type ResultKind string

const (
	KindQuery        ResultKind = "query"
	KindRollup       ResultKind = "rollup"
	KindTrend        ResultKind = "trend"
	KindAnomalyStats ResultKind = "anomaly_stats"
	KindDistribution ResultKind = "distribution"
	KindContribution ResultKind = "contribution"
	KindRatio        ResultKind = "ratio"
	KindDualAxis     ResultKind = "dual_axis"
)

// Result 工具结果（带类型标签的联合体）
type Result interface {
	Meta() *Base
}

// Base 所有结果共有字段
type Base struct {
	Kind        ResultKind       `json:"kind"`
	Metric      string           `json:"metric,omitempty"`
	DateRange   string           `json:"date_range,omitempty"`
	Window      string           `json:"window,omitempty"`
	Signals     []signals.Signal `json:"signals"`
	Diagnostics []string         `json:"diagnostics,omitempty"`
}

// Meta 实现 Result
func (b *Base) Meta() *Base { return b }

func (b *Base) emit(s signals.Signal) {
	b.Signals = append(b.Signals, s)
}

// absorb 合并数据层诊断；时间窗口未解析时追加数据质量告警
func (b *Base) absorb(sel *dataaccess.Selection) {
	b.Diagnostics = append(b.Diagnostics, sel.Diagnostics...)
	if sel.Window.Resolved() {
		b.Window = sel.Window.Label()
	}
	if sel.LaunchUnresolved {
		b.emit(signals.DataQualityWarning(b.Metric, "launch window %s unresolved, time filter not applied", sel.Window.Expr))
	}
}

func newBase(kind ResultKind, metric, dateRange string) Base {
	return Base{Kind: kind, Metric: metric, DateRange: dateRange, Signals: []signals.Signal{}}
}

// Point 时间序列点
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// QueryResult 标量或按周期分桶的查询结果
type QueryResult struct {
	Base
	Value      float64                    `json:"value"`
	SampleSize int                        `json:"sample_size"`
	Interval   string                     `json:"interval,omitempty"`
	Series     map[string]float64         `json:"series,omitempty"`
	Filters    []dataaccess.FilterOutcome `json:"filters,omitempty"`
}

// Row rollup 行
type Row struct {
	Dimension string            `json:"dimension"`
	Keys      map[string]string `json:"keys"`
	Value     float64           `json:"value"`
}

// RollupResult 多维分组结果
type RollupResult struct {
	Base
	Dimensions []string                   `json:"dimensions"`
	Rows       []Row                      `json:"rows"`
	SampleSize int                        `json:"sample_size"`
	Filters    []dataaccess.FilterOutcome `json:"filters,omitempty"`
}

// TrendResult 时间趋势
type TrendResult struct {
	Base
	TimeGrain   string  `json:"time_grain"`
	CompareType string  `json:"compare_type,omitempty"`
	Series      []Point `json:"series"`
	Compare     *Point  `json:"compare,omitempty"`
	Change      float64 `json:"change"`
	ChangePct   float64 `json:"change_pct"`
}

// AnomalyStatsResult 异常检测统计
type AnomalyStatsResult struct {
	Base
	signals.Stats
	TimeGrain string  `json:"time_grain,omitempty"`
	Daily     []Point `json:"daily,omitempty"`
}

// CategoryShare 类别占比
type CategoryShare struct {
	Category   string  `json:"category"`
	PrimaryPct float64 `json:"primary_pct"`
	ComparePct float64 `json:"compare_pct"`
	DiffPct    float64 `json:"diff_pct"`
}

// BinShare 直方图箱占比
type BinShare struct {
	Range      string  `json:"range"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	PrimaryPct float64 `json:"primary_pct"`
	ComparePct float64 `json:"compare_pct"`
}

// Comparison 两期分布距离
type Comparison struct {
	CompareDateRange string  `json:"compare_date_range"`
	Distance         float64 `json:"distance"`
	Threshold        float64 `json:"threshold"`
}

// DistributionResult 分布或直方图
type DistributionResult struct {
	Base
	Dimension    string          `json:"dimension,omitempty"`
	SampleSize   int             `json:"sample_size"`
	Distribution []CategoryShare `json:"distribution,omitempty"`
	Bins         []BinShare      `json:"bins,omitempty"`
	Comparison   *Comparison     `json:"comparison,omitempty"`
}

// Contribution 贡献项
type Contribution struct {
	Dimension         string  `json:"dimension"`
	Bucket            string  `json:"bucket,omitempty"`
	Value             float64 `json:"value"`
	Percent           float64 `json:"percent"`
	CumulativePercent float64 `json:"cumulative_percent,omitempty"`
}

// ContributionResult additive / composition / pareto 结果
type ContributionResult struct {
	Base
	Tool       string         `json:"tool"`
	Dimension  string         `json:"dimension,omitempty"`
	Dimensions []string       `json:"dimensions,omitempty"`
	Interval   string         `json:"interval,omitempty"`
	Total      float64        `json:"total"`
	Items      []Contribution `json:"items"`
}

// Ratio 比率项
type Ratio struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
}

// RatioResult 比率分析
type RatioResult struct {
	Base
	Ratios []Ratio `json:"ratios"`
}

// DualPoint 双轴点
type DualPoint struct {
	Time       string  `json:"time"`
	LeftValue  float64 `json:"left_value"`
	RightValue float64 `json:"right_value"`
}

// DualAxisResult 双轴序列
type DualAxisResult struct {
	Base
	LeftMetric  string      `json:"left_metric"`
	RightMetric string      `json:"right_metric"`
	TimeGrain   string      `json:"time_grain"`
	Series      []DualPoint `json:"series"`
}
