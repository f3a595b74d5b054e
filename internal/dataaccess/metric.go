package dataaccess

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/pkg/stats"
)

// Source 指标所在的表
type Source int

const (
	SourceOrders Source = iota + 1
	SourceAssign
)

// String 表名
func (s Source) String() string {
	if s == SourceAssign {
		return "assign"
	}
	return "orders"
}

// AggKind 聚合方式
type AggKind int

const (
	AggCount AggKind = iota + 1
	AggSum
	AggMean
	AggRatio
	AggExpression
)

const (
	MetricLockVolume    = "锁单量"
	MetricInvoiceVolume = "开票量"
	MetricInvoiceAmount = "开票金额"
	MetricDelivery      = "交付数"
	MetricSmallOrder    = "小订数"
	MetricAvgAge        = "平均年龄"
	MetricTotalVolume   = "total_volume"
	MetricAssignLeads   = "下发线索数"
	MetricAssignLock    = "下发线索 7 日锁单数"
	MetricAssignTest    = "下发线索 7 日试驾数"
	MetricAssignLock7d  = "assign_rate_7d_lock"
	MetricAssignTest7d  = "assign_rate_7d_test_drive"
)

// DateDiff datediff('day', start, end) 表达式
type DateDiff struct {
	Unit  string
	Start string
	End   string
}

// Metric 指标定义
type Metric struct {
	Name        string
	Source      Source
	TimeColumn  string
	Required    []string
	Agg         AggKind
	ValueColumn string
	Numerator   string
	Denominator string
	Expr        *DateDiff
}

// IsRatio 是否为比率型指标
func (m Metric) IsRatio() bool { return m.Agg == AggRatio }

var metricTable = []struct {
	aliases []string
	def     Metric
}{
	{[]string{MetricLockVolume, "sales", "锁单数", "销量", "锁单"}, Metric{
		Name: MetricLockVolume, Source: SourceOrders, TimeColumn: ColLockTime,
		Required: []string{ColLockTime}, Agg: AggCount,
	}},
	{[]string{MetricInvoiceVolume, "开票数"}, Metric{
		Name: MetricInvoiceVolume, Source: SourceOrders, TimeColumn: ColInvoiceUploadTime,
		Required: []string{ColInvoiceUploadTime, ColLockTime}, Agg: AggCount,
	}},
	{[]string{MetricInvoiceAmount}, Metric{
		Name: MetricInvoiceAmount, Source: SourceOrders, TimeColumn: ColInvoiceUploadTime,
		Required: []string{ColInvoiceUploadTime, ColLockTime}, Agg: AggSum, ValueColumn: ColInvoiceAmount,
	}},
	{[]string{MetricDelivery, "交付量"}, Metric{
		Name: MetricDelivery, Source: SourceOrders, TimeColumn: ColDeliveryDate,
		Required: []string{ColDeliveryDate}, Agg: AggCount,
	}},
	{[]string{MetricSmallOrder, "小订量"}, Metric{
		Name: MetricSmallOrder, Source: SourceOrders, TimeColumn: ColOrderCreateDate,
		Required: []string{ColOrderCreateDate}, Agg: AggCount,
	}},
	{[]string{MetricAvgAge, "age"}, Metric{
		Name: MetricAvgAge, Source: SourceOrders, TimeColumn: ColOrderCreateDate,
		Required: []string{ColOrderCreateDate, ColAge}, Agg: AggMean, ValueColumn: ColAge,
	}},
	{[]string{MetricAssignLeads, "assign_leads"}, Metric{
		Name: MetricAssignLeads, Source: SourceAssign, TimeColumn: ColAssignDate,
		Required: []string{ColAssignDate}, Agg: AggSum, ValueColumn: ColAssignLeads,
	}},
	{[]string{MetricAssignLock, "7日锁单数"}, Metric{
		Name: MetricAssignLock, Source: SourceAssign, TimeColumn: ColAssignDate,
		Required: []string{ColAssignDate}, Agg: AggSum, ValueColumn: ColAssignLock7d,
	}},
	{[]string{MetricAssignTest, "7日试驾数"}, Metric{
		Name: MetricAssignTest, Source: SourceAssign, TimeColumn: ColAssignDate,
		Required: []string{ColAssignDate}, Agg: AggSum, ValueColumn: ColAssignTestDrive7d,
	}},
	{[]string{MetricAssignLock7d}, Metric{
		Name: MetricAssignLock7d, Source: SourceAssign, TimeColumn: ColAssignDate,
		Required: []string{ColAssignDate}, Agg: AggRatio,
		Numerator: ColAssignLock7d, Denominator: ColAssignLeads,
	}},
	{[]string{MetricAssignTest7d}, Metric{
		Name: MetricAssignTest7d, Source: SourceAssign, TimeColumn: ColAssignDate,
		Required: []string{ColAssignDate}, Agg: AggRatio,
		Numerator: ColAssignTestDrive7d, Denominator: ColAssignLeads,
	}},
}

var reDateDiff = regexp.MustCompile(`^datediff\(\s*'(\w+)'\s*,\s*([\w\p{Han}]+)\s*,\s*([\w\p{Han}]+)\s*\)$`)

// ResolveMetric 指标名解析，未知指标按订单量（order_create_date 计数）处理
func ResolveMetric(name string) Metric {
	n := strings.TrimSpace(name)
	if m := reDateDiff.FindStringSubmatch(strings.ToLower(n)); m != nil {
		return Metric{
			Name: n, Source: SourceOrders, TimeColumn: m[2],
			Required: []string{m[2], m[3]}, Agg: AggExpression,
			Expr: &DateDiff{Unit: m[1], Start: m[2], End: m[3]},
		}
	}
	for _, entry := range metricTable {
		for _, alias := range entry.aliases {
			if alias == n {
				def := entry.def
				def.Required = append([]string(nil), def.Required...)
				return def
			}
		}
	}
	if n == "" {
		n = MetricTotalVolume
	}
	return Metric{
		Name: n, Source: SourceOrders, TimeColumn: ColOrderCreateDate,
		Required: []string{ColOrderCreateDate}, Agg: AggCount,
	}
}

// Aggregate 在视图上计算指标值
func (m Metric) Aggregate(v View) float64 {
	switch m.Agg {
	case AggCount:
		return float64(v.Len())
	case AggSum:
		return stats.Sum(numericValues(v, m.ValueColumn))
	case AggMean:
		return stats.Mean(numericValues(v, m.ValueColumn))
	case AggRatio:
		num, den := m.Components(v)
		return stats.SafeDiv(num, den)
	case AggExpression:
		return stats.Mean(m.Values(v))
	}
	return 0
}

// Components 比率指标的分子分母
func (m Metric) Components(v View) (float64, float64) {
	return stats.Sum(numericValues(v, m.Numerator)), stats.Sum(numericValues(v, m.Denominator))
}

// Values 逐行数值：表达式指标为 datediff 结果，数值指标为值列
func (m Metric) Values(v View) []float64 {
	if m.Expr != nil {
		out := make([]float64, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			a, okA := v.Time(i, m.Expr.Start)
			b, okB := v.Time(i, m.Expr.End)
			if !okA || !okB {
				continue
			}
			out = append(out, diffUnits(a, b, m.Expr.Unit))
		}
		return out
	}
	if m.ValueColumn != "" {
		return numericValues(v, m.ValueColumn)
	}
	return nil
}

func diffUnits(a, b time.Time, unit string) float64 {
	d := DayStart(b).Sub(DayStart(a))
	switch unit {
	case "hour":
		return b.Sub(a).Hours()
	case "week":
		return math.Floor(d.Hours() / 24 / 7)
	default:
		return math.Round(d.Hours() / 24)
	}
}

func numericValues(v View, col string) []float64 {
	if col == "" || !v.Has(col) {
		return nil
	}
	out := make([]float64, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		if f, ok := v.Num(i, col); ok {
			out = append(out, f)
		}
	}
	return out
}
