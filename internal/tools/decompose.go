package tools

import (
	"context"
	"sort"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/stats"
)

const unknownKey = "未知"

// AdditiveTool 加法拆解：按首个可用维度计算各切片贡献
type AdditiveTool struct {
	named
	dc *dataaccess.DataContext
}

// NewAdditiveTool 创建加法拆解工具
func NewAdditiveTool(dc *dataaccess.DataContext) *AdditiveTool {
	return &AdditiveTool{named: named{names: []string{"additive", "additive_decomposition"}}, dc: dc}
}

// Execute 实现 Tool
func (t *AdditiveTool) Execute(ctx context.Context, step dsl.Step) (Result, error) {
	p := step.Parameters
	metric := metricName(p)
	dateRange := p.String("date_range")
	dims := p.Dimensions()

	sel, err := selectFor(ctx, t.dc, step, metric, dateRange)
	if err != nil {
		return nil, err
	}
	res := &ContributionResult{
		Base:       newBase(KindContribution, metric, dateRange),
		Tool:       "additive",
		Dimensions: dims,
		Total:      sel.Metric.Aggregate(sel.View),
	}
	res.absorb(sel)

	var reader *dimReader
	for _, dim := range dims {
		readers, skipped := dimensionReaders(sel, []string{dim}, t.dc.Definition())
		if len(skipped) > 0 {
			res.Diagnostics = append(res.Diagnostics, "dimension "+dim+" not found")
			continue
		}
		reader = &readers[0]
		res.Dimension = dim
		break
	}
	if reader == nil {
		res.Items = []Contribution{{Dimension: allKey, Value: res.Total, Percent: 1}}
		return res, nil
	}

	groups := groupBy(sel, []dimReader{*reader})
	sortByValueDesc(groups)
	res.Items = make([]Contribution, 0, len(groups))
	for _, g := range groups {
		res.Items = append(res.Items, Contribution{
			Dimension: labelOf(g.keys[0]),
			Value:     g.value,
			Percent:   stats.SafeDiv(g.value, res.Total),
		})
	}
	return res, nil
}

// 内置转化率：分子为对应时间列非空的行数，分母为小订总量
var builtinRates = map[string]string{
	"lock_rate":     dataaccess.ColLockTime,
	"delivery_rate": dataaccess.ColDeliveryDate,
	"invoice_rate":  dataaccess.ColInvoiceUploadTime,
}

var defaultRates = []string{"lock_rate", "delivery_rate"}

// RatioTool 比率分析，基准为按下单日期统计的总量
type RatioTool struct {
	named
	dc *dataaccess.DataContext
}

// NewRatioTool 创建比率工具
func NewRatioTool(dc *dataaccess.DataContext) *RatioTool {
	return &RatioTool{named: named{names: []string{"ratio", "ratio_analysis"}}, dc: dc}
}

// Execute 实现 Tool
func (t *RatioTool) Execute(ctx context.Context, step dsl.Step) (Result, error) {
	p := step.Parameters
	dateRange := p.String("date_range")
	names := p.StringSlice("metrics")
	numerator, denominator := p.String("numerator"), p.String("denominator")
	if len(names) == 0 && numerator == "" {
		names = defaultRates
	}

	base, err := selectFor(ctx, t.dc, step, dataaccess.MetricTotalVolume, dateRange)
	if err != nil {
		return nil, err
	}
	res := &RatioResult{Base: newBase(KindRatio, metricName(p), dateRange), Ratios: []Ratio{}}
	res.absorb(base)
	total := float64(base.View.Len())

	for _, name := range names {
		if col, ok := builtinRates[name]; ok {
			num := 0.0
			if base.View.Has(col) {
				num = float64(base.View.CountValid(col))
			} else {
				res.Diagnostics = append(res.Diagnostics, "column "+col+" not found for "+name)
			}
			res.Ratios = append(res.Ratios, Ratio{Name: name, Value: stats.SafeDiv(num, total), Numerator: num, Denominator: total})
			continue
		}
		m := dataaccess.ResolveMetric(name)
		if !m.IsRatio() {
			res.Diagnostics = append(res.Diagnostics, "unknown ratio metric "+name)
			continue
		}
		sel, err := selectFor(ctx, t.dc, step, name, dateRange)
		if err != nil {
			return nil, err
		}
		res.Diagnostics = append(res.Diagnostics, sel.Diagnostics...)
		num, den := sel.Metric.Components(sel.View)
		res.Ratios = append(res.Ratios, Ratio{Name: m.Name, Value: stats.SafeDiv(num, den), Numerator: num, Denominator: den})
	}

	if numerator != "" && denominator != "" {
		numSel, err := selectFor(ctx, t.dc, step, numerator, dateRange)
		if err != nil {
			return nil, err
		}
		denSel, err := selectFor(ctx, t.dc, step, denominator, dateRange)
		if err != nil {
			return nil, err
		}
		res.Diagnostics = append(res.Diagnostics, numSel.Diagnostics...)
		res.Diagnostics = append(res.Diagnostics, denSel.Diagnostics...)
		num := numSel.Metric.Aggregate(numSel.View)
		den := denSel.Metric.Aggregate(denSel.View)
		res.Ratios = append(res.Ratios, Ratio{
			Name:        numerator + "/" + denominator,
			Value:       stats.SafeDiv(num, den),
			Numerator:   num,
			Denominator: den,
		})
	}
	return res, nil
}

// CompositionTool 构成占比；指定 interval 时每个周期内占比之和为 1
type CompositionTool struct {
	named
	dc *dataaccess.DataContext
}

// NewCompositionTool 创建构成工具
func NewCompositionTool(dc *dataaccess.DataContext) *CompositionTool {
	return &CompositionTool{named: named{names: []string{"composition"}}, dc: dc}
}

// Execute 实现 Tool
func (t *CompositionTool) Execute(ctx context.Context, step dsl.Step) (Result, error) {
	p := step.Parameters
	metric := metricName(p)
	dateRange := p.String("date_range")
	dimension := p.String("dimension")
	if dimension == "" {
		if dims := p.Dimensions(); len(dims) > 0 {
			dimension = dims[0]
		}
	}

	sel, err := selectFor(ctx, t.dc, step, metric, dateRange)
	if err != nil {
		return nil, err
	}
	res := &ContributionResult{
		Base:      newBase(KindContribution, metric, dateRange),
		Tool:      "composition",
		Dimension: dimension,
		Total:     sel.Metric.Aggregate(sel.View),
		Items:     []Contribution{},
	}
	res.absorb(sel)

	readers, skipped := dimensionReaders(sel, []string{dimension}, t.dc.Definition())
	if dimension == "" || len(skipped) > 0 {
		res.Diagnostics = append(res.Diagnostics, "dimension "+dimension+" not found")
		return res, nil
	}

	interval := p.String("interval")
	if interval == "" {
		groups := groupBy(sel, readers)
		sortByValueDesc(groups)
		sum := sumValues(groups)
		for _, g := range groups {
			res.Items = append(res.Items, Contribution{
				Dimension: labelOf(g.keys[0]),
				Value:     g.value,
				Percent:   stats.SafeDiv(g.value, sum),
			})
		}
		return res, nil
	}

	grain := dataaccess.ParseGrain(interval, dataaccess.GrainMonth)
	res.Interval = string(grain)
	groups := groupBy(sel, []dimReader{timeReader(sel, grain), readers[0]})
	buckets := make(map[string]float64)
	for _, g := range groups {
		buckets[g.keys[0]] += g.value
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].keys[0] != groups[j].keys[0] {
			return groups[i].keys[0] < groups[j].keys[0]
		}
		if groups[i].value != groups[j].value {
			return groups[i].value > groups[j].value
		}
		return groups[i].keys[1] < groups[j].keys[1]
	})
	for _, g := range groups {
		if g.keys[0] == "" {
			continue
		}
		res.Items = append(res.Items, Contribution{
			Bucket:    g.keys[0],
			Dimension: labelOf(g.keys[1]),
			Value:     g.value,
			Percent:   stats.SafeDiv(g.value, buckets[g.keys[0]]),
		})
	}
	return res, nil
}

// ParetoTool 帕累托：降序累计占比
type ParetoTool struct {
	named
	dc *dataaccess.DataContext
}

// NewParetoTool 创建帕累托工具
func NewParetoTool(dc *dataaccess.DataContext) *ParetoTool {
	return &ParetoTool{named: named{names: []string{"pareto"}}, dc: dc}
}

// Execute 实现 Tool
func (t *ParetoTool) Execute(ctx context.Context, step dsl.Step) (Result, error) {
	p := step.Parameters
	metric := metricName(p)
	dateRange := p.String("date_range")
	dimension := p.String("dimension")
	if dimension == "" {
		if dims := p.Dimensions(); len(dims) > 0 {
			dimension = dims[0]
		}
	}

	sel, err := selectFor(ctx, t.dc, step, metric, dateRange)
	if err != nil {
		return nil, err
	}
	res := &ContributionResult{
		Base:      newBase(KindContribution, metric, dateRange),
		Tool:      "pareto",
		Dimension: dimension,
		Items:     []Contribution{},
	}
	res.absorb(sel)

	readers, skipped := dimensionReaders(sel, []string{dimension}, t.dc.Definition())
	if dimension == "" || len(skipped) > 0 {
		res.Diagnostics = append(res.Diagnostics, "dimension "+dimension+" not found")
		return res, nil
	}
	groups := groupBy(sel, readers)
	sortByValueDesc(groups)
	res.Total = sumValues(groups)

	cum := 0.0
	for _, g := range groups {
		pct := stats.SafeDiv(g.value, res.Total)
		cum += pct
		res.Items = append(res.Items, Contribution{
			Dimension:         labelOf(g.keys[0]),
			Value:             g.value,
			Percent:           pct,
			CumulativePercent: cum,
		})
	}
	return res, nil
}

func sumValues(groups []*group) float64 {
	sum := 0.0
	for _, g := range groups {
		sum += g.value
	}
	return sum
}

func labelOf(key string) string {
	if key == "" {
		return unknownKey
	}
	return key
}
