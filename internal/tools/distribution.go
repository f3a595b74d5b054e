package tools

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/signals"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/stats"
)

const maxCategories = 30

// DistributionTool 类别占比分布（有 dimension）或数值直方图（无 dimension）
type DistributionTool struct {
	named
	dc   *dataaccess.DataContext
	opts Options
}

// NewDistributionTool 创建 distribution / histogram 工具
func NewDistributionTool(dc *dataaccess.DataContext, opts Options) *DistributionTool {
	return &DistributionTool{named: named{names: []string{"distribution", "histogram"}}, dc: dc, opts: opts.withDefaults()}
}

// Execute 实现 Tool
func (t *DistributionTool) Execute(ctx context.Context, step dsl.Step) (Result, error) {
	p := step.Parameters
	metric := metricName(p)
	dateRange := p.String("date_range")
	compareRange := p.String("compare_date_range")
	dimension := p.String("dimension")

	primary, err := selectFor(ctx, t.dc, step, metric, dateRange)
	if err != nil {
		return nil, err
	}
	res := &DistributionResult{
		Base:       newBase(KindDistribution, metric, dateRange),
		Dimension:  dimension,
		SampleSize: primary.View.Len(),
	}
	res.absorb(primary)

	if primary.Empty() {
		res.emit(signals.DataQualityWarning(metric,
			"Insufficient data to calculate distribution for %s in %s. (Sample size: 0)", metric, dateRange))
		return res, nil
	}

	var compare *dataaccess.Selection
	if compareRange != "" {
		compare, err = selectFor(ctx, t.dc, step, metric, compareRange)
		if err != nil {
			return nil, err
		}
		res.Diagnostics = append(res.Diagnostics, compare.Diagnostics...)
	}

	if dimension != "" {
		t.categorical(res, primary, compare, compareRange)
		return res, nil
	}
	t.histogram(res, primary, compare, compareRange, p.Int("bins", t.opts.HistogramBins))
	return res, nil
}

func (t *DistributionTool) categorical(res *DistributionResult, primary, compare *dataaccess.Selection, compareRange string) {
	def := t.dc.Definition()
	readers, skipped := dimensionReaders(primary, []string{res.Dimension}, def)
	if len(skipped) > 0 || len(readers) == 0 {
		sig := signals.Failed(res.Metric, "Dimension %s not found in data.", res.Dimension)
		sig.Dimension = res.Dimension
		res.emit(sig)
		return
	}
	primaryShares := categoryShares(primary, readers)

	compareShares := map[string]float64{}
	if compare != nil && !compare.Empty() {
		if cr, skipped := dimensionReaders(compare, []string{res.Dimension}, def); len(skipped) == 0 {
			compareShares = categoryShares(compare, cr)
		}
	}

	cats := make([]string, 0, len(primaryShares)+len(compareShares))
	for c := range primaryShares {
		cats = append(cats, c)
	}
	for c := range compareShares {
		if _, ok := primaryShares[c]; !ok {
			cats = append(cats, c)
		}
	}
	sort.Slice(cats, func(i, j int) bool {
		pi, pj := primaryShares[cats[i]], primaryShares[cats[j]]
		if pi != pj {
			return pi > pj
		}
		return cats[i] < cats[j]
	})

	sad := 0.0
	dist := make([]CategoryShare, 0, len(cats))
	for _, c := range cats {
		pv, cv := primaryShares[c], compareShares[c]
		diff := pv - cv
		sad += math.Abs(diff)
		dist = append(dist, CategoryShare{Category: c, PrimaryPct: pv, ComparePct: cv, DiffPct: diff})
	}
	if len(dist) > maxCategories {
		dist = dist[:maxCategories]
	}
	res.Distribution = dist

	if len(compareShares) > 0 {
		threshold := t.opts.DistributionThreshold
		res.Comparison = &Comparison{CompareDateRange: compareRange, Distance: sad, Threshold: threshold}
		res.emit(signals.Distribution(res.Metric, res.Dimension, sad, threshold, "Structural shift score"))
	}
}

// categoryShares 各类别行数占比（PMF），空值不计入
func categoryShares(sel *dataaccess.Selection, readers []dimReader) map[string]float64 {
	counts := make(map[string]float64)
	total := 0.0
	for i := 0; i < sel.View.Len(); i++ {
		k := readers[0].read(i)
		if k == "" {
			continue
		}
		counts[k]++
		total++
	}
	for k, c := range counts {
		counts[k] = stats.SafeDiv(c, total)
	}
	return counts
}

func (t *DistributionTool) histogram(res *DistributionResult, primary, compare *dataaccess.Selection, compareRange string, bins int) {
	primaryValues := primary.Metric.Values(primary.View)
	if len(primaryValues) == 0 {
		res.emit(signals.DataQualityWarning(res.Metric, "metric %s has no numeric values to bin", res.Metric))
		return
	}
	var compareValues []float64
	if compare != nil {
		compareValues = compare.Metric.Values(compare.View)
	}
	if bins <= 0 {
		bins = t.opts.HistogramBins
	}

	combined := append(append([]float64(nil), primaryValues...), compareValues...)
	lo, hi := stats.MinMax(combined)
	upper := stats.Quantile(combined, 0.99)
	if upper == lo {
		upper = hi
	}

	primaryDist, edges := binShares(primaryValues, bins, lo, upper)
	res.Bins = make([]BinShare, bins)
	for i := 0; i < bins; i++ {
		res.Bins[i] = BinShare{
			Range:      fmt.Sprintf("[%.1f, %.1f)", edges[i], edges[i+1]),
			Min:        edges[i],
			Max:        edges[i+1],
			PrimaryPct: primaryDist[i],
		}
	}

	if len(compareValues) == 0 {
		return
	}
	compareDist, _ := binShares(compareValues, bins, lo, upper)
	sad := 0.0
	for i := range res.Bins {
		res.Bins[i].ComparePct = compareDist[i]
		sad += math.Abs(primaryDist[i] - compareDist[i])
	}
	threshold := t.opts.HistogramThreshold
	res.Comparison = &Comparison{CompareDateRange: compareRange, Distance: sad, Threshold: threshold}
	res.emit(signals.Distribution(res.Metric, "", sad, threshold, "Distribution difference score"))
}

// binShares 截断到 [lo, upper] 后分箱，返回各箱占比
func binShares(values []float64, bins int, lo, upper float64) ([]float64, []float64) {
	clipped := make([]float64, len(values))
	for i, v := range values {
		clipped[i] = math.Min(math.Max(v, lo), upper)
	}
	counts, edges := stats.Histogram(clipped, bins, lo, upper)
	total := float64(len(values))
	for i := range counts {
		counts[i] = stats.SafeDiv(counts[i], total)
	}
	return counts, edges
}
