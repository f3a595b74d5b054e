package tools

import (
	"context"
	"sort"
	"strings"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// Options 工具参数
type Options struct {
	AnomalyStepIDs        []string
	HistogramBins         int
	DistributionThreshold float64
	HistogramThreshold    float64
	TopLimit              int
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		AnomalyStepIDs:        []string{"anomaly_check"},
		HistogramBins:         30,
		DistributionThreshold: 0.2,
		HistogramThreshold:    0.3,
		TopLimit:              10,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if len(o.AnomalyStepIDs) == 0 {
		o.AnomalyStepIDs = def.AnomalyStepIDs
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = def.HistogramBins
	}
	if o.DistributionThreshold <= 0 {
		o.DistributionThreshold = def.DistributionThreshold
	}
	if o.HistogramThreshold <= 0 {
		o.HistogramThreshold = def.HistogramThreshold
	}
	if o.TopLimit <= 0 {
		o.TopLimit = def.TopLimit
	}
	return o
}

// IsAnomalyStep 步骤 id 是否为异常检测步骤
func (o Options) IsAnomalyStep(id string) bool {
	for _, s := range o.AnomalyStepIDs {
		if s == id {
			return true
		}
	}
	return false
}

// selectFor 按步骤参数选取数据
func selectFor(ctx context.Context, dc *dataaccess.DataContext, step dsl.Step, metric, dateRange string) (*dataaccess.Selection, error) {
	filters, err := step.Parameters.Filters()
	if err != nil {
		return nil, err
	}
	return dc.Select(ctx, dataaccess.Query{Metric: metric, DateRange: dateRange, Filters: filters})
}

const (
	ageBandDim   = "age_band"
	ageBandUnset = "未知"
	allKey       = "All"
	keySep       = "\x1f"
)

var ageBands = []struct {
	upper float64
	label string
}{
	{25, "<25"},
	{30, "25-29"},
	{35, "30-34"},
	{40, "35-39"},
	{45, "40-44"},
	{50, "45-49"},
}

// AgeBand 年龄分段，超出 age_limit 或缺失记为未知
func AgeBand(age float64, ok bool, def *dataaccess.BusinessDefinition) string {
	if !ok {
		return ageBandUnset
	}
	if lo, hi, has := def.AgeBounds(); has && (age < lo || age > hi) {
		return ageBandUnset
	}
	for _, b := range ageBands {
		if age < b.upper {
			return b.label
		}
	}
	return "50+"
}

// dimReader 单个分组维度的取值方式
type dimReader struct {
	name  string
	grain dataaccess.Grain
	time  bool
	read  func(i int) string
}

// dimensionReaders 构造分组维度读取器；不存在的普通维度被跳过
func dimensionReaders(sel *dataaccess.Selection, dims []string, def *dataaccess.BusinessDefinition) ([]dimReader, []string) {
	v := sel.View
	var readers []dimReader
	var skipped []string
	for _, dim := range dims {
		dim := dim
		if g, ok := dataaccess.TimeDimensionGrain(dim, sel.Metric); ok {
			col := sel.TimeColumn
			readers = append(readers, dimReader{name: dim, grain: g, time: true, read: func(i int) string {
				t, ok := v.Time(i, col)
				if !ok {
					return ""
				}
				return dataaccess.BucketLabel(t, g)
			}})
			continue
		}
		if dim == ageBandDim && !v.Has(ageBandDim) {
			readers = append(readers, dimReader{name: dim, read: func(i int) string {
				age, ok := v.Num(i, dataaccess.ColAge)
				return AgeBand(age, ok, def)
			}})
			continue
		}
		if !v.Has(dim) {
			skipped = append(skipped, dim)
			continue
		}
		readers = append(readers, dimReader{name: dim, read: func(i int) string {
			return v.Value(i, dim)
		}})
	}
	return readers, skipped
}

// group 分组结果
type group struct {
	keys  []string
	view  dataaccess.View
	value float64
}

// groupBy 按读取器分组聚合；空值归入空字符串键，保留首次出现顺序
func groupBy(sel *dataaccess.Selection, readers []dimReader) []*group {
	v := sel.View
	if len(readers) == 0 {
		return []*group{{keys: []string{allKey}, view: v, value: sel.Metric.Aggregate(v)}}
	}
	index := make(map[string]int)
	var positions [][]int
	var keys [][]string
	for i := 0; i < v.Len(); i++ {
		k := make([]string, len(readers))
		for j, r := range readers {
			k[j] = r.read(i)
		}
		joined := strings.Join(k, keySep)
		pos, ok := index[joined]
		if !ok {
			pos = len(positions)
			index[joined] = pos
			positions = append(positions, nil)
			keys = append(keys, k)
		}
		positions[pos] = append(positions[pos], i)
	}
	out := make([]*group, len(positions))
	for p := range positions {
		gv := v.Pick(positions[p])
		out[p] = &group{keys: keys[p], view: gv, value: sel.Metric.Aggregate(gv)}
	}
	return out
}

// sortByValueDesc 值降序，键升序兜底
func sortByValueDesc(groups []*group) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].value != groups[j].value {
			return groups[i].value > groups[j].value
		}
		return strings.Join(groups[i].keys, keySep) < strings.Join(groups[j].keys, keySep)
	})
}

func displayKey(keys []string) string {
	return strings.Join(keys, " / ")
}

// metricName 步骤中的指标名（允许 total_metric 别名）
func metricName(p dsl.Params) string {
	if m := p.String("metric"); m != "" {
		return m
	}
	return p.String("total_metric")
}
