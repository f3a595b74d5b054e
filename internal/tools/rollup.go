package tools

import (
	"context"
	"sort"
	"strings"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// RollupTool 多维分组聚合，top_n 为按值排序截断的变体
type RollupTool struct {
	named
	dc   *dataaccess.DataContext
	opts Options
}

// NewRollupTool 创建 rollup / top_n 工具
func NewRollupTool(dc *dataaccess.DataContext, opts Options) *RollupTool {
	return &RollupTool{named: named{names: []string{"rollup", "top_n"}}, dc: dc, opts: opts.withDefaults()}
}

// Execute 实现 Tool
func (t *RollupTool) Execute(ctx context.Context, step dsl.Step) (Result, error) {
	p := step.Parameters
	metric := metricName(p)
	dateRange := p.String("date_range")
	dims := p.Dimensions()

	sel, err := selectFor(ctx, t.dc, step, metric, dateRange)
	if err != nil {
		return nil, err
	}

	res := &RollupResult{
		Base:       newBase(KindRollup, metric, dateRange),
		Dimensions: dims,
		SampleSize: sel.View.Len(),
		Filters:    sel.Filters,
	}
	res.absorb(sel)

	readers, skipped := dimensionReaders(sel, dims, t.dc.Definition())
	for _, d := range skipped {
		res.Diagnostics = append(res.Diagnostics, "dimension "+d+" not found")
	}
	groups := groupBy(sel, readers)

	timeIdx := -1
	for i, r := range readers {
		if r.time {
			timeIdx = i
			break
		}
	}
	if timeIdx >= 0 && sel.Window.Kind == dataaccess.WindowLaunch && sel.Window.Resolved() {
		groups = zeroFillLaunch(groups, readers, timeIdx, sel.Window)
	}

	order := strings.ToLower(p.String("order"))
	limit := p.Int("limit", 0)
	if step.Tool == "top_n" {
		if order == "" {
			order = "desc"
		}
		if limit <= 0 {
			limit = t.opts.TopLimit
		}
	}

	switch {
	case order == "asc" || order == "desc":
		sortByValueDesc(groups)
		if order == "asc" {
			reverseGroups(groups)
		}
	case timeIdx >= 0:
		sortChronological(groups, timeIdx)
	default:
		sortByValueDesc(groups)
	}
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}

	res.Rows = make([]Row, 0, len(groups))
	for _, g := range groups {
		keys := make(map[string]string, len(readers))
		for i, r := range readers {
			keys[r.name] = g.keys[i]
		}
		res.Rows = append(res.Rows, Row{Dimension: displayKey(g.keys), Keys: keys, Value: g.value})
	}
	return res, nil
}

// zeroFillLaunch 上市窗口按天补齐：其余维度的每种组合都有完整的 N 个时间桶
func zeroFillLaunch(groups []*group, readers []dimReader, timeIdx int, w dataaccess.Window) []*group {
	grain := readers[timeIdx].grain
	var labels []string
	seenLabel := make(map[string]bool)
	for _, d := range w.Days() {
		l := dataaccess.BucketLabel(d, grain)
		if !seenLabel[l] {
			seenLabel[l] = true
			labels = append(labels, l)
		}
	}

	others := func(keys []string) string {
		rest := make([]string, 0, len(keys)-1)
		for i, k := range keys {
			if i != timeIdx {
				rest = append(rest, k)
			}
		}
		return strings.Join(rest, keySep)
	}

	existing := make(map[string]*group, len(groups))
	var combos [][]string
	seenCombo := make(map[string]bool)
	for _, g := range groups {
		existing[strings.Join(g.keys, keySep)] = g
		c := others(g.keys)
		if !seenCombo[c] {
			seenCombo[c] = true
			combos = append(combos, g.keys)
		}
	}
	if len(combos) == 0 && len(readers) == 1 {
		combos = append(combos, []string{""})
	}

	out := make([]*group, 0, len(combos)*len(labels))
	for _, tmpl := range combos {
		for _, l := range labels {
			keys := append([]string(nil), tmpl...)
			keys[timeIdx] = l
			if g, ok := existing[strings.Join(keys, keySep)]; ok {
				out = append(out, g)
				continue
			}
			out = append(out, &group{keys: keys})
		}
	}
	return out
}

func sortChronological(groups []*group, timeIdx int) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].keys[timeIdx], groups[j].keys[timeIdx]
		if a != b {
			return a < b
		}
		return strings.Join(groups[i].keys, keySep) < strings.Join(groups[j].keys, keySep)
	})
}

func reverseGroups(groups []*group) {
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
}
