// Package agent 自然语言问句 -> DSL 步骤：大模型抽取，失败时降级为关键词规则
package agent

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// Extraction 抽取结果
type Extraction struct {
	Tool       string     `json:"tool"`
	Parameters dsl.Params `json:"parameters"`
}

var metricKeywords = []struct {
	words  []string
	metric string
}{
	{[]string{"锁单数", "锁单量", "销量"}, dataaccess.MetricLockVolume},
	{[]string{"交付数", "交付量"}, dataaccess.MetricDelivery},
	{[]string{"开票金额"}, dataaccess.MetricInvoiceAmount},
	{[]string{"开票数", "开票量"}, dataaccess.MetricInvoiceVolume},
	{[]string{"小订数", "小订量", "意向金"}, dataaccess.MetricSmallOrder},
}

var dimensionPatterns = []struct {
	re  *regexp.Regexp
	dim string
}{
	{regexp.MustCompile(`(按|分|各).*(大区)`), dataaccess.ColParentRegion},
	{regexp.MustCompile(`(按|分|各).*(城市)`), dataaccess.ColStoreCity},
	{regexp.MustCompile(`(按|分|各).*(门店)`), dataaccess.ColStoreName},
	{regexp.MustCompile(`(按|分|各).*(渠道)`), dataaccess.ColChannel},
	{regexp.MustCompile(`(按|分|各).*(产品|产品名称)`), dataaccess.ColProductName},
	{regexp.MustCompile(`(按|分|各).*(车型|车型分组)`), dataaccess.ColSeriesGroup},
	{regexp.MustCompile(`(按|分|各).*(性别)`), dataaccess.ColGender},
	{regexp.MustCompile(`(按|分|各).*(年龄段|年龄)`), "age_band"},
}

var (
	reDay      = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	reMonth    = regexp.MustCompile(`(\d{4})年(\d{1,2})月`)
	reLastDays = regexp.MustCompile(`(近|最近|过去)(\d+)(天|日)`)
	reSpace    = regexp.MustCompile(`\s+`)
)

// Heuristic 关键词规则抽取器
type Heuristic struct {
	def *dataaccess.BusinessDefinition
}

// NewHeuristic 创建规则抽取器
func NewHeuristic(def *dataaccess.BusinessDefinition) *Heuristic {
	return &Heuristic{def: def}
}

// Extract 从问句中抽取指标、时间、维度与过滤条件；有维度时使用 rollup
func (h *Heuristic) Extract(question string) Extraction {
	q := strings.TrimSpace(question)
	compact := reSpace.ReplaceAllString(q, "")

	params := dsl.Params{
		"metric":     extractMetric(q),
		"date_range": extractDateRange(q, compact),
	}
	if filters := h.extractFilters(q); len(filters) > 0 {
		params["filters"] = filters
	}

	tool := "query"
	for _, p := range dimensionPatterns {
		if p.re.MatchString(q) {
			tool = "rollup"
			params["dimension"] = p.dim
			break
		}
	}
	return Extraction{Tool: tool, Parameters: params}
}

func extractMetric(q string) string {
	for _, k := range metricKeywords {
		for _, w := range k.words {
			if strings.Contains(q, w) {
				return k.metric
			}
		}
	}
	return dataaccess.MetricLockVolume
}

func extractDateRange(q, compact string) string {
	if strings.Contains(q, "昨日") || strings.Contains(q, "昨天") {
		return "yesterday"
	}
	if m := reDay.FindStringSubmatch(compact); m != nil {
		return fmt.Sprintf("%s-%02d-%02d", m[1], atoi(m[2]), atoi(m[3]))
	}
	if m := reMonth.FindStringSubmatch(compact); m != nil {
		return fmt.Sprintf("%s-%02d", m[1], atoi(m[2]))
	}
	if m := reLastDays.FindStringSubmatch(compact); m != nil {
		return fmt.Sprintf("last_%d_days", atoi(m[2]))
	}
	return "yesterday"
}

// extractFilters 车型口语名优先，其次车型分组键；再叠加性别与动力类型
func (h *Heuristic) extractFilters(q string) []interface{} {
	var filters []interface{}

	type hit struct {
		name string
		pos  int
	}
	var models []hit
	for _, m := range h.def.ModelKeys() {
		if m == "" || !strings.Contains(q, m) {
			continue
		}
		covered := false
		for _, prev := range models {
			if strings.Contains(prev.name, m) {
				covered = true
				break
			}
		}
		if !covered {
			models = append(models, hit{name: m, pos: strings.Index(q, m)})
		}
	}
	if len(models) > 0 {
		sort.Slice(models, func(i, j int) bool { return models[i].pos < models[j].pos })
		values := make([]interface{}, len(models))
		for i, m := range models {
			values[i] = m.name
		}
		filters = append(filters, filter(dataaccess.ColSeries, dataaccess.OpIn, values))
	} else {
		for _, k := range h.def.SeriesKeys() {
			if k != "" && strings.Contains(q, k) {
				filters = append(filters, filter(dataaccess.ColSeriesGroup, dataaccess.OpEq, k))
				break
			}
		}
	}

	both := strings.Contains(q, "男女")
	switch {
	case strings.Contains(q, "女性") || (strings.Contains(q, "女") && !both):
		filters = append(filters, filter(dataaccess.ColGender, dataaccess.OpEq, "女"))
	case strings.Contains(q, "男性") || (strings.Contains(q, "男") && !both):
		filters = append(filters, filter(dataaccess.ColGender, dataaccess.OpEq, "男"))
	}

	switch {
	case strings.Contains(q, dataaccess.ProductTypeEREV):
		filters = append(filters, filter(dataaccess.ColProductType, dataaccess.OpEq, dataaccess.ProductTypeEREV))
	case strings.Contains(q, dataaccess.ProductTypeBEV):
		filters = append(filters, filter(dataaccess.ColProductType, dataaccess.OpEq, dataaccess.ProductTypeBEV))
	}
	return filters
}

func filter(field, op string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"field": field, "op": op, "value": value}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
