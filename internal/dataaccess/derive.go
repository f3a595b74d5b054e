package dataaccess

import (
	"strings"
)

const (
	// SeriesOther 未匹配任何规则的车型分组
	SeriesOther = "其他"

	ProductTypeEREV = "增程"
	ProductTypeBEV  = "纯电"
)

// SeriesGroup 由 product_name 推导车型分组，规则按顺序匹配
func SeriesGroup(productName string) string {
	p := productName
	switch {
	case strings.Contains(p, "新一代") && strings.Contains(p, "LS6"):
		return "CM2"
	case strings.Contains(p, "全新") && strings.Contains(p, "LS6"):
		return "CM1"
	case strings.Contains(p, "LS6"):
		return "CM0"
	case strings.Contains(p, "全新") && strings.Contains(p, "L6"):
		return "DM1"
	case strings.Contains(p, "L6"):
		return "DM0"
	case strings.Contains(p, "LS9"):
		return "LS9"
	case strings.Contains(p, "LS7"):
		return "LS7"
	case strings.Contains(p, "L7"):
		return "L7"
	default:
		return SeriesOther
	}
}

// ProductType 动力类型
func ProductType(productName string) string {
	if strings.Contains(productName, ProductTypeEREV) {
		return ProductTypeEREV
	}
	return ProductTypeBEV
}

// deriveColumns 加载后追加 series_group / series / product_type
func deriveColumns(t *Table) {
	if t == nil || !t.Has(ColProductName) {
		return
	}
	all := t.All()
	names := make([]string, all.Len())
	for i := range names {
		names[i], _ = all.Str(i, ColProductName)
	}
	t.AddStringColumn(ColSeriesGroup, func(i int) (string, bool) {
		return SeriesGroup(names[i]), true
	})
	t.AddStringColumn(ColSeries, func(i int) (string, bool) {
		return SeriesGroup(names[i]), true
	})
	t.AddStringColumn(ColProductType, func(i int) (string, bool) {
		return ProductType(names[i]), true
	})
}
