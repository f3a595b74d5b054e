package dataaccess

import (
	"fmt"
	"strings"
	"time"
)

// 过滤操作符
const (
	OpEq       = "="
	OpNe       = "!="
	OpIn       = "in"
	OpNotIn    = "not_in"
	OpContains = "contains"
	OpNotNull  = "not_null"
	OpIsNull   = "is_null"
	OpGt       = ">"
	OpGte      = ">="
	OpLt       = "<"
	OpLte      = "<="
)

// Filter 声明式过滤条件
type Filter struct {
	Field string      `json:"field" yaml:"field"`
	Op    string      `json:"op" yaml:"op"`
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

// String 展示
func (f Filter) String() string {
	if f.Value == nil {
		return fmt.Sprintf("%s %s", f.Field, f.Op)
	}
	return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
}

// FilterOutcome 过滤执行结果（best-effort，失败的过滤被跳过）
type FilterOutcome struct {
	Filter  Filter `json:"filter"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// ApplyFilters 按顺序应用过滤，每个过滤只会收窄结果
func ApplyFilters(v View, filters []Filter, def *BusinessDefinition) (View, []FilterOutcome) {
	outcomes := make([]FilterOutcome, 0, len(filters))
	for _, raw := range filters {
		f := normalizeFilter(raw, def)
		next, reason := applyFilter(v, f)
		if reason != "" {
			outcomes = append(outcomes, FilterOutcome{Filter: f, Reason: reason})
			continue
		}
		v = next
		outcomes = append(outcomes, FilterOutcome{Filter: f, Applied: true})
	}
	return v, outcomes
}

// normalizeFilter 操作符归一化与车型映射展开
func normalizeFilter(f Filter, def *BusinessDefinition) Filter {
	f.Field = strings.TrimSpace(f.Field)
	f.Op = strings.ToLower(strings.TrimSpace(f.Op))
	switch f.Op {
	case "", "==", "eq":
		f.Op = OpEq
	case "<>", "ne":
		f.Op = OpNe
	case "not in", "nin":
		f.Op = OpNotIn
	case "notnull", "is_not_null":
		f.Op = OpNotNull
	case "isnull":
		f.Op = OpIsNull
	}

	values := toList(f.Value)
	if f.Op == OpEq && len(values) > 1 {
		f.Op = OpIn
	}

	if f.Field == ColSeries || f.Field == ColSeriesGroup || f.Field == "model" {
		if f.Op == OpEq || f.Op == OpIn {
			expanded := make([]interface{}, 0, len(values))
			matched := false
			for _, val := range values {
				if groups, ok := def.ExpandModel(formatAny(val)); ok {
					matched = true
					for _, g := range groups {
						expanded = append(expanded, g)
					}
					continue
				}
				expanded = append(expanded, val)
			}
			if matched {
				f.Field = ColSeriesGroup
				f.Op = OpIn
				f.Value = dedupe(expanded)
			}
		}
		if f.Field == "model" {
			f.Field = ColSeriesGroup
		}
	}
	return f
}

func applyFilter(v View, f Filter) (View, string) {
	if f.Field == "" {
		return v, "empty field"
	}
	if !v.Has(f.Field) {
		return v, fmt.Sprintf("column %s not found", f.Field)
	}
	kind := v.Kind(f.Field)

	switch f.Op {
	case OpNotNull:
		return v.Where(func(i int) bool { return v.Valid(i, f.Field) }), ""
	case OpIsNull:
		return v.Where(func(i int) bool { return !v.Valid(i, f.Field) }), ""
	case OpEq, OpIn, OpNe, OpNotIn:
		set := make(map[string]struct{})
		for _, val := range toList(f.Value) {
			set[canonicalValue(val, kind, v.Table().loc)] = struct{}{}
		}
		if len(set) == 0 {
			return v, "empty value"
		}
		negate := f.Op == OpNe || f.Op == OpNotIn
		return v.Where(func(i int) bool {
			_, hit := set[v.Value(i, f.Field)]
			if negate {
				return !hit
			}
			return hit && v.Valid(i, f.Field)
		}), ""
	case OpContains:
		needle := formatAny(f.Value)
		if f.Value == nil || needle == "" {
			return v, "empty value"
		}
		return v.Where(func(i int) bool {
			return v.Valid(i, f.Field) && strings.Contains(v.Value(i, f.Field), needle)
		}), ""
	case OpGt, OpGte, OpLt, OpLte:
		return compareFilter(v, f, kind)
	}
	return v, fmt.Sprintf("unsupported op %s", f.Op)
}

func compareFilter(v View, f Filter, kind ColumnKind) (View, string) {
	if kind == KindTime {
		target, ok := toTime(f.Value, v.Table().loc)
		if !ok {
			return v, fmt.Sprintf("cannot cast %v to time", f.Value)
		}
		return v.Where(func(i int) bool {
			t, ok := v.Time(i, f.Field)
			return ok && compareOrdered(t.Sub(target).Seconds(), 0, f.Op)
		}), ""
	}
	target, ok := toFloat(f.Value)
	if !ok {
		return v, fmt.Sprintf("cannot cast %v to number", f.Value)
	}
	return v.Where(func(i int) bool {
		x, ok := v.Num(i, f.Field)
		return ok && compareOrdered(x, target, f.Op)
	}), ""
}

func compareOrdered(a, b float64, op string) bool {
	switch op {
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	}
	return false
}

// canonicalValue 过滤值转换为与 View.Value 一致的表示
func canonicalValue(val interface{}, kind ColumnKind, loc *time.Location) string {
	switch kind {
	case KindNumber:
		if f, ok := toFloat(val); ok {
			return formatAny(f)
		}
	case KindTime:
		if t, ok := toTime(val, loc); ok {
			return t.Format(DateLayout)
		}
	}
	return strings.TrimSpace(formatAny(val))
}

func toList(v interface{}) []interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return x
	case []string:
		out := make([]interface{}, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]interface{}, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	default:
		return []interface{}{x}
	}
}

func dedupe(values []interface{}) []interface{} {
	seen := make(map[string]struct{}, len(values))
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		key := formatAny(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// singleSeries 已应用的车型过滤若只指定了一个分组则返回它
func singleSeries(outcomes []FilterOutcome) (string, bool) {
	for i := len(outcomes) - 1; i >= 0; i-- {
		o := outcomes[i]
		if !o.Applied {
			continue
		}
		if o.Filter.Field != ColSeriesGroup && o.Filter.Field != ColSeries {
			continue
		}
		if o.Filter.Op != OpEq && o.Filter.Op != OpIn {
			continue
		}
		values := toList(o.Filter.Value)
		if len(values) == 1 {
			return formatAny(values[0]), true
		}
		return "", false
	}
	return "", false
}
