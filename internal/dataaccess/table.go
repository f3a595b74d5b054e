// Package dataaccess 数据访问层：列式明细表、指标解析、时间窗口、过滤与有效性掩码
package dataaccess

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ColumnKind 列类型
type ColumnKind int

const (
	KindString ColumnKind = iota + 1
	KindNumber
	KindTime
)

// DateLayout 日期标签格式
const DateLayout = "2006-01-02"

type column struct {
	kind  ColumnKind
	strs  []string
	nums  []float64
	times []time.Time
	valid []bool
}

func newColumn(kind ColumnKind) *column {
	return &column{kind: kind}
}

func (c *column) appendNull() {
	switch c.kind {
	case KindString:
		c.strs = append(c.strs, "")
	case KindNumber:
		c.nums = append(c.nums, math.NaN())
	case KindTime:
		c.times = append(c.times, time.Time{})
	}
	c.valid = append(c.valid, false)
}

// Table 列式明细表，空值以 valid=false 表示
type Table struct {
	name  string
	loc   *time.Location
	n     int
	cols  map[string]*column
	order []string
}

// NewTable 按 schema 创建空表
func NewTable(name string, schema map[string]ColumnKind, loc *time.Location) *Table {
	if loc == nil {
		loc = time.Local
	}
	t := &Table{name: name, loc: loc, cols: make(map[string]*column, len(schema))}
	names := make([]string, 0, len(schema))
	for col := range schema {
		names = append(names, col)
	}
	sort.Strings(names)
	for _, col := range names {
		t.cols[col] = newColumn(schema[col])
		t.order = append(t.order, col)
	}
	return t
}

// Name 表名
func (t *Table) Name() string { return t.name }

// Len 行数
func (t *Table) Len() int { return t.n }

// Location 时间列所在时区
func (t *Table) Location() *time.Location { return t.loc }

// Columns 列名（稳定顺序）
func (t *Table) Columns() []string { return append([]string(nil), t.order...) }

// Has 列是否存在
func (t *Table) Has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

// Kind 列类型，不存在返回 0
func (t *Table) Kind(col string) ColumnKind {
	if c, ok := t.cols[col]; ok {
		return c.kind
	}
	return 0
}

// Append 追加一行，未出现在 row 中的列记为空值；无法解析的值记为空值
func (t *Table) Append(row map[string]interface{}) {
	for name, c := range t.cols {
		v, ok := row[name]
		if !ok || v == nil {
			c.appendNull()
			continue
		}
		switch c.kind {
		case KindString:
			s := strings.TrimSpace(formatAny(v))
			c.strs = append(c.strs, s)
			c.valid = append(c.valid, s != "")
		case KindNumber:
			f, ok := toFloat(v)
			if !ok || math.IsNaN(f) {
				c.appendNull()
				continue
			}
			c.nums = append(c.nums, f)
			c.valid = append(c.valid, true)
		case KindTime:
			tm, ok := toTime(v, t.loc)
			if !ok {
				c.appendNull()
				continue
			}
			c.times = append(c.times, tm)
			c.valid = append(c.valid, true)
		}
	}
	t.n++
}

// AddStringColumn 以派生函数追加字符串列，已存在则覆盖
func (t *Table) AddStringColumn(name string, fn func(i int) (string, bool)) {
	c := newColumn(KindString)
	c.strs = make([]string, t.n)
	c.valid = make([]bool, t.n)
	for i := 0; i < t.n; i++ {
		s, ok := fn(i)
		if ok && s != "" {
			c.strs[i] = s
			c.valid[i] = true
		}
	}
	if _, exists := t.cols[name]; !exists {
		t.order = append(t.order, name)
	}
	t.cols[name] = c
}

// All 全量视图
func (t *Table) All() View {
	idx := make([]int, t.n)
	for i := range idx {
		idx[i] = i
	}
	return View{t: t, idx: idx}
}

// View 表的行子集（只保存行号）
type View struct {
	t   *Table
	idx []int
}

// Table 所属表
func (v View) Table() *Table { return v.t }

// Len 行数
func (v View) Len() int { return len(v.idx) }

// Has 列是否存在
func (v View) Has(col string) bool { return v.t != nil && v.t.Has(col) }

// Kind 列类型
func (v View) Kind(col string) ColumnKind {
	if v.t == nil {
		return 0
	}
	return v.t.Kind(col)
}

// Empty 同表的空视图
func (v View) Empty() View { return View{t: v.t, idx: []int{}} }

// Where 按谓词筛选，谓词参数为视图内位置
func (v View) Where(pred func(i int) bool) View {
	out := make([]int, 0, len(v.idx))
	for i, row := range v.idx {
		if pred(i) {
			out = append(out, row)
		}
	}
	return View{t: v.t, idx: out}
}

// Pick 按视图内位置取子集
func (v View) Pick(pos []int) View {
	out := make([]int, len(pos))
	for i, p := range pos {
		out[i] = v.idx[p]
	}
	return View{t: v.t, idx: out}
}

// Valid 第 i 行该列是否非空
func (v View) Valid(i int, col string) bool {
	c, ok := v.col(col)
	if !ok {
		return false
	}
	return c.valid[v.idx[i]]
}

// Str 字符串值
func (v View) Str(i int, col string) (string, bool) {
	c, ok := v.col(col)
	if !ok || c.kind != KindString {
		return "", false
	}
	row := v.idx[i]
	return c.strs[row], c.valid[row]
}

// Num 数值，字符串列会尝试解析
func (v View) Num(i int, col string) (float64, bool) {
	c, ok := v.col(col)
	if !ok {
		return 0, false
	}
	row := v.idx[i]
	if !c.valid[row] {
		return 0, false
	}
	switch c.kind {
	case KindNumber:
		return c.nums[row], true
	case KindString:
		f, err := strconv.ParseFloat(c.strs[row], 64)
		return f, err == nil
	}
	return 0, false
}

// Time 时间值
func (v View) Time(i int, col string) (time.Time, bool) {
	c, ok := v.col(col)
	if !ok || c.kind != KindTime {
		return time.Time{}, false
	}
	row := v.idx[i]
	return c.times[row], c.valid[row]
}

// Value 用于分组与比较的字符串表示，空值返回 ""
func (v View) Value(i int, col string) string {
	c, ok := v.col(col)
	if !ok {
		return ""
	}
	row := v.idx[i]
	if !c.valid[row] {
		return ""
	}
	switch c.kind {
	case KindString:
		return c.strs[row]
	case KindNumber:
		return strconv.FormatFloat(c.nums[row], 'f', -1, 64)
	case KindTime:
		return c.times[row].Format(DateLayout)
	}
	return ""
}

// Distinct 列的非空去重值（排序后）
func (v View) Distinct(col string) []string {
	seen := make(map[string]struct{})
	for i := 0; i < v.Len(); i++ {
		if s := v.Value(i, col); s != "" {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// CountValid 非空计数
func (v View) CountValid(col string) int {
	n := 0
	for i := 0; i < v.Len(); i++ {
		if v.Valid(i, col) {
			n++
		}
	}
	return n
}

func (v View) col(name string) (*column, bool) {
	if v.t == nil {
		return nil, false
	}
	c, ok := v.t.cols[name]
	return c, ok
}

// formatAny 统一的值格式化
func formatAny(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(DateLayout)
	case *string:
		if x == nil {
			return ""
		}
		return *x
	default:
		return fmt.Sprintf("%v", x)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case *float64:
		if x == nil {
			return 0, false
		}
		return *x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case []byte:
		return toFloat(string(x))
	case interface{ Float64() (float64, error) }:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006/1/2 15:04",
	"2006/1/2",
	"2006-1-2",
}

// ParseTime 解析常见时间格式（含中文“年月日”）
func ParseTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.ContainsAny(s, "年月日") {
		s = strings.NewReplacer("年", "-", "月", "-", "日", "").Replace(s)
		s = strings.TrimSuffix(s, "-")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toTime(v interface{}, loc *time.Location) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x.In(loc), true
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return x.In(loc), true
	case string:
		return ParseTime(x, loc)
	case []byte:
		return ParseTime(string(x), loc)
	}
	return time.Time{}, false
}

// DayStart 当天零点
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
