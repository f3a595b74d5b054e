package dataaccess

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrEmptyDateRange 未提供时间范围
	ErrEmptyDateRange = errors.New("date_range is required")
	// ErrInvalidDateRange 时间范围无法解析
	ErrInvalidDateRange = errors.New("invalid date_range")
)

var (
	reLastDays   = regexp.MustCompile(`^last_(\d+)_days?$`)
	reLastWeeks  = regexp.MustCompile(`^last_(\d+)_weeks?$`)
	reLaunchPlus = regexp.MustCompile(`^launch_plus_(\d+)d$`)
	reYear       = regexp.MustCompile(`^\d{4}$`)
	reMonth      = regexp.MustCompile(`^\d{4}[-/]\d{1,2}$`)
	reRangeSep   = regexp.MustCompile(`\s+to\s+|/`)
)

// WindowKind 时间窗口类型
type WindowKind int

const (
	// WindowFixed 固定区间 [Start, End)
	WindowFixed WindowKind = iota + 1
	// WindowLaunch 上市后 N 天，需结合车型上市日解析
	WindowLaunch
)

// Window 解析后的时间窗口，左闭右开
type Window struct {
	Expr       string
	Kind       WindowKind
	Start      time.Time
	End        time.Time
	LaunchDays int
	Series     string
}

// Resolved 是否已有具体区间
func (w Window) Resolved() bool {
	return !w.Start.IsZero() && !w.End.IsZero()
}

// SingleDay 是否恰好一天
func (w Window) SingleDay() bool {
	return w.Resolved() && w.Start.AddDate(0, 0, 1).Equal(w.End)
}

// Contains t 是否落在窗口内
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Days 窗口内的每一天
func (w Window) Days() []time.Time {
	if !w.Resolved() {
		return nil
	}
	var out []time.Time
	for d := w.Start; d.Before(w.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// WithLaunch 以上市日解析 launch_plus_Nd
func (w Window) WithLaunch(series string, launch time.Time) Window {
	start := DayStart(launch)
	w.Series = series
	w.Start = start
	w.End = start.AddDate(0, 0, w.LaunchDays)
	return w
}

// Label 展示用区间描述
func (w Window) Label() string {
	if !w.Resolved() {
		return w.Expr
	}
	last := w.End.AddDate(0, 0, -1)
	if w.SingleDay() {
		return w.Start.Format(DateLayout)
	}
	return w.Start.Format(DateLayout) + "/" + last.Format(DateLayout)
}

// ParseDateRange 解析时间范围表达式，today 取当天零点
func ParseDateRange(expr string, today time.Time) (Window, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return Window{}, ErrEmptyDateRange
	}
	today = DayStart(today)
	loc := today.Location()
	w := Window{Expr: raw, Kind: WindowFixed}
	lower := strings.ToLower(raw)

	switch lower {
	case "yesterday", "昨天", "昨日":
		w.Start, w.End = today.AddDate(0, 0, -1), today
		return w, nil
	case "today", "今天", "今日":
		w.Start, w.End = today, today.AddDate(0, 0, 1)
		return w, nil
	}

	if m := reLastDays.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		w.Start, w.End = today.AddDate(0, 0, -n), today
		return w, nil
	}
	if m := reLastWeeks.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		w.Start, w.End = today.AddDate(0, 0, -7*n), today
		return w, nil
	}
	if m := reLaunchPlus.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n <= 0 {
			return Window{}, fmt.Errorf("%w: %s", ErrInvalidDateRange, raw)
		}
		w.Kind = WindowLaunch
		w.LaunchDays = n
		return w, nil
	}

	norm := normalizeDateExpr(raw)
	if strings.HasSuffix(norm, "至今") {
		start, _, ok := parsePeriod(strings.TrimSpace(strings.TrimSuffix(norm, "至今")), loc)
		if !ok {
			return Window{}, fmt.Errorf("%w: %s", ErrInvalidDateRange, raw)
		}
		w.Start, w.End = start, today.AddDate(0, 0, 1)
		return w, nil
	}

	if start, end, ok := parsePeriod(norm, loc); ok {
		w.Start, w.End = start, end
		return w, nil
	}

	parts := reRangeSep.Split(norm, -1)
	if len(parts) == 2 {
		start, _, okStart := parsePeriod(strings.TrimSpace(parts[0]), loc)
		_, end, okEnd := parsePeriod(strings.TrimSpace(parts[1]), loc)
		if okStart && okEnd && start.Before(end) {
			w.Start, w.End = start, end
			return w, nil
		}
	}
	return Window{}, fmt.Errorf("%w: %s", ErrInvalidDateRange, raw)
}

// normalizeDateExpr 中文日期归一化：2025年12月1日 -> 2025-12-1
func normalizeDateExpr(s string) string {
	s = strings.NewReplacer("年", "-", "月", "-", "日", "", "号", "", "～", " to ", "~", " to ", "至今", "至今", "至", " to ").Replace(s)
	s = strings.ReplaceAll(s, "- to", " to")
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, "-")
}

// parsePeriod 解析单个年/月/日，返回其覆盖区间 [start, end)
func parsePeriod(s string, loc *time.Location) (time.Time, time.Time, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "-")
	if s == "" {
		return time.Time{}, time.Time{}, false
	}
	if reYear.MatchString(s) {
		y, _ := strconv.Atoi(s)
		start := time.Date(y, 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), true
	}
	if reMonth.MatchString(s) {
		s = strings.ReplaceAll(s, "/", "-")
		t, err := time.ParseInLocation("2006-1", s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return t, t.AddDate(0, 1, 0), true
	}
	for _, layout := range []string{"2006-01-02", "2006-1-2", "2006/01/02", "2006/1/2", "20060102"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, t.AddDate(0, 0, 1), true
		}
	}
	return time.Time{}, time.Time{}, false
}
