package dataaccess

import (
	"strings"
	"time"
)

// Grain 时间粒度
type Grain string

const (
	GrainDay     Grain = "day"
	GrainWeek    Grain = "week"
	GrainMonth   Grain = "month"
	GrainQuarter Grain = "quarter"
	GrainYear    Grain = "year"
)

// ParseGrain 解析粒度，兼容 D/W/M/Q/Y 与中文写法
func ParseGrain(s string, def Grain) Grain {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily", "d", "日", "天", "date":
		return GrainDay
	case "week", "weekly", "w", "周":
		return GrainWeek
	case "month", "monthly", "m", "me", "月":
		return GrainMonth
	case "quarter", "quarterly", "q", "qe", "季度":
		return GrainQuarter
	case "year", "yearly", "y", "ye", "年":
		return GrainYear
	}
	return def
}

// PeriodEnd 时间所在周期的结束日（周以周日结束），作为桶标签
func PeriodEnd(t time.Time, g Grain) time.Time {
	d := DayStart(t)
	switch g {
	case GrainWeek:
		offset := (7 - int(d.Weekday())) % 7
		return d.AddDate(0, 0, offset)
	case GrainMonth:
		return time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, d.Location()).AddDate(0, 0, -1)
	case GrainQuarter:
		qEndMonth := ((int(d.Month())-1)/3 + 1) * 3
		return time.Date(d.Year(), time.Month(qEndMonth)+1, 1, 0, 0, 0, 0, d.Location()).AddDate(0, 0, -1)
	case GrainYear:
		return time.Date(d.Year(), 12, 31, 0, 0, 0, 0, d.Location())
	default:
		return d
	}
}

// NextPeriodEnd 下一个桶标签
func NextPeriodEnd(label time.Time, g Grain) time.Time {
	return PeriodEnd(DayStart(label).AddDate(0, 0, 1), g)
}

// PeriodLabels [first, last] 之间的全部桶标签（含空桶）
func PeriodLabels(first, last time.Time, g Grain) []time.Time {
	start := PeriodEnd(first, g)
	end := PeriodEnd(last, g)
	var out []time.Time
	for cur := start; !cur.After(end); cur = NextPeriodEnd(cur, g) {
		out = append(out, cur)
	}
	return out
}

// BucketLabel 桶标签字符串
func BucketLabel(t time.Time, g Grain) string {
	return PeriodEnd(t, g).Format(DateLayout)
}
