package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

var (
	// ErrNotLoaded 数据尚未加载
	ErrNotLoaded = errors.New("dataset not loaded")
	// ErrLaunchWindowUnresolved launch_plus_Nd 无法确定唯一车型或上市日
	ErrLaunchWindowUnresolved = errors.New("launch window unresolved")
)

// Dataset 一次加载得到的全部数据
type Dataset struct {
	Orders     *Table
	Assign     *Table
	Definition *BusinessDefinition
}

// Loader 数据加载器
type Loader interface {
	Load(ctx context.Context) (*Dataset, error)
}

// Options DataContext 选项
type Options struct {
	Location           *time.Location
	Today              time.Time        // 固定“今天”，零值使用 Clock
	Clock              func() time.Time // 默认 time.Now
	StrictLaunchWindow bool
}

// DataContext 数据上下文：至多加载一次，加载后只读，可被多个运行共享
type DataContext struct {
	loader Loader
	opts   Options
	log    logger.Logger

	loaded *atomic.Bool
	mu     sync.Mutex
	ds     *Dataset
}

// NewDataContext 创建数据上下文
func NewDataContext(loader Loader, opts Options, log logger.Logger) *DataContext {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DataContext{
		loader: loader,
		opts:   opts,
		log:    log,
		loaded: atomic.NewBool(false),
	}
}

// EnsureLoaded 首次调用时加载数据，之后直接返回
func (c *DataContext) EnsureLoaded(ctx context.Context) error {
	if c.loaded.Load() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded.Load() {
		return nil
	}
	if c.loader == nil {
		return fmt.Errorf("%w: no loader configured", ErrNotLoaded)
	}

	start := time.Now()
	ds, err := c.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load dataset failed: %w", err)
	}
	if ds == nil || ds.Orders == nil {
		return fmt.Errorf("%w: loader returned no orders table", ErrNotLoaded)
	}
	if ds.Definition == nil {
		ds.Definition = &BusinessDefinition{}
	}
	deriveColumns(ds.Orders)

	c.ds = ds
	c.loaded.Store(true)
	assignRows := 0
	if ds.Assign != nil {
		assignRows = ds.Assign.Len()
	}
	c.log.Infof(ctx, "[DataContext] dataset loaded, orders=%d, assign=%d, cost=%v",
		ds.Orders.Len(), assignRows, time.Since(start))
	return nil
}

// Loaded 是否已加载
func (c *DataContext) Loaded() bool { return c.loaded.Load() }

// Today 当天零点
func (c *DataContext) Today() time.Time {
	if !c.opts.Today.IsZero() {
		return DayStart(c.opts.Today.In(c.opts.Location))
	}
	return DayStart(c.opts.Clock().In(c.opts.Location))
}

// Location 时区
func (c *DataContext) Location() *time.Location { return c.opts.Location }

// Definition 业务定义
func (c *DataContext) Definition() *BusinessDefinition {
	if c.ds == nil {
		return &BusinessDefinition{}
	}
	return c.ds.Definition
}

// Table 指标来源对应的表
func (c *DataContext) Table(src Source) (*Table, error) {
	if !c.loaded.Load() {
		return nil, ErrNotLoaded
	}
	switch src {
	case SourceAssign:
		if c.ds.Assign == nil {
			return nil, fmt.Errorf("assign table not loaded")
		}
		return c.ds.Assign, nil
	default:
		return c.ds.Orders, nil
	}
}

// Query 数据查询参数
type Query struct {
	Metric       string
	DateRange    string
	Filters      []Filter
	SkipValidity bool
	// TimeColumn 非空时替代指标自身的时间轴
	TimeColumn string
}

// Selection 查询结果：过滤后的视图与诊断信息
type Selection struct {
	Metric           Metric
	TimeColumn       string
	View             View
	Window           Window
	Filters          []FilterOutcome
	Diagnostics      []string
	LaunchUnresolved bool
}

// Empty 视图是否为空
func (s *Selection) Empty() bool { return s.View.Len() == 0 }

// DateLabel 展示用时间范围
func (s *Selection) DateLabel() string {
	if s.Window.Resolved() {
		return s.Window.Label()
	}
	return s.Window.Expr
}

func (s *Selection) diag(format string, args ...interface{}) {
	s.Diagnostics = append(s.Diagnostics, fmt.Sprintf(format, args...))
}

// Select 解析指标 -> 时间列 -> 过滤 -> 时间范围 -> 有效性掩码
func (c *DataContext) Select(ctx context.Context, q Query) (*Selection, error) {
	if err := c.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	// 1. 指标与时间列
	metric := ResolveMetric(q.Metric)
	timeCol := metric.TimeColumn
	if q.TimeColumn != "" {
		timeCol = q.TimeColumn
	}
	sel := &Selection{Metric: metric, TimeColumn: timeCol, Window: Window{Expr: q.DateRange}}

	table, err := c.Table(metric.Source)
	if err != nil {
		sel.View = c.ds.Orders.All().Empty()
		sel.diag("metric %s: %v", metric.Name, err)
		return sel, nil
	}
	view := table.All()

	// 2. 过滤
	view, sel.Filters = ApplyFilters(view, q.Filters, c.Definition())
	for _, o := range sel.Filters {
		if !o.Applied {
			sel.diag("filter skipped (%s): %s", o.Filter.String(), o.Reason)
		}
	}

	// 3. 时间范围
	window, err := ParseDateRange(q.DateRange, c.Today())
	if err != nil {
		sel.View = view.Empty()
		sel.diag("%v", err)
		return sel, nil
	}
	if window.Kind == WindowLaunch {
		resolved, err := c.resolveLaunch(window, view, sel.Filters)
		if err != nil {
			if c.opts.StrictLaunchWindow {
				return nil, err
			}
			sel.Window = window
			sel.LaunchUnresolved = true
			sel.diag("%v, time filter not applied", err)
		} else {
			window = resolved
		}
	}
	if window.Resolved() {
		sel.Window = window
		if !view.Has(timeCol) {
			sel.View = view.Empty()
			sel.diag("time column %s not found", timeCol)
			return sel, nil
		}
		col := timeCol
		view = view.Where(func(i int) bool {
			t, ok := view.Time(i, col)
			return ok && window.Contains(t)
		})
	}

	// 4. 有效性掩码
	if !q.SkipValidity {
		view = applyValidity(view, metric.Required)
	}
	sel.View = view
	return sel, nil
}

// applyValidity 剔除必需列为空的行，表中不存在的必需列忽略
func applyValidity(v View, required []string) View {
	cols := make([]string, 0, len(required))
	for _, col := range required {
		if v.Has(col) {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return v
	}
	return v.Where(func(i int) bool {
		for _, col := range cols {
			if !v.Valid(i, col) {
				return false
			}
		}
		return true
	})
}

// resolveLaunch 根据过滤条件或数据中唯一的车型分组确定上市日
func (c *DataContext) resolveLaunch(w Window, v View, outcomes []FilterOutcome) (Window, error) {
	series, ok := singleSeries(outcomes)
	if !ok && v.Has(ColSeriesGroup) {
		groups := v.Distinct(ColSeriesGroup)
		if len(groups) == 1 {
			series, ok = groups[0], true
		} else {
			return w, fmt.Errorf("%w: %d series in scope", ErrLaunchWindowUnresolved, len(groups))
		}
	}
	if !ok {
		return w, fmt.Errorf("%w: no series in scope", ErrLaunchWindowUnresolved)
	}
	launch, ok := c.Definition().LaunchDate(series, c.opts.Location)
	if !ok {
		return w, fmt.Errorf("%w: launch date of %s unknown", ErrLaunchWindowUnresolved, series)
	}
	return w.WithLaunch(series, launch), nil
}
