// Package bootstrap 按配置组装数据上下文、工具路由、执行引擎与问句 agent
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/internal/agent"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/engine"
	"github.com/zhangzihaoDT/BI-reasoning/internal/tools"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/config"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/infra/mysql"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// NewDataContext 按 data.source 构造数据上下文；返回的 cleanup 释放数据库连接
func NewDataContext(cfg *config.Config, log logger.Logger) (*dataaccess.DataContext, func(), error) {
	cleanup := func() {}

	loc := time.Local
	if cfg.Data.Timezone != "" {
		l, err := time.LoadLocation(cfg.Data.Timezone)
		if err != nil {
			return nil, cleanup, fmt.Errorf("invalid data.timezone: %w", err)
		}
		loc = l
	}

	opts := dataaccess.Options{
		Location:           loc,
		StrictLaunchWindow: cfg.Analysis.StrictLaunchWindow,
	}
	if cfg.Data.Today != "" {
		today, err := time.ParseInLocation(dataaccess.DateLayout, cfg.Data.Today, loc)
		if err != nil {
			return nil, cleanup, fmt.Errorf("invalid data.today: %w", err)
		}
		opts.Today = today
	}

	var loader dataaccess.Loader
	switch cfg.Data.Source {
	case "csv":
		loader = dataaccess.CSVLoader{
			OrdersPath:     cfg.Data.OrdersCSV,
			AssignPath:     cfg.Data.AssignCSV,
			DefinitionPath: cfg.Data.BusinessDefinition,
			Location:       loc,
		}
	case "mysql":
		db, err := mysql.Open(cfg.MySQL.DSN)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() {
			if err := mysql.Close(db); err != nil {
				log.Warnf(context.Background(), "[Bootstrap] close mysql failed: %v", err)
			}
		}
		loader = mysql.NewFactLoader(db, cfg.Data.OrdersTable, cfg.Data.AssignTable, cfg.Data.BusinessDefinition, loc)
	case "memory":
		loader = dataaccess.StaticLoader{Dataset: &dataaccess.Dataset{
			Orders: dataaccess.NewTable("orders", dataaccess.OrderSchema(), loc),
			Assign: dataaccess.NewTable("assign", dataaccess.AssignSchema(), loc),
		}}
	default:
		return nil, cleanup, fmt.Errorf("unsupported data.source: %s", cfg.Data.Source)
	}

	return dataaccess.NewDataContext(loader, opts, log), cleanup, nil
}

// NewCompleter 按 llm 段创建大模型客户端；未配置 api_key 时返回 nil，问句只走规则抽取
func NewCompleter(cfg config.LLMConfig, log logger.Logger) agent.Completer {
	c, err := agent.NewOpenAICompleter(cfg)
	if err != nil {
		if !errors.Is(err, agent.ErrNoAPIKey) {
			log.Warnf(context.Background(), "[Bootstrap] llm disabled: %v", err)
		}
		return nil
	}
	return c
}

// Runtime 分析运行时，可被多个 worker 协程共享
type Runtime struct {
	dc        *dataaccess.DataContext
	engine    *engine.Engine
	completer agent.Completer
	log       logger.Logger

	agentOnce sync.Once
	agent     *agent.QueryAgent
}

// NewRuntime 组装工具路由与引擎；completer 可为 nil
func NewRuntime(dc *dataaccess.DataContext, analysis config.AnalysisConfig, completer agent.Completer, log logger.Logger) *Runtime {
	if log == nil {
		log = logger.NewNop()
	}
	router := tools.NewDefaultRouter(dc, engine.ToolOptions(analysis), log)
	return &Runtime{
		dc:        dc,
		engine:    engine.New(router, engine.ConfigFromAnalysis(analysis), log),
		completer: completer,
		log:       log,
	}
}

// New 由完整配置构造运行时
func New(cfg *config.Config, log logger.Logger) (*Runtime, func(), error) {
	dc, cleanup, err := NewDataContext(cfg, log)
	if err != nil {
		return nil, cleanup, err
	}
	return NewRuntime(dc, cfg.Analysis, NewCompleter(cfg.LLM, log), log), cleanup, nil
}

// DataContext 数据上下文
func (r *Runtime) DataContext() *dataaccess.DataContext { return r.dc }

// Engine 执行引擎
func (r *Runtime) Engine() *engine.Engine { return r.engine }

// EnsureLoaded 首次调用时加载数据
func (r *Runtime) EnsureLoaded(ctx context.Context) error {
	return r.dc.EnsureLoaded(ctx)
}

// QueryAgent 问句 agent；依赖业务定义，因此在数据加载后构造
func (r *Runtime) QueryAgent(ctx context.Context) (*agent.QueryAgent, error) {
	if err := r.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	r.agentOnce.Do(func() {
		r.agent = agent.NewQueryAgent(r.completer, r.dc.Definition(), r.dc.Today, r.log)
	})
	return r.agent, nil
}

// Run 执行一组步骤；步骤非法时 report 为 nil
func (r *Runtime) Run(ctx context.Context, steps []dsl.Step) (*engine.Report, error) {
	state, err := engine.NewState(steps)
	if err != nil {
		return nil, err
	}
	return r.engine.Run(ctx, state)
}
