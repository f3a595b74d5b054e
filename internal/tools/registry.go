package tools

import (
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// NewDefaultRouter 注册全部内置工具
func NewDefaultRouter(dc *dataaccess.DataContext, opts Options, log logger.Logger) *Router {
	return NewRouter(log,
		NewQueryTool(dc),
		NewRollupTool(dc, opts),
		NewTrendTool(dc, opts),
		NewDistributionTool(dc, opts),
		NewAdditiveTool(dc),
		NewRatioTool(dc),
		NewCompositionTool(dc),
		NewParetoTool(dc),
		NewDualAxisTool(dc),
	)
}
