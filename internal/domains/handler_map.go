package domains

import (
	"context"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/business/analysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/framework"
)

// HandlerFactory Handler 构造函数类型
type HandlerFactory func(
	ctx context.Context,
	baseHandler *framework.BaseHandler,
	deps *analysis.Deps,
) (framework.BusinessHandler, error)

// HandlerMap 路由表（ActionType → Handler 映射）
var HandlerMap = map[string]HandlerFactory{
	model.ActionAnalysisRun: analysis.NewRunHandler,
	model.ActionAsk:         analysis.NewAskHandler,
}
