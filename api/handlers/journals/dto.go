package journals

import "time"

// LineRequest 仕訳明细行
type LineRequest struct {
	AccountCode string `json:"accountCode" binding:"required"`
	Side        string `json:"side" binding:"required,oneof=debit credit"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Memo        string `json:"memo"`
}

// SaveEntryRequest 创建/更新仕訳请求
type SaveEntryRequest struct {
	EntryNumber string         `json:"entryNumber" binding:"required,max=50"`
	EntryDate   time.Time      `json:"entryDate" binding:"required"`
	Description string         `json:"description"`
	Attributes  map[string]any `json:"attributes"`
	Lines       []LineRequest  `json:"lines" binding:"required,min=2,dive"`
}

// SubmitRequest 提交审批请求。RouteCode 为空时按规则自动选择路由。
type SubmitRequest struct {
	RouteCode string `json:"routeCode"`
}

// DecisionRequest 审批/驳回请求
type DecisionRequest struct {
	Comment string `json:"comment"`
}

// TrialBalanceRequest 试算表查询参数
type TrialBalanceRequest struct {
	From time.Time `form:"from" time_format:"2006-01-02" binding:"required"`
	To   time.Time `form:"to" time_format:"2006-01-02" binding:"required"`
}
