package routes

import "backend/internal/workflow"

// StepRequest 路由步骤
type StepRequest struct {
	Number           int    `json:"number" binding:"required,min=1"`
	OrganizationCode string `json:"organizationCode" binding:"required"`
	Name             string `json:"name"`
	Required         *bool  `json:"required"`
}

// SaveRouteRequest 创建/更新路由请求
type SaveRouteRequest struct {
	Code        string                `json:"code" binding:"required,max=50"`
	Name        string                `json:"name" binding:"required,max=255"`
	Description string                `json:"description"`
	Steps       []StepRequest         `json:"steps" binding:"required,min=1,dive"`
	Layout      *workflow.RouteLayout `json:"layout"`
}

// SaveRuleRequest 创建/更新路由选择规则
type SaveRuleRequest struct {
	Name      string `json:"name" binding:"required,max=255"`
	Priority  int    `json:"priority"`
	Condition string `json:"condition" binding:"required"`
	RouteCode string `json:"routeCode" binding:"required,max=50"`
	Active    *bool  `json:"active"`
}
