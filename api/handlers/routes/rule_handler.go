package routes

import (
	"errors"

	"backend/internal/common"
	"backend/internal/workflow"

	"github.com/Knetic/govaluate"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleHandler 路由选择规则管理。规则量很小，直接操作数据库。
type RuleHandler struct {
	db  *gorm.DB
	svc *workflow.Service
}

// NewRuleHandler 创建 Handler
func NewRuleHandler(db *gorm.DB, svc *workflow.Service) *RuleHandler {
	return &RuleHandler{db: db, svc: svc}
}

// List 规则一览，按匹配顺序排序
func (h *RuleHandler) List(c *gin.Context) {
	var rules []workflow.RouteRule
	if err := h.db.WithContext(c.Request.Context()).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error; err != nil {
		common.ResponseServerError(c, err.Error())
		return
	}
	common.ResponseSuccess(c, gin.H{"items": rules, "total": len(rules)})
}

// Create 新建规则。条件表达式和目标路由都先行校验。
func (h *RuleHandler) Create(c *gin.Context) {
	var req SaveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	if err := h.checkRule(c, &req); err != nil {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule := workflow.RouteRule{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Priority:  req.Priority,
		Condition: req.Condition,
		RouteCode: req.RouteCode,
		Active:    active,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&rule).Error; err != nil {
		common.ResponseServerError(c, err.Error())
		return
	}
	common.ResponseCreated(c, rule)
}

// Update 整体更新规则
func (h *RuleHandler) Update(c *gin.Context) {
	var req SaveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	if err := h.checkRule(c, &req); err != nil {
		return
	}

	var rule workflow.RouteRule
	if err := h.db.WithContext(c.Request.Context()).
		First(&rule, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.ResponseError(c, common.CodeNotFound, "规则不存在")
			return
		}
		common.ResponseServerError(c, err.Error())
		return
	}

	rule.Name = req.Name
	rule.Priority = req.Priority
	rule.Condition = req.Condition
	rule.RouteCode = req.RouteCode
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := h.db.WithContext(c.Request.Context()).Save(&rule).Error; err != nil {
		common.ResponseServerError(c, err.Error())
		return
	}
	common.ResponseSuccess(c, rule)
}

// Delete 删除规则
func (h *RuleHandler) Delete(c *gin.Context) {
	result := h.db.WithContext(c.Request.Context()).
		Delete(&workflow.RouteRule{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		common.ResponseServerError(c, result.Error.Error())
		return
	}
	if result.RowsAffected == 0 {
		common.ResponseError(c, common.CodeNotFound, "规则不存在")
		return
	}
	common.ResponseNoContent(c)
}

// checkRule 校验条件表达式可解析、目标路由存在。失败时已写响应。
func (h *RuleHandler) checkRule(c *gin.Context, req *SaveRuleRequest) error {
	if _, err := govaluate.NewEvaluableExpression(req.Condition); err != nil {
		common.ResponseBadRequest(c, "条件表达式无法解析: "+err.Error())
		return err
	}
	if _, err := h.svc.GetRoute(c.Request.Context(), req.RouteCode); err != nil {
		respondRouteError(c, err)
		return err
	}
	return nil
}
