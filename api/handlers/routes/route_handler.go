package routes

import (
	"errors"
	"net/http"

	"backend/internal/common"
	"backend/internal/middleware"
	"backend/internal/workflow"

	"github.com/gin-gonic/gin"
)

// RouteHandler 审批路由主数据管理
type RouteHandler struct {
	svc *workflow.Service
}

// NewRouteHandler 创建 Handler
func NewRouteHandler(svc *workflow.Service) *RouteHandler {
	return &RouteHandler{svc: svc}
}

// Save 创建或整体替换路由草稿
func (h *RouteHandler) Save(c *gin.Context) {
	var req SaveRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	steps := make([]workflow.Step, 0, len(req.Steps))
	for _, s := range req.Steps {
		required := true
		if s.Required != nil {
			required = *s.Required
		}
		steps = append(steps, workflow.Step{
			Number:           s.Number,
			OrganizationCode: s.OrganizationCode,
			Name:             s.Name,
			Required:         required,
		})
	}

	route, err := h.svc.SaveRoute(c.Request.Context(), workflow.SaveRouteParams{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Steps:       steps,
		Layout:      req.Layout,
		CreatedBy:   middleware.ActorID(c),
	})
	if err != nil {
		respondRouteError(c, err)
		return
	}
	common.ResponseSuccess(c, route)
}

// Get 路由详情（含步骤）
func (h *RouteHandler) Get(c *gin.Context) {
	route, err := h.svc.GetRoute(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondRouteError(c, err)
		return
	}
	common.ResponseSuccess(c, route)
}

// List 路由一览
func (h *RouteHandler) List(c *gin.Context) {
	routes, err := h.svc.ListRoutes(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondRouteError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"items": routes, "total": len(routes)})
}

// Validate 校验路由结构，返回所有问题
func (h *RouteHandler) Validate(c *gin.Context) {
	result, err := h.svc.ValidateRoute(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondRouteError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}

// Activate 激活路由（校验通过才生效）
func (h *RouteHandler) Activate(c *gin.Context) {
	result, err := h.svc.ActivateRoute(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondRouteError(c, err)
		return
	}
	if !result.OK {
		resp := common.ErrorResponse(common.CodeRouteInvalid, common.GetErrorMessage(common.CodeRouteInvalid))
		resp.Data = result
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	common.ResponseSuccess(c, result)
}

// Deactivate 停用路由（不影响流转中的仕訳）
func (h *RouteHandler) Deactivate(c *gin.Context) {
	if err := h.svc.DeactivateRoute(c.Request.Context(), c.Param("code")); err != nil {
		respondRouteError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// Delete 删除未被引用的路由
func (h *RouteHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteRoute(c.Request.Context(), c.Param("code")); err != nil {
		respondRouteError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

func respondRouteError(c *gin.Context, err error) {
	var structureErr *workflow.StructureError
	switch {
	case errors.Is(err, workflow.ErrRouteNotFound):
		common.ResponseError(c, common.CodeRouteNotFound, "")
	case errors.Is(err, workflow.ErrRouteInUse):
		common.ResponseError(c, common.CodeRouteInUse, err.Error())
	case errors.As(err, &structureErr):
		common.ResponseError(c, common.CodeRouteInvalid, structureErr.Error())
	default:
		common.ResponseServerError(c, err.Error())
	}
}
