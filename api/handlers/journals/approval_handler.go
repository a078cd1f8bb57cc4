package journals

import (
	"errors"
	"io"

	"backend/internal/common"
	"backend/internal/journal"
	"backend/internal/middleware"
	"backend/internal/workflow"

	"github.com/gin-gonic/gin"
)

// ApprovalHandler 仕訳审批操作
type ApprovalHandler struct {
	coordinator *workflow.Coordinator
	selector    *workflow.RouteSelector
	journals    *journal.Service
}

// NewApprovalHandler 创建 Handler
func NewApprovalHandler(coordinator *workflow.Coordinator, selector *workflow.RouteSelector, journals *journal.Service) *ApprovalHandler {
	return &ApprovalHandler{coordinator: coordinator, selector: selector, journals: journals}
}

// Submit 提交审批。未指定路由时按规则自动匹配。
func (h *ApprovalHandler) Submit(c *gin.Context) {
	// 请求体可省略
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	journalID := c.Param("id")
	routeCode := req.RouteCode
	if routeCode == "" {
		entry, err := h.journals.Get(c.Request.Context(), journalID)
		if err != nil {
			respondJournalError(c, err)
			return
		}
		routeCode, err = h.selector.SelectRoute(c.Request.Context(), entry)
		if err != nil {
			respondApprovalError(c, err)
			return
		}
	}

	result, err := h.coordinator.Submit(c.Request.Context(), journalID, routeCode, middleware.ActorID(c))
	if err != nil {
		respondApprovalError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}

// Approve 批准当前步骤
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.act(c, workflow.DecisionApprove)
}

// Reject 驳回（终态）
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.act(c, workflow.DecisionReject)
}

func (h *ApprovalHandler) act(c *gin.Context, decision workflow.Decision) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.coordinator.Act(c.Request.Context(), c.Param("id"), middleware.ActorID(c), decision, req.Comment)
	if err != nil {
		respondApprovalError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}

// Recall 撤回到草稿（仅限提交人，且无人批准过）
func (h *ApprovalHandler) Recall(c *gin.Context) {
	result, err := h.coordinator.Recall(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		respondApprovalError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}

// History 审批履历（完整台账）
func (h *ApprovalHandler) History(c *gin.Context) {
	records, err := h.coordinator.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondApprovalError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"records": records, "total": len(records)})
}

// State 当前派生状态（台账重放结果）
func (h *ApprovalHandler) State(c *gin.Context) {
	state, err := h.coordinator.CurrentState(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondApprovalError(c, err)
		return
	}
	common.ResponseSuccess(c, state)
}

// Pending 当前用户的待审批一览
func (h *ApprovalHandler) Pending(c *gin.Context) {
	pending, err := h.coordinator.PendingForUser(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		respondApprovalError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"items": pending, "total": len(pending)})
}

func respondApprovalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrJournalNotFound):
		common.ResponseError(c, common.CodeJournalNotFound, "")
	case errors.Is(err, workflow.ErrRouteNotFound):
		common.ResponseError(c, common.CodeRouteNotFound, err.Error())
	case errors.Is(err, workflow.ErrIllegalTransition):
		common.ResponseError(c, common.CodeIllegalTransition, err.Error())
	case errors.Is(err, workflow.ErrNotEligible):
		common.ResponseError(c, common.CodeNotEligible, err.Error())
	case errors.Is(err, workflow.ErrConcurrencyConflict):
		common.ResponseError(c, common.CodeConcurrencyConflict, "")
	case errors.Is(err, workflow.ErrNoRouteMatched):
		common.ResponseError(c, common.CodeNoRouteMatched, "")
	case errors.Is(err, workflow.ErrNoActionableSteps):
		common.ResponseError(c, common.CodeRouteInvalid, err.Error())
	default:
		common.ResponseServerError(c, err.Error())
	}
}
