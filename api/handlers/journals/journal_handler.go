package journals

import (
	"errors"
	"time"

	"backend/internal/common"
	"backend/internal/journal"
	"backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// JournalHandler 仕訳 CRUD 与试算表
type JournalHandler struct {
	svc *journal.Service
}

// NewJournalHandler 创建 Handler
func NewJournalHandler(svc *journal.Service) *JournalHandler {
	return &JournalHandler{svc: svc}
}

// Create 创建草稿仕訳
func (h *JournalHandler) Create(c *gin.Context) {
	var req SaveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	entry, err := h.svc.Create(c.Request.Context(), toCreateParams(req, middleware.ActorID(c)))
	if err != nil {
		respondJournalError(c, err)
		return
	}
	common.ResponseCreated(c, entry)
}

// Update 更新草稿仕訳
func (h *JournalHandler) Update(c *gin.Context) {
	var req SaveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	entry, err := h.svc.Update(c.Request.Context(), c.Param("id"), toCreateParams(req, middleware.ActorID(c)))
	if err != nil {
		respondJournalError(c, err)
		return
	}
	common.ResponseSuccess(c, entry)
}

// Get 获取仕訳详情
func (h *JournalHandler) Get(c *gin.Context) {
	entry, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondJournalError(c, err)
		return
	}
	common.ResponseSuccess(c, entry)
}

// List 仕訳一览
func (h *JournalHandler) List(c *gin.Context) {
	var page common.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		common.ResponseBadRequest(c, "分页参数错误: "+err.Error())
		return
	}

	filter := journal.ListFilter{Status: c.Query("status")}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.DateTo = &t
		}
	}
	entries, total, err := h.svc.List(c.Request.Context(), filter, page.GetPageSize(), page.GetOffset())
	if err != nil {
		respondJournalError(c, err)
		return
	}
	common.ResponseList(c, entries, total, &page)
}

// Delete 删除草稿仕訳
func (h *JournalHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.ActorID(c)); err != nil {
		respondJournalError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// TrialBalance 期间试算表
func (h *JournalHandler) TrialBalance(c *gin.Context) {
	var req TrialBalanceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.ResponseBadRequest(c, "查询参数错误: "+err.Error())
		return
	}

	rows, err := h.svc.TrialBalance(c.Request.Context(), req.From, req.To)
	if err != nil {
		respondJournalError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"rows": rows, "from": req.From, "to": req.To})
}

func toCreateParams(req SaveEntryRequest, actorID string) journal.CreateEntryParams {
	lines := make([]journal.LineParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, journal.LineParams{
			AccountCode: l.AccountCode,
			Side:        l.Side,
			Amount:      l.Amount,
			Memo:        l.Memo,
		})
	}
	return journal.CreateEntryParams{
		EntryNumber: req.EntryNumber,
		EntryDate:   req.EntryDate,
		Description: req.Description,
		Attributes:  req.Attributes,
		Lines:       lines,
		CreatedBy:   actorID,
	}
}

func respondJournalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, journal.ErrNotFound):
		common.ResponseError(c, common.CodeJournalNotFound, "")
	case errors.Is(err, journal.ErrNotEditable):
		common.ResponseError(c, common.CodeJournalNotEditable, err.Error())
	case errors.Is(err, journal.ErrUnbalanced):
		common.ResponseError(c, common.CodeJournalUnbalanced, err.Error())
	case errors.Is(err, journal.ErrTooFewLines):
		common.ResponseError(c, common.CodeJournalBadLines, err.Error())
	default:
		common.ResponseServerError(c, err.Error())
	}
}
