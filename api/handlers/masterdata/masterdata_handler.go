package masterdata

import (
	"errors"

	"backend/internal/common"
	"backend/internal/masterdata"

	"github.com/gin-gonic/gin"
)

// Handler 主数据管理（承認組織・担当者・勘定科目）
type Handler struct {
	svc *masterdata.Service
}

// NewHandler 创建 Handler
func NewHandler(svc *masterdata.Service) *Handler {
	return &Handler{svc: svc}
}

// CreateOrganizationRequest 新建承認組織
type CreateOrganizationRequest struct {
	Code      string `json:"code" binding:"required,max=50"`
	Name      string `json:"name" binding:"required,max=255"`
	SortOrder int    `json:"sortOrder"`
}

// UpdateOrganizationRequest 部分更新，nil 字段保持不变
type UpdateOrganizationRequest struct {
	Name      *string `json:"name" binding:"omitempty,max=255"`
	Active    *bool   `json:"active"`
	SortOrder *int    `json:"sortOrder"`
}

// AddMemberRequest 追加担当者
type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required,max=100"`
}

// CreateAccountRequest 新建勘定科目
type CreateAccountRequest struct {
	Code      string `json:"code" binding:"required,max=50"`
	Name      string `json:"name" binding:"required,max=255"`
	Type      string `json:"type" binding:"required,oneof=asset liability equity revenue expense"`
	SortOrder int    `json:"sortOrder"`
}

// CreateOrganization 新建承認組織
func (h *Handler) CreateOrganization(c *gin.Context) {
	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	org, err := h.svc.CreateOrganization(c.Request.Context(), req.Code, req.Name, req.SortOrder)
	if err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseCreated(c, org)
}

// UpdateOrganization 更新名称、有效标记、排序
func (h *Handler) UpdateOrganization(c *gin.Context) {
	var req UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	org, err := h.svc.UpdateOrganization(c.Request.Context(), c.Param("code"), req.Name, req.Active, req.SortOrder)
	if err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseSuccess(c, org)
}

// DeleteOrganization 删除未被路由引用的組織
func (h *Handler) DeleteOrganization(c *gin.Context) {
	if err := h.svc.DeleteOrganization(c.Request.Context(), c.Param("code")); err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// GetOrganization 組織详情（含成员）
func (h *Handler) GetOrganization(c *gin.Context) {
	org, err := h.svc.GetOrganization(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseSuccess(c, org)
}

// ListOrganizations 組織一览
func (h *Handler) ListOrganizations(c *gin.Context) {
	orgs, err := h.svc.ListOrganizations(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"items": orgs, "total": len(orgs)})
}

// AddMember 向組織追加担当者
func (h *Handler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	member, err := h.svc.AddMember(c.Request.Context(), c.Param("code"), req.UserID)
	if err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseCreated(c, member)
}

// RemoveMember 从組織移除担当者
func (h *Handler) RemoveMember(c *gin.Context) {
	if err := h.svc.RemoveMember(c.Request.Context(), c.Param("code"), c.Param("userId")); err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// CreateAccount 新建勘定科目
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	acct, err := h.svc.CreateAccount(c.Request.Context(), req.Code, req.Name, req.Type, req.SortOrder)
	if err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseCreated(c, acct)
}

// UpdateAccount 更新勘定科目
func (h *Handler) UpdateAccount(c *gin.Context) {
	var req UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	acct, err := h.svc.UpdateAccount(c.Request.Context(), c.Param("code"), req.Name, req.Active, req.SortOrder)
	if err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseSuccess(c, acct)
}

// ListAccounts 勘定科目一览
func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.svc.ListAccounts(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondMasterDataError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"items": accounts, "total": len(accounts)})
}

func respondMasterDataError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, masterdata.ErrNotFound):
		common.ResponseError(c, common.CodeNotFound, "")
	case errors.Is(err, masterdata.ErrCodeExists):
		common.ResponseError(c, common.CodeMasterDataCodeExists, "")
	case errors.Is(err, masterdata.ErrOrganizationInUse):
		common.ResponseError(c, common.CodeOrganizationInUse, "")
	default:
		common.ResponseServerError(c, err.Error())
	}
}
