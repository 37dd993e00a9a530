package handler

import (
	"github.com/gin-gonic/gin"

	"organizerpro/backend/internal/dto"
	"organizerpro/backend/internal/service"
	"organizerpro/backend/pkg/response"
)

// MemberHandler 成员名册 HTTP 处理器
type MemberHandler struct {
	svc service.MemberService
}

// NewMemberHandler 创建 MemberHandler
func NewMemberHandler(svc service.MemberService) *MemberHandler {
	return &MemberHandler{svc: svc}
}

// ListMembers 获取成员列表
// GET /api/v1/members
func (h *MemberHandler) ListMembers(c *gin.Context) {
	var req dto.MemberListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	members, err := h.svc.List(c.Request.Context(), &req)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": members})
}
