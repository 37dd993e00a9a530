package dto

// ── 成员名册 DTO ──

// MemberListRequest 成员名册查询参数
type MemberListRequest struct {
	IncludeInactive bool   `form:"include_inactive"`
	Role            string `form:"role"        binding:"omitempty,max=50"`
	MemberType      string `form:"member_type" binding:"omitempty,oneof=regular guest"`
	ProjectID       string `form:"project_id"  binding:"omitempty,uuid"`
}

// MemberResponse 成员简要信息
type MemberResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	MemberType string  `json:"member_type"`
	Status     string  `json:"status"`
	ProjectID  *string `json:"project_id,omitempty"`
}
