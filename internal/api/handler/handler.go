package handler

import "organizerpro/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Attendance *AttendanceHandler
	Member     *MemberHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Attendance: NewAttendanceHandler(svc.Attendance, svc.BulkMark, svc.Summary, svc.DailySheet),
		Member:     NewMemberHandler(svc.Member),
	}
}
