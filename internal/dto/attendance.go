package dto

import (
	"organizerpro/backend/pkg/period"
	"organizerpro/backend/pkg/timewindow"
)

// ── 考勤模块 DTO ──

// PeriodQuery 周期参数：mode + anchor，或 range 模式下的 start/end
type PeriodQuery struct {
	Mode   string `form:"mode"   binding:"omitempty,period_mode"`
	Anchor string `form:"anchor" binding:"omitempty,max=10"`
	Start  string `form:"start"  binding:"omitempty,max=35"`
	End    string `form:"end"    binding:"omitempty,max=35"`
}

// ToQuery 转换为周期解析器的输入
func (q PeriodQuery) ToQuery() period.Query {
	return period.Query{
		Mode:   period.Mode(q.Mode),
		Anchor: q.Anchor,
		Start:  q.Start,
		End:    q.End,
	}
}

// WindowInput 请假/加班时段输入
// Clear 为 true 时清除该子状态，其余字段忽略
type WindowInput struct {
	Window *timewindow.Window `json:"window"`
	Reason *string            `json:"reason" binding:"omitempty,max=500"`
	Clear  bool               `json:"clear"`
}

// QuickMarkRequest 快捷标记请求：为 (member_id, date) 创建或合并更新唯一一条记录
// 省略的字段保留原值；status 为空时仅更新子字段
type QuickMarkRequest struct {
	MemberID   string       `json:"member_id"  binding:"required,uuid"`
	Date       string       `json:"date"       binding:"required,ymd"`
	Status     *string      `json:"status"     binding:"omitempty,attendance_status"`
	Subject    *string      `json:"subject"    binding:"omitempty,max=200"`
	ProjectID  *string      `json:"project_id" binding:"omitempty,uuid"`
	Note       *string      `json:"note"       binding:"omitempty,max=2000"`
	Permission *WindowInput `json:"permission"`
	Overtime   *WindowInput `json:"overtime"`
}

// BulkMarkRequest 批量标记请求
// member_ids 为空时作用于在职名册（可按 role 过滤）；date 与 start/end 二选一
type BulkMarkRequest struct {
	MemberIDs  []string `json:"member_ids" binding:"omitempty,dive,uuid"`
	Role       string   `json:"role"       binding:"omitempty,max=50"`
	Date       string   `json:"date"       binding:"omitempty,ymd"`
	Start      string   `json:"start"      binding:"omitempty,ymd"`
	End        string   `json:"end"        binding:"omitempty,ymd"`
	Status     string   `json:"status"     binding:"required,attendance_status"`
	Reason     string   `json:"reason"     binding:"omitempty,max=200"`
	Note       string   `json:"note"       binding:"omitempty,max=2000"`
	Recurrence string   `json:"recurrence" binding:"omitempty,max=500"` // RRULE，例如 FREQ=WEEKLY;BYDAY=SA,SU
}

// RecordListRequest 考勤记录列表查询参数
type RecordListRequest struct {
	PeriodQuery
	PaginationRequest
	MemberID  string `form:"member_id"  binding:"omitempty,uuid"`
	ProjectID string `form:"project_id" binding:"omitempty,uuid"`
	Sector    string `form:"sector"     binding:"omitempty,oneof=general it"`
}

// StatsRequest 状态分布查询参数
type StatsRequest struct {
	PeriodQuery
	MemberID  string `form:"member_id"  binding:"omitempty,uuid"`
	ProjectID string `form:"project_id" binding:"omitempty,uuid"`
	Sector    string `form:"sector"     binding:"omitempty,oneof=general it"`
}

// SummaryRequest 成员汇总查询参数
type SummaryRequest struct {
	PeriodQuery
	MemberID   string `form:"member_id"   binding:"omitempty,uuid"`
	Role       string `form:"role"        binding:"omitempty,max=50"`
	MemberType string `form:"member_type" binding:"omitempty,oneof=regular guest"`
	Sector     string `form:"sector"      binding:"omitempty,oneof=general it"`
	SortBy     string `form:"sort_by"     binding:"omitempty,oneof=name role member_id attendance_rate"`
	Order      string `form:"order"       binding:"omitempty,oneof=asc desc"`
}

// DailySheetRequest 日常表查询参数；周期参数宽松解析，无法解析时回退到今天
type DailySheetRequest struct {
	PeriodQuery
	Role string `form:"role" binding:"omitempty,max=50"`
}

// HolidayImportRequest 节假日日历导入参数（multipart，文件字段为 file）
type HolidayImportRequest struct {
	From      string   `form:"from"       binding:"omitempty,ymd"`
	To        string   `form:"to"         binding:"omitempty,ymd"`
	MemberIDs []string `form:"member_ids" binding:"omitempty,dive,uuid"`
}

// AttendanceRecordResponse 考勤记录响应，附带解析后的时段供编辑回显
type AttendanceRecordResponse struct {
	ID                 string             `json:"id"`
	MemberID           string             `json:"member_id"`
	Date               string             `json:"date"`
	Status             string             `json:"status"`
	Subject            string             `json:"subject"`
	ProjectID          *string            `json:"project_id,omitempty"`
	Note               *string            `json:"note,omitempty"`
	PermissionDuration *string            `json:"permission_duration,omitempty"`
	PermissionReason   *string            `json:"permission_reason,omitempty"`
	PermissionWindow   *timewindow.Window `json:"permission_window,omitempty"`
	OvertimeDuration   *string            `json:"overtime_duration,omitempty"`
	OvertimeReason     *string            `json:"overtime_reason,omitempty"`
	OvertimeWindow     *timewindow.Window `json:"overtime_window,omitempty"`
	Sector             string             `json:"sector"`
	CreatedBy          *string            `json:"created_by,omitempty"`
	UpdatedBy          *string            `json:"updated_by,omitempty"`
	CreatedAt          string             `json:"created_at"`
	UpdatedAt          string             `json:"updated_at"`
}

// BatchFailureResponse 批量操作中失败的 (成员, 日期)
type BatchFailureResponse struct {
	MemberID string `json:"member_id"`
	Date     string `json:"date"`
	Reason   string `json:"reason"`
}

// BulkMarkResponse 批量标记结果
type BulkMarkResponse struct {
	Status    string                 `json:"status"`
	Dates     []string               `json:"dates"`
	Total     int                    `json:"total"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Failures  []BatchFailureResponse `json:"failures,omitempty"`
}

// StatusCountResponse 单个状态的记录数
type StatusCountResponse struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// StatsResponse 状态分布
type StatsResponse struct {
	Period string                `json:"period"`
	Total  int64                 `json:"total"`
	Counts []StatusCountResponse `json:"counts"`
}

// MemberSummaryResponse 单个成员在周期内的汇总
type MemberSummaryResponse struct {
	MemberID       string  `json:"member_id"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	MemberType     string  `json:"member_type"`
	WorkingDays    int     `json:"working_days"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Late           int     `json:"late"`
	HalfDay        int     `json:"half_day"`
	Permission     int     `json:"permission"`
	WeekOff        int     `json:"week_off"`
	Holiday        int     `json:"holiday"`
	OvertimeDays   int     `json:"overtime_days"`
	AttendanceRate float64 `json:"attendance_rate"` // 百分比，保留两位小数
}

// SummaryResponse 周期汇总
type SummaryResponse struct {
	Period     string                  `json:"period"`
	Start      string                  `json:"start"`
	End        string                  `json:"end"`
	Members    []MemberSummaryResponse `json:"members"`
	Incomplete bool                    `json:"incomplete,omitempty"` // 名册或记录之一读取失败，只含成功读取的部分
}

// DailySheetRow 日常表中的一行：成员及其目标日期的记录（可能为空）
type DailySheetRow struct {
	Member MemberResponse            `json:"member"`
	Record *AttendanceRecordResponse `json:"record"`
}

// DailySheetResponse 日常表
type DailySheetResponse struct {
	TargetDate string          `json:"target_date"`
	Editable   bool            `json:"editable"` // 受限账号查看过去日期时为 false
	Rows       []DailySheetRow `json:"rows"`
	Incomplete bool            `json:"incomplete,omitempty"` // 名册或记录之一读取失败，只含成功读取的部分
}

// HolidayEventResponse 日历中的单个节假日事件
type HolidayEventResponse struct {
	Summary string   `json:"summary"`
	Dates   []string `json:"dates"`
}

// HolidayImportResponse 节假日导入结果
type HolidayImportResponse struct {
	Events []HolidayEventResponse `json:"events"`
	Result []BulkMarkResponse     `json:"results"`
}
