package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"organizerpro/backend/pkg/period"
)

// 默认主题
const (
	SubjectDaily   = "Daily Attendance"
	SubjectWeekend = "Weekend"
	SubjectHoliday = "Holiday"
	SubjectBulk    = "Bulk Mark"
)

// AttendanceRecord 考勤记录表 — 对应 attendance_records
// (member_id, date) 唯一：同一成员同一天至多一条记录，写入一律走 upsert
type AttendanceRecord struct {
	AttendanceID       string    `gorm:"type:uuid;primaryKey"                                              json:"attendance_id"`
	MemberID           string    `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_member_date,priority:1" json:"member_id"`
	Date               time.Time `gorm:"type:date;not null;uniqueIndex:uq_attendance_member_date,priority:2;index" json:"date"`
	Status             Status    `gorm:"type:varchar(20);not null"                                         json:"status"`
	Subject            string    `gorm:"type:varchar(200);not null;default:''"                             json:"subject"`
	ProjectID          *string   `gorm:"type:uuid"                                                         json:"project_id,omitempty"`
	Note               *string   `gorm:"type:text"                                                         json:"note,omitempty"`
	PermissionDuration *string   `gorm:"type:varchar(64)"                                                  json:"permission_duration,omitempty"` // 仅 status=permission 时存在
	PermissionReason   *string   `gorm:"type:text"                                                         json:"permission_reason,omitempty"`
	OvertimeDuration   *string   `gorm:"type:varchar(64)"                                                  json:"overtime_duration,omitempty"` // 与状态正交
	OvertimeReason     *string   `gorm:"type:text"                                                         json:"overtime_reason,omitempty"`
	Sector             string    `gorm:"type:varchar(20);not null;default:'general';index"                 json:"sector"`
	BaseModel

	// 关联
	Member *Member `gorm:"foreignKey:MemberID;references:MemberID" json:"member,omitempty"`
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }

// BeforeCreate 生成主键
func (r *AttendanceRecord) BeforeCreate(_ *gorm.DB) error {
	if r.AttendanceID == "" {
		r.AttendanceID = uuid.New().String()
	}
	return nil
}

// DateString 规范化的 YYYY-MM-DD 日期
func (r *AttendanceRecord) DateString() string {
	return period.FormatDate(r.Date)
}

// HasOvertime 是否登记了加班
func (r *AttendanceRecord) HasOvertime() bool {
	return r.OvertimeDuration != nil && *r.OvertimeDuration != ""
}
